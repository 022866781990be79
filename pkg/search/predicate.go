package search

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/huandu/go-sqlbuilder"
)

// Compile turns a resolved field, comparator token and value into a SQL
// condition on the given builder. The flag field compiles ne as "not equal or
// absent" because flags arrive through an outer join; a bare not-equal would
// silently drop unflagged records.
func Compile(sb *sqlbuilder.SelectBuilder, loc FieldLocation, comparator, value string) (string, error) {
	var expr string
	switch comparator {
	case "eq":
		expr = sb.Equal(loc.Column, value)
	case "ne":
		expr = sb.NotEqual(loc.Column, value)
		if loc.Kind == FlagColumn {
			expr = sb.Or(expr, sb.IsNull(loc.Column))
		}
	case "gt":
		expr = sb.GreaterThan(loc.Column, value)
	case "ge":
		expr = sb.GreaterEqualThan(loc.Column, value)
	case "lt":
		expr = sb.LessThan(loc.Column, value)
	case "le":
		expr = sb.LessEqualThan(loc.Column, value)
	case "contains":
		expr = sb.Like(loc.Column, "%"+value+"%")
	case "starts":
		expr = sb.Like(loc.Column, value+"%")
	case "ends":
		expr = sb.Like(loc.Column, "%"+value)
	default:
		return "", httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unsupported comparator %q", comparator))
	}
	return expr, nil
}

// TextExpression is a parsed free-text search: terms joined by one boolean
// operator.
type TextExpression struct {
	Operator string
	Terms    []string
}

// ParseFreeText splits a raw search string into boolean term groups. The
// literal delimiter " AND " wins over " OR "; with neither, the whole trimmed
// string is a single term. Returns nil when the input is blank.
func ParseFreeText(raw string) *TextExpression {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	operator := "AND"
	parts := []string{trimmed}
	if strings.Contains(trimmed, " AND ") {
		parts = strings.Split(trimmed, " AND ")
	} else if strings.Contains(trimmed, " OR ") {
		operator = "OR"
		parts = strings.Split(trimmed, " OR ")
	}

	terms := make([]string, 0, len(parts))
	for _, part := range parts {
		if term := strings.TrimSpace(part); term != "" {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return nil
	}
	return &TextExpression{Operator: operator, Terms: terms}
}

// Apply builds the free-text condition: each term matches as a substring of
// at least one searchable column, and terms combine with the parsed operator.
func (e *TextExpression) Apply(sb *sqlbuilder.SelectBuilder, columns []string) string {
	termExprs := make([]string, 0, len(e.Terms))
	for _, term := range e.Terms {
		columnExprs := make([]string, 0, len(columns))
		for _, column := range columns {
			columnExprs = append(columnExprs, sb.Like(column, "%"+term+"%"))
		}
		termExprs = append(termExprs, sb.Or(columnExprs...))
	}
	if e.Operator == "OR" {
		return sb.Or(termExprs...)
	}
	return sb.And(termExprs...)
}
