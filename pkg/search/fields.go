package search

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/aster/pkg/models"
)

// Mode selects which record shape a search runs against.
type Mode string

const (
	// ModeCandidate searches the wide candidate event index.
	ModeCandidate Mode = "candidate"
	// ModeCanonical searches canonical events and their linked field data.
	ModeCanonical Mode = "canonical"
)

// LocationKind tags how a logical field maps onto physical storage.
type LocationKind int

const (
	// DirectColumn fields live as a plain column on the mode's primary table.
	DirectColumn LocationKind = iota
	// PivotedValue fields live as the value column of a field record row,
	// selected by an extra variable predicate.
	PivotedValue
	// FlagColumn is the candidate flag, reached through an outer join.
	FlagColumn
	// CoderReference fields hold a coder id entered as a username, which is
	// resolved before the predicate is compiled.
	CoderReference
	// SourceEventColumn is the canonical event_id field, matched against the
	// owning candidate event of each linked field record.
	SourceEventColumn
)

// FieldLocation is the physical resolution of one logical field.
type FieldLocation struct {
	Kind     LocationKind
	Column   string
	Variable string
}

var candidateFields = map[string]FieldLocation{
	"coder_id":     {Kind: DirectColumn, Column: "cei.coder_id"},
	"article_id":   {Kind: DirectColumn, Column: "cei.article_id"},
	"article-desc": {Kind: DirectColumn, Column: "cei.article_desc"},
	"description":  {Kind: DirectColumn, Column: "cei.description"},
	"location":     {Kind: DirectColumn, Column: "cei.location"},
	"start-date":   {Kind: DirectColumn, Column: "cei.start_date"},
	"publication":  {Kind: DirectColumn, Column: "cei.publication"},
	"pub-date":     {Kind: DirectColumn, Column: "cei.pub_date"},
	"title":        {Kind: DirectColumn, Column: "cei.title"},
	"form":         {Kind: DirectColumn, Column: "cei.form"},
	"issue":        {Kind: DirectColumn, Column: "cei.issue"},
	"racial-issue": {Kind: DirectColumn, Column: "cei.racial_issue"},
	"flag":         {Kind: FlagColumn, Column: "ef.flag"},
}

var canonicalFields = map[string]FieldLocation{
	"location":     {Kind: PivotedValue, Column: "fr.value", Variable: "location"},
	"form":         {Kind: PivotedValue, Column: "fr.value", Variable: "form"},
	"issue":        {Kind: PivotedValue, Column: "fr.value", Variable: "issue"},
	"racial-issue": {Kind: PivotedValue, Column: "fr.value", Variable: "racial-issue"},
	"start-date":   {Kind: PivotedValue, Column: "fr.value", Variable: "start-date"},
	"event_id":     {Kind: SourceEventColumn, Column: "fr.candidate_event_id"},
	"key":          {Kind: DirectColumn, Column: "ce.key"},
	"description":  {Kind: DirectColumn, Column: "ce.description"},
	"notes":        {Kind: DirectColumn, Column: "ce.notes"},
	"coder_id":     {Kind: CoderReference, Column: "ce.coder_id"},
}

// candidateFreeTextColumns are the index columns a free-text term is matched
// against. Date columns are excluded; substring matching them is meaningless.
var candidateFreeTextColumns = []string{
	"cei.article_desc", "cei.description", "cei.location", "cei.publication",
	"cei.title", "cei.form", "cei.issue", "cei.racial_issue",
}

// canonicalFreeTextColumns are the canonical event text columns a free-text
// term is matched against.
var canonicalFreeTextColumns = []string{"ce.key", "ce.description", "ce.notes"}

// canonicalSortFields are the orderings the canonical result set supports,
// the plain columns of the canonical event row; everything else about a
// canonical event is pivoted and has no single value to order by.
var canonicalSortFields = map[string]string{
	"key":          "key",
	"coder_id":     "coder_id",
	"description":  "description",
	"notes":        "notes",
	"last-updated": "last_updated",
}

// Comparators is the supported comparator vocabulary with display labels.
var Comparators = [][]string{
	{"eq", "is"},
	{"ne", "is not"},
	{"gt", "after"},
	{"ge", "on or after"},
	{"lt", "before"},
	{"le", "on or before"},
	{"contains", "contains"},
	{"starts", "starts with"},
	{"ends", "ends with"},
}

// Resolve maps a logical (mode, field) pair to its physical location.
func Resolve(mode Mode, field string) (FieldLocation, error) {
	var loc FieldLocation
	var ok bool
	switch mode {
	case ModeCandidate:
		loc, ok = candidateFields[field]
	case ModeCanonical:
		loc, ok = canonicalFields[field]
	default:
		return FieldLocation{}, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown search mode %q", mode))
	}
	if !ok {
		return FieldLocation{}, httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("field %q is not searchable in %s mode", field, mode))
	}
	return loc, nil
}

// ResolveSort validates a sort clause and returns the ORDER BY term.
func ResolveSort(mode Mode, clause models.SortClause) (string, error) {
	direction := strings.ToUpper(clause.Direction)
	if direction == "" {
		direction = "ASC"
	}
	if direction != "ASC" && direction != "DESC" {
		return "", httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid sort direction %q", clause.Direction))
	}

	switch mode {
	case ModeCandidate:
		loc, ok := candidateFields[clause.Field]
		if !ok || loc.Kind != DirectColumn {
			return "", httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("field %q is not sortable in candidate mode", clause.Field))
		}
		return loc.Column + " " + direction, nil
	case ModeCanonical:
		column, ok := canonicalSortFields[clause.Field]
		if !ok {
			return "", httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("field %q is not sortable in canonical mode", clause.Field))
		}
		return column + " " + direction, nil
	}
	return "", httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown search mode %q", mode))
}

// Vocabulary returns the static filter/sort vocabulary for search forms.
func Vocabulary() models.SearchVocabulary {
	return models.SearchVocabulary{
		CandidateFilterFields: sortedKeys(candidateFields),
		CanonicalFilterFields: sortedKeys(canonicalFields),
		CanonicalSortFields:   sortedKeys(canonicalSortFields),
		Comparators:           Comparators,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
