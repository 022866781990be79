package search

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/aster/internal/repositories/candidateevent"
	"github.com/Ramsey-B/aster/internal/repositories/canonicalevent"
	"github.com/Ramsey-B/aster/internal/repositories/coder"
	"github.com/Ramsey-B/aster/internal/repositories/eventflag"
	"github.com/Ramsey-B/aster/internal/repositories/fieldlink"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

var candidateSelectColumns = []string{
	"cei.id", "cei.candidate_event_id", "cei.coder_id", "cei.article_id", "cei.article_desc",
	"cei.description", "cei.location", "cei.start_date", "cei.publication", "cei.pub_date",
	"cei.title", "cei.form", "cei.issue", "cei.racial_issue",
}

// Executor plans and runs searches over the two record shapes. Candidate
// searches compile to one joined query; canonical searches evaluate each
// predicate independently and intersect the id sets in memory, because the
// predicates may target different pivoted rows of the same EAV table.
type Executor struct {
	candidateEvents *candidateevent.Repository
	canonicalEvents *canonicalevent.Repository
	fieldLinks      *fieldlink.Repository
	flags           *eventflag.Repository
	coders          *coder.Repository
	logger          ectologger.Logger
	resultCap       int
}

// NewExecutor creates a new search executor
func NewExecutor(
	candidateEvents *candidateevent.Repository,
	canonicalEvents *canonicalevent.Repository,
	fieldLinks *fieldlink.Repository,
	flags *eventflag.Repository,
	coders *coder.Repository,
	logger ectologger.Logger,
	resultCap int,
) *Executor {
	return &Executor{
		candidateEvents: candidateEvents,
		canonicalEvents: canonicalEvents,
		fieldLinks:      fieldLinks,
		flags:           flags,
		coders:          coders,
		logger:          logger,
		resultCap:       resultCap,
	}
}

// SearchCandidates runs a candidate mode search over the wide index table.
func (e *Executor) SearchCandidates(ctx context.Context, req models.SearchRequest) (*models.CandidateSearchResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "search.Executor.SearchCandidates")
	defer span.End()

	text, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(candidateSelectColumns...)
	sb.From("candidate_event_index cei")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "event_flags ef", "ef.candidate_event_id = cei.candidate_event_id")

	// records without a start date never surface in adjudication
	conditions := []string{sb.IsNotNull("cei.start_date")}
	for _, filter := range req.Filters {
		loc, err := Resolve(ModeCandidate, filter.Field)
		if err != nil {
			return nil, err
		}
		expr, err := Compile(sb, loc, filter.Comparator, filter.Value)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, expr)
	}
	if text != nil {
		conditions = append(conditions, text.Apply(sb, candidateFreeTextColumns))
	}
	sb.Where(conditions...)

	orderings := make([]string, 0, len(req.Sorts)+1)
	for _, sortClause := range req.Sorts {
		ordering, err := ResolveSort(ModeCandidate, sortClause)
		if err != nil {
			return nil, err
		}
		orderings = append(orderings, ordering)
	}
	// stable tiebreak
	orderings = append(orderings, "cei.candidate_event_id ASC")
	sb.OrderBy(orderings...)
	sb.Limit(e.resultCap + 1)

	query, args := sb.Build()
	rows, err := e.candidateEvents.SearchIndex(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) > e.resultCap {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "too many results, narrow the query")
	}

	eventIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		eventIDs = append(eventIDs, row.CandidateEventID)
	}
	flagsByEvent, err := e.flags.MapByEventIDs(ctx, eventIDs)
	if err != nil {
		return nil, err
	}

	return &models.CandidateSearchResponse{
		Events:     rows,
		Flags:      flagsByEvent,
		TotalCount: len(rows),
	}, nil
}

// SearchCanonical runs a canonical mode search: per-predicate id sets folded
// by intersection, then a second pass loading the linked candidate data.
func (e *Executor) SearchCanonical(ctx context.Context, req models.SearchRequest) (*models.CanonicalSearchResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "search.Executor.SearchCanonical")
	defer span.End()

	text, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	var idSets []map[string]struct{}
	for _, filter := range req.Filters {
		ids, err := e.canonicalPredicateIDs(ctx, filter)
		if err != nil {
			return nil, err
		}
		idSets = append(idSets, ids)
	}
	if text != nil {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select("ce.id")
		sb.From("canonical_events ce")
		sb.Where(text.Apply(sb, canonicalFreeTextColumns))

		query, args := sb.Build()
		ids, err := e.canonicalEvents.SearchIDs(ctx, query, args)
		if err != nil {
			return nil, err
		}
		idSets = append(idSets, toSet(ids))
	}

	matched := intersect(idSets)
	if len(matched) > e.resultCap {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "too many results, narrow the query")
	}
	if len(matched) == 0 {
		return &models.CanonicalSearchResponse{
			Events:        []models.CanonicalEvent{},
			CandidateData: map[string]map[string]models.CandidateEventIndex{},
		}, nil
	}

	orderings := make([]string, 0, len(req.Sorts))
	for _, sortClause := range req.Sorts {
		ordering, err := ResolveSort(ModeCanonical, sortClause)
		if err != nil {
			return nil, err
		}
		orderings = append(orderings, ordering)
	}

	events, err := e.canonicalEvents.GetByIDs(ctx, matched, orderings)
	if err != nil {
		return nil, err
	}

	linkedRows, err := e.fieldLinks.ListLinkedIndexRows(ctx, matched)
	if err != nil {
		return nil, err
	}
	candidateData := make(map[string]map[string]models.CandidateEventIndex, len(matched))
	for _, row := range linkedRows {
		byEvent, ok := candidateData[row.CanonicalEventID]
		if !ok {
			byEvent = map[string]models.CandidateEventIndex{}
			candidateData[row.CanonicalEventID] = byEvent
		}
		byEvent[row.CandidateEventIndex.CandidateEventID] = row.CandidateEventIndex
	}

	return &models.CanonicalSearchResponse{
		Events:        events,
		CandidateData: candidateData,
		TotalCount:    len(events),
	}, nil
}

// AutocompleteKeys returns every canonical key containing the term.
func (e *Executor) AutocompleteKeys(ctx context.Context, term string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "search.Executor.AutocompleteKeys")
	defer span.End()

	return e.canonicalEvents.AutocompleteKeys(ctx, term)
}

// CoderUsernames returns every coder's username keyed by id, for building
// coder filter dropdowns.
func (e *Executor) CoderUsernames(ctx context.Context) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "search.Executor.CoderUsernames")
	defer span.End()

	return e.coders.UsernameMap(ctx)
}

// canonicalPredicateIDs compiles one filter clause into its own id-set query.
func (e *Executor) canonicalPredicateIDs(ctx context.Context, filter models.FilterClause) (map[string]struct{}, error) {
	loc, err := Resolve(ModeCanonical, filter.Field)
	if err != nil {
		return nil, err
	}

	value := filter.Value
	if loc.Kind == CoderReference {
		c, err := e.coders.GetByUsername(ctx, value)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, httperror.NewHTTPError(http.StatusNotFound, "unknown coder "+value)
		}
		value = c.ID
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	switch loc.Kind {
	case PivotedValue:
		sb.Select("DISTINCT fl.canonical_event_id")
		sb.From("field_links fl")
		sb.JoinWithOption(sqlbuilder.InnerJoin, "field_records fr", "fr.id = fl.field_record_id")
		expr, err := Compile(sb, loc, filter.Comparator, value)
		if err != nil {
			return nil, err
		}
		sb.Where(sb.Equal("fr.variable", loc.Variable), expr)
	case SourceEventColumn:
		sb.Select("DISTINCT fl.canonical_event_id")
		sb.From("field_links fl")
		sb.JoinWithOption(sqlbuilder.InnerJoin, "field_records fr", "fr.id = fl.field_record_id")
		expr, err := Compile(sb, loc, filter.Comparator, value)
		if err != nil {
			return nil, err
		}
		sb.Where(expr)
	default:
		sb.Select("ce.id")
		sb.From("canonical_events ce")
		expr, err := Compile(sb, loc, filter.Comparator, value)
		if err != nil {
			return nil, err
		}
		sb.Where(expr)
	}

	query, args := sb.Build()
	ids, err := e.canonicalEvents.SearchIDs(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return toSet(ids), nil
}

// validate enforces the clause budgets and the at-least-one-predicate rule,
// returning the parsed free-text expression.
func (e *Executor) validate(req models.SearchRequest) (*TextExpression, error) {
	if len(req.Filters) > 4 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "at most 4 filters are allowed")
	}
	if len(req.Sorts) > 4 {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "at most 4 sorts are allowed")
	}
	text := ParseFreeText(req.FreeText)
	if len(req.Filters) == 0 && text == nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "at least one filter or free-text term is required")
	}
	return text, nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// intersect folds the id sets, keeping ids present in every set.
func intersect(sets []map[string]struct{}) []string {
	if len(sets) == 0 {
		return nil
	}

	smallest := sets[0]
	for _, set := range sets[1:] {
		if len(set) < len(smallest) {
			smallest = set
		}
	}

	var matched []string
	for id := range smallest {
		inAll := true
		for _, set := range sets {
			if _, ok := set[id]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			matched = append(matched, id)
		}
	}
	return matched
}
