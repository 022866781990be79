package recentevent

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Repository maintains the per-coder recency bookmarks for candidate and
// canonical events
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new recent event repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// TouchCandidate records that the coder just viewed a candidate event
func (r *Repository) TouchCandidate(ctx context.Context, coderID, eventID string) error {
	ctx, span := tracing.StartSpan(ctx, "recentevent.Repository.TouchCandidate")
	defer span.End()

	return r.touch(ctx, "recent_candidate_events", "candidate_event_id", coderID, eventID)
}

// TouchCanonical records that the coder just viewed a canonical event
func (r *Repository) TouchCanonical(ctx context.Context, coderID, canonicalEventID string) error {
	ctx, span := tracing.StartSpan(ctx, "recentevent.Repository.TouchCanonical")
	defer span.End()

	return r.touch(ctx, "recent_canonical_events", "canonical_event_id", coderID, canonicalEventID)
}

// touch collapses to a single bookmark row per (coder, event): the existing
// row is refreshed in place, otherwise one is inserted.
func (r *Repository) touch(ctx context.Context, table, eventColumn, coderID, eventID string) error {
	now := time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(ub.Assign("last_accessed", now))
	ub.Where(
		ub.Equal("coder_id", coderID),
		ub.Equal(eventColumn, eventID),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"coder_id": coderID,
			"event_id": eventID,
		}).Error("Failed to refresh recency bookmark")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record recent event")
	}
	count, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read affected rows")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record recent event")
	}
	if count > 0 {
		return nil
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("id", "coder_id", eventColumn, "last_accessed")
	ib.Values(uuid.New().String(), coderID, eventID, now)

	query, args = ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			// lost a race with a concurrent touch; the bookmark exists
			return nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"coder_id": coderID,
			"event_id": eventID,
		}).Error("Failed to insert recency bookmark")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to record recent event")
	}
	return nil
}

// RecentCandidateIndexes returns the coder's most recently viewed candidate
// events as index rows, newest first.
func (r *Repository) RecentCandidateIndexes(ctx context.Context, coderID string, limit int) ([]models.CandidateEventIndex, error) {
	ctx, span := tracing.StartSpan(ctx, "recentevent.Repository.RecentCandidateIndexes")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"cei.id", "cei.candidate_event_id", "cei.coder_id", "cei.article_id", "cei.article_desc",
		"cei.description", "cei.location", "cei.start_date", "cei.publication", "cei.pub_date",
		"cei.title", "cei.form", "cei.issue", "cei.racial_issue",
	)
	sb.From("recent_candidate_events rce")
	sb.JoinWithOption(sqlbuilder.InnerJoin, "candidate_event_index cei", "cei.candidate_event_id = rce.candidate_event_id")
	sb.Where(sb.Equal("rce.coder_id", coderID))
	sb.OrderBy("rce.last_accessed DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var rows []models.CandidateEventIndex
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"coder_id": coderID}).Error("Failed to load recent candidate events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load recent events")
	}
	return rows, nil
}

// RecentCanonicalEvents returns the coder's most recently viewed canonical
// events, newest first.
func (r *Repository) RecentCanonicalEvents(ctx context.Context, coderID string, limit int) ([]models.CanonicalEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "recentevent.Repository.RecentCanonicalEvents")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("ce.id", "ce.coder_id", "ce.key", "ce.description", "ce.notes", "ce.last_updated")
	sb.From("recent_canonical_events rce")
	sb.JoinWithOption(sqlbuilder.InnerJoin, "canonical_events ce", "ce.id = rce.canonical_event_id")
	sb.Where(sb.Equal("rce.coder_id", coderID))
	sb.OrderBy("rce.last_accessed DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var events []models.CanonicalEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"coder_id": coderID}).Error("Failed to load recent canonical events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load recent events")
	}
	return events, nil
}

// DeleteByCanonical removes every coder's bookmark of a canonical event.
// Part of the canonical delete cascade.
func (r *Repository) DeleteByCanonical(ctx context.Context, canonicalEventID string) error {
	ctx, span := tracing.StartSpan(ctx, "recentevent.Repository.DeleteByCanonical")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("recent_canonical_events")
	db.Where(db.Equal("canonical_event_id", canonicalEventID))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"canonical_event_id": canonicalEventID}).Error("Failed to delete recency bookmarks")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete recent events")
	}
	return nil
}
