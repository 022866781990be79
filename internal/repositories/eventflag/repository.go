package eventflag

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

// Repository handles adjudication flags. A candidate event carries at most
// one flag at a time; setting a new one replaces whatever was there.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new event flag repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Set replaces the flag on a candidate event
func (r *Repository) Set(ctx context.Context, coderID, eventID, flag string) (*models.EventFlag, error) {
	ctx, span := tracing.StartSpan(ctx, "eventflag.Repository.Set")
	defer span.End()

	if err := r.Clear(ctx, eventID); err != nil {
		return nil, err
	}

	record := models.EventFlag{
		ID:               uuid.New().String(),
		CoderID:          coderID,
		CandidateEventID: eventID,
		Flag:             flag,
		Timestamp:        time.Now().UTC(),
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("event_flags")
	ib.Cols("id", "coder_id", "candidate_event_id", "flag", "timestamp")
	ib.Values(record.ID, record.CoderID, record.CandidateEventID, record.Flag, record.Timestamp)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, httperror.NewHTTPError(http.StatusConflict, "flag was changed by a concurrent request")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"candidate_event_id": eventID,
			"flag":               flag,
		}).Error("Failed to set event flag")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to set flag")
	}
	return &record, nil
}

// Clear removes any flag from a candidate event
func (r *Repository) Clear(ctx context.Context, eventID string) error {
	ctx, span := tracing.StartSpan(ctx, "eventflag.Repository.Clear")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("event_flags")
	db.Where(db.Equal("candidate_event_id", eventID))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"candidate_event_id": eventID}).Error("Failed to clear event flag")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to clear flag")
	}
	return nil
}

// MapByEventIDs returns the current flag per candidate event id
func (r *Repository) MapByEventIDs(ctx context.Context, eventIDs []string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "eventflag.Repository.MapByEventIDs")
	defer span.End()

	if len(eventIDs) == 0 {
		return map[string]string{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "coder_id", "candidate_event_id", "flag", "timestamp")
	sb.From("event_flags")
	sb.Where(sb.In("candidate_event_id", sqlbuilder.Flatten(eventIDs)...))

	query, args := sb.Build()
	var flags []models.EventFlag
	if err := r.db.SelectContext(ctx, &flags, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load event flags")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load flags")
	}

	byEvent := make(map[string]string, len(flags))
	for _, f := range flags {
		byEvent[f.CandidateEventID] = f.Flag
	}
	return byEvent, nil
}
