package canonicalevent

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

var columns = []string{"id", "coder_id", "key", "description", "notes", "last_updated"}

// Repository handles canonical event rows
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new canonical event repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new canonical event. A duplicate key is a conflict.
func (r *Repository) Create(ctx context.Context, coderID string, req models.CreateCanonicalEventRequest) (*models.CanonicalEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicalevent.Repository.Create")
	defer span.End()

	event := models.CanonicalEvent{
		ID:          uuid.New().String(),
		CoderID:     coderID,
		Key:         req.Key,
		Description: req.Description,
		Notes:       req.Notes,
		LastUpdated: time.Now().UTC(),
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("canonical_events")
	ib.Cols("id", "coder_id", "key", "description", "notes", "last_updated")
	ib.Values(event.ID, event.CoderID, event.Key, event.Description, event.Notes, event.LastUpdated)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, httperror.NewHTTPError(http.StatusConflict, "a canonical event with that key already exists")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"key": req.Key}).Error("Failed to create canonical event")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create canonical event")
	}
	return &event, nil
}

// Update rewrites the mutable columns of a canonical event and bumps
// last_updated. A duplicate key is a conflict.
func (r *Repository) Update(ctx context.Context, id string, req models.UpdateCanonicalEventRequest) error {
	ctx, span := tracing.StartSpan(ctx, "canonicalevent.Repository.Update")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("canonical_events")
	ub.Set(
		ub.Assign("key", req.Key),
		ub.Assign("description", req.Description),
		ub.Assign("notes", req.Notes),
		ub.Assign("last_updated", time.Now().UTC()),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return httperror.NewHTTPError(http.StatusConflict, "a canonical event with that key already exists")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to update canonical event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update canonical event")
	}

	count, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read affected rows")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update canonical event")
	}
	if count == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "canonical event not found")
	}
	return nil
}

// Touch bumps last_updated, recording that the record's link set changed.
func (r *Repository) Touch(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "canonicalevent.Repository.Touch")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("canonical_events")
	ub.Set(ub.Assign("last_updated", time.Now().UTC()))
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to touch canonical event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update canonical event")
	}
	return nil
}

// GetByID retrieves a canonical event by id. Returns nil when not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.CanonicalEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicalevent.Repository.GetByID")
	defer span.End()

	return r.getOne(ctx, "id", id)
}

// GetByKey retrieves a canonical event by its unique key. Returns nil when
// not found.
func (r *Repository) GetByKey(ctx context.Context, key string) (*models.CanonicalEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicalevent.Repository.GetByKey")
	defer span.End()

	return r.getOne(ctx, "key", key)
}

func (r *Repository) getOne(ctx context.Context, column, value string) (*models.CanonicalEvent, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("canonical_events")
	sb.Where(sb.Equal(column, value))

	query, args := sb.Build()
	var event models.CanonicalEvent
	if err := r.db.GetContext(ctx, &event, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{column: value}).Error("Failed to get canonical event")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get canonical event")
	}
	return &event, nil
}

// GetByIDs loads canonical events by id, ordered by the given columns. The
// caller is responsible for only passing validated sort columns.
func (r *Repository) GetByIDs(ctx context.Context, ids []string, orderBy []string) ([]models.CanonicalEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicalevent.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return []models.CanonicalEvent{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("canonical_events")
	sb.Where(sb.In("id", sqlbuilder.Flatten(ids)...))
	if len(orderBy) > 0 {
		sb.OrderBy(orderBy...)
	} else {
		sb.OrderBy("key")
	}

	query, args := sb.Build()
	var events []models.CanonicalEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load canonical events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load canonical events")
	}
	return events, nil
}

// SearchIDs executes a prepared id-set query produced by the search planner.
func (r *Repository) SearchIDs(ctx context.Context, query string, args []any) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicalevent.Repository.SearchIDs")
	defer span.End()

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to execute canonical event search")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search canonical events")
	}
	return ids, nil
}

// AutocompleteKeys returns every key containing the term, ordered.
func (r *Repository) AutocompleteKeys(ctx context.Context, term string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "canonicalevent.Repository.AutocompleteKeys")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("key")
	sb.From("canonical_events")
	sb.Where(sb.Like("key", "%"+term+"%"))
	sb.OrderBy("key")

	query, args := sb.Build()
	var keys []string
	if err := r.db.SelectContext(ctx, &keys, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to autocomplete keys")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to autocomplete keys")
	}
	return keys, nil
}

// Delete removes the canonical event row. The reconcile service clears the
// dependent links, edges and recency rows first.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "canonicalevent.Repository.Delete")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("canonical_events")
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to delete canonical event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete canonical event")
	}
	return nil
}
