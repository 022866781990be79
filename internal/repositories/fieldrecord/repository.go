package fieldrecord

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

var columns = []string{"id", "article_id", "candidate_event_id", "variable", "value", "text", "coder_id", "timestamp"}

// Repository handles field record reads and placeholder writes. Coded values
// are produced upstream by primary coding; adjudication only adds the link
// placeholder records.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new field record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a field record by id. Returns nil when not found.
func (r *Repository) Get(ctx context.Context, id string) (*models.FieldRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldrecord.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("field_records")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var record models.FieldRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get field record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get field record")
	}
	return &record, nil
}

// FindLink returns the coder's link placeholder record for an article, or nil
// when the coder has never whole-event linked that article.
func (r *Repository) FindLink(ctx context.Context, articleID, coderID string) (*models.FieldRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldrecord.Repository.FindLink")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("field_records")
	sb.Where(
		sb.Equal("article_id", articleID),
		sb.Equal("coder_id", coderID),
		sb.Equal("variable", models.LinkVariable),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var record models.FieldRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"article_id": articleID,
			"coder_id":   coderID,
		}).Error("Failed to find link record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find link record")
	}
	return &record, nil
}

// CreateLink inserts the link placeholder record binding a candidate event to
// its article for the given coder.
func (r *Repository) CreateLink(ctx context.Context, eventID, articleID, coderID string) (*models.FieldRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldrecord.Repository.CreateLink")
	defer span.End()

	record := models.FieldRecord{
		ID:               uuid.New().String(),
		ArticleID:        articleID,
		CandidateEventID: eventID,
		Variable:         models.LinkVariable,
		Value:            models.LinkValue,
		CoderID:          coderID,
		Timestamp:        time.Now().UTC(),
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("field_records")
	ib.Cols("id", "article_id", "candidate_event_id", "variable", "value", "coder_id", "timestamp")
	ib.Values(record.ID, record.ArticleID, record.CandidateEventID, record.Variable, record.Value, record.CoderID, record.Timestamp)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"article_id": articleID,
			"coder_id":   coderID,
		}).Error("Failed to create link record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create link record")
	}
	return &record, nil
}

// ListByEventIDs loads every field record for the given candidate events.
func (r *Repository) ListByEventIDs(ctx context.Context, eventIDs []string) ([]models.FieldRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldrecord.Repository.ListByEventIDs")
	defer span.End()

	if len(eventIDs) == 0 {
		return []models.FieldRecord{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("field_records")
	sb.Where(sb.In("candidate_event_id", sqlbuilder.Flatten(eventIDs)...))
	sb.OrderBy("variable", "timestamp")

	query, args := sb.Build()
	var records []models.FieldRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list field records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list field records")
	}
	return records, nil
}

// DeleteByIDs removes field records by id. Only ever called for placeholder
// records whose dependent links were removed first.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []string) error {
	ctx, span := tracing.StartSpan(ctx, "fieldrecord.Repository.DeleteByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("field_records")
	db.Where(db.In("id", sqlbuilder.Flatten(ids)...))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete field records")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete field records")
	}
	return nil
}

// ListLinkRecordIDs returns the ids of every link placeholder record for an
// article, across all coders. Used when unlinking a whole article.
func (r *Repository) ListLinkRecordIDs(ctx context.Context, articleID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldrecord.Repository.ListLinkRecordIDs")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id")
	sb.From("field_records")
	sb.Where(
		sb.Equal("article_id", articleID),
		sb.Equal("variable", models.LinkVariable),
	)

	query, args := sb.Build()
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"article_id": articleID}).Error("Failed to list link records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list link records")
	}
	return ids, nil
}
