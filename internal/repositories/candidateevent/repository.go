package candidateevent

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

var indexColumns = []string{
	"id", "candidate_event_id", "coder_id", "article_id", "article_desc", "description",
	"location", "start_date", "publication", "pub_date", "title", "form", "issue", "racial_issue",
}

// Repository handles candidate event reads and placeholder creation
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new candidate event repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a candidate event by id. Returns nil when not found.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.CandidateEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "candidateevent.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "article_id", "created_at")
	sb.From("candidate_events")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var event models.CandidateEvent
	if err := r.db.GetContext(ctx, &event, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get candidate event")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get candidate event")
	}
	return &event, nil
}

// Create inserts a new candidate event shell for the given article. Used when
// linking a whole article that has no placeholder event for the coder yet.
func (r *Repository) Create(ctx context.Context, articleID string) (*models.CandidateEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "candidateevent.Repository.Create")
	defer span.End()

	event := models.CandidateEvent{
		ID:        uuid.New().String(),
		ArticleID: articleID,
		CreatedAt: time.Now().UTC(),
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("candidate_events")
	ib.Cols("id", "article_id", "created_at")
	ib.Values(event.ID, event.ArticleID, event.CreatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"article_id": articleID,
		}).Error("Failed to create candidate event")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create candidate event")
	}
	return &event, nil
}

// GetIndexByEventIDs loads the wide index projection for the given candidate
// event ids, preserving no particular order.
func (r *Repository) GetIndexByEventIDs(ctx context.Context, eventIDs []string) ([]models.CandidateEventIndex, error) {
	ctx, span := tracing.StartSpan(ctx, "candidateevent.Repository.GetIndexByEventIDs")
	defer span.End()

	if len(eventIDs) == 0 {
		return []models.CandidateEventIndex{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(indexColumns...)
	sb.From("candidate_event_index")
	sb.Where(sb.In("candidate_event_id", sqlbuilder.Flatten(eventIDs)...))

	query, args := sb.Build()
	var rows []models.CandidateEventIndex
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load candidate event index rows")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load candidate events")
	}
	return rows, nil
}

// SearchIndex executes a prepared index query. The query text is produced by
// the search planner; this layer only runs it and maps the rows.
func (r *Repository) SearchIndex(ctx context.Context, query string, args []any) ([]models.CandidateEventIndex, error) {
	ctx, span := tracing.StartSpan(ctx, "candidateevent.Repository.SearchIndex")
	defer span.End()

	var rows []models.CandidateEventIndex
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to execute candidate event search")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search candidate events")
	}
	return rows, nil
}
