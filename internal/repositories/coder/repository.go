package coder

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/aster/pkg/database"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Repository handles coder account reads. Accounts are managed by the session
// layer; the adjudication core only resolves and displays them.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new coder repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetByUsername retrieves a coder by username. Returns nil when not found.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*models.Coder, error) {
	ctx, span := tracing.StartSpan(ctx, "coder.Repository.GetByUsername")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "username", "access_level", "created_at")
	sb.From("coders")
	sb.Where(sb.Equal("username", username))

	query, args := sb.Build()
	var c models.Coder
	if err := r.db.GetContext(ctx, &c, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"username": username}).Error("Failed to get coder by username")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get coder")
	}
	return &c, nil
}

// UsernameMap returns every coder's username keyed by id, for display and for
// the is_dummy provenance heuristic.
func (r *Repository) UsernameMap(ctx context.Context) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "coder.Repository.UsernameMap")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "username", "access_level", "created_at")
	sb.From("coders")

	query, args := sb.Build()
	var coders []models.Coder
	if err := r.db.SelectContext(ctx, &coders, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list coders")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list coders")
	}

	users := make(map[string]string, len(coders))
	for _, c := range coders {
		users[c.ID] = c.Username
	}
	return users, nil
}
