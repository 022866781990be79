package fieldlink

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

// LinkedValueRow is one linked field record of a canonical event joined with
// its provenance, raw from the store.
type LinkedValueRow struct {
	LinkID           string    `db:"link_id"`
	Variable         string    `db:"variable"`
	Value            string    `db:"value"`
	Text             *string   `db:"text"`
	Timestamp        time.Time `db:"timestamp"`
	CandidateEventID string    `db:"candidate_event_id"`
	Username         string    `db:"username"`
}

// LinkedIndexRow is one linked candidate event index row tagged with the
// canonical event it is linked into.
type LinkedIndexRow struct {
	CanonicalEventID string `db:"link_canonical_event_id"`
	models.CandidateEventIndex
}

// Repository handles field link provenance edges
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new field link repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a link between a field record and a canonical event. Linking
// the same pair twice is a conflict.
func (r *Repository) Create(ctx context.Context, coderID, canonicalEventID, fieldRecordID string) (*models.FieldLink, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldlink.Repository.Create")
	defer span.End()

	link := models.FieldLink{
		ID:               uuid.New().String(),
		CoderID:          coderID,
		CanonicalEventID: canonicalEventID,
		FieldRecordID:    fieldRecordID,
		Timestamp:        time.Now().UTC(),
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("field_links")
	ib.Cols("id", "coder_id", "canonical_event_id", "field_record_id", "timestamp")
	ib.Values(link.ID, link.CoderID, link.CanonicalEventID, link.FieldRecordID, link.Timestamp)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, httperror.NewHTTPError(http.StatusConflict, "field record is already linked to that canonical event")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"canonical_event_id": canonicalEventID,
			"field_record_id":    fieldRecordID,
		}).Error("Failed to create field link")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create field link")
	}
	return &link, nil
}

// Get retrieves a field link by id. Returns nil when not found.
func (r *Repository) Get(ctx context.Context, id string) (*models.FieldLink, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldlink.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "coder_id", "canonical_event_id", "field_record_id", "timestamp")
	sb.From("field_links")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var link models.FieldLink
	if err := r.db.GetContext(ctx, &link, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get field link")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get field link")
	}
	return &link, nil
}

// Delete removes a field link by id
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "fieldlink.Repository.Delete")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("field_links")
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to delete field link")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete field link")
	}
	count, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read affected rows")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete field link")
	}
	if count == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "field link not found")
	}
	return nil
}

// DeleteByCanonical removes every link into a canonical event. Part of the
// canonical delete cascade.
func (r *Repository) DeleteByCanonical(ctx context.Context, canonicalEventID string) error {
	ctx, span := tracing.StartSpan(ctx, "fieldlink.Repository.DeleteByCanonical")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("field_links")
	db.Where(db.Equal("canonical_event_id", canonicalEventID))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"canonical_event_id": canonicalEventID}).Error("Failed to delete field links")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete field links")
	}
	return nil
}

// DeleteByRecordIDs removes every link from the given field records,
// regardless of canonical event. Used when unlinking a whole article.
func (r *Repository) DeleteByRecordIDs(ctx context.Context, recordIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "fieldlink.Repository.DeleteByRecordIDs")
	defer span.End()

	if len(recordIDs) == 0 {
		return nil
	}

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("field_links")
	db.Where(db.In("field_record_id", sqlbuilder.Flatten(recordIDs)...))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete field links by record")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete field links")
	}
	return nil
}

// Exists reports whether the (canonical, record) pair is already linked
func (r *Repository) Exists(ctx context.Context, canonicalEventID, fieldRecordID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldlink.Repository.Exists")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id")
	sb.From("field_links")
	sb.Where(
		sb.Equal("canonical_event_id", canonicalEventID),
		sb.Equal("field_record_id", fieldRecordID),
	)

	query, args := sb.Build()
	var id string
	if err := r.db.GetContext(ctx, &id, query, args...); err != nil {
		if database.IsNoRows(err) {
			return false, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check field link")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check field link")
	}
	return true, nil
}

// ListLinkedValues loads every linked field record of a canonical event with
// its source event and linking coder's username.
func (r *Repository) ListLinkedValues(ctx context.Context, canonicalEventID string) ([]LinkedValueRow, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldlink.Repository.ListLinkedValues")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"fl.id AS link_id",
		"fr.variable",
		"fr.value",
		"fr.text",
		"fr.timestamp",
		"fr.candidate_event_id",
		"c.username",
	)
	sb.From("field_links fl")
	sb.JoinWithOption(sqlbuilder.InnerJoin, "field_records fr", "fr.id = fl.field_record_id")
	sb.JoinWithOption(sqlbuilder.InnerJoin, "coders c", "c.id = fl.coder_id")
	sb.Where(sb.Equal("fl.canonical_event_id", canonicalEventID))
	sb.OrderBy("fr.variable", "fr.timestamp")

	query, args := sb.Build()
	var rows []LinkedValueRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"canonical_event_id": canonicalEventID}).Error("Failed to list linked values")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list linked values")
	}
	return rows, nil
}

// ListLinkedIndexRows loads the candidate event index rows linked into the
// given canonical events, skipping whole-event placeholder records.
func (r *Repository) ListLinkedIndexRows(ctx context.Context, canonicalEventIDs []string) ([]LinkedIndexRow, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldlink.Repository.ListLinkedIndexRows")
	defer span.End()

	if len(canonicalEventIDs) == 0 {
		return []LinkedIndexRow{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"fl.canonical_event_id AS link_canonical_event_id",
		"cei.id",
		"cei.candidate_event_id",
		"cei.coder_id",
		"cei.article_id",
		"cei.article_desc",
		"cei.description",
		"cei.location",
		"cei.start_date",
		"cei.publication",
		"cei.pub_date",
		"cei.title",
		"cei.form",
		"cei.issue",
		"cei.racial_issue",
	)
	sb.From("field_links fl")
	sb.JoinWithOption(sqlbuilder.InnerJoin, "field_records fr", "fr.id = fl.field_record_id")
	sb.JoinWithOption(sqlbuilder.InnerJoin, "candidate_event_index cei", "cei.candidate_event_id = fr.candidate_event_id")
	sb.Where(
		sb.In("fl.canonical_event_id", sqlbuilder.Flatten(canonicalEventIDs)...),
		sb.NotEqual("fr.variable", models.LinkVariable),
	)

	query, args := sb.Build()
	var rows []LinkedIndexRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load linked candidate data")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load linked candidate data")
	}
	return rows, nil
}

// FindWholeEventLink returns the link between a canonical event and an
// article's placeholder record, or nil when none exists.
func (r *Repository) FindWholeEventLink(ctx context.Context, canonicalEventID, articleID string) (*models.FieldLink, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldlink.Repository.FindWholeEventLink")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("fl.id", "fl.coder_id", "fl.canonical_event_id", "fl.field_record_id", "fl.timestamp")
	sb.From("field_links fl")
	sb.JoinWithOption(sqlbuilder.InnerJoin, "field_records fr", "fr.id = fl.field_record_id")
	sb.Where(
		sb.Equal("fl.canonical_event_id", canonicalEventID),
		sb.Equal("fr.article_id", articleID),
		sb.Equal("fr.variable", models.LinkVariable),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var link models.FieldLink
	if err := r.db.GetContext(ctx, &link, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"canonical_event_id": canonicalEventID,
			"article_id":         articleID,
		}).Error("Failed to find whole event link")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find whole event link")
	}
	return &link, nil
}

// ListLinkedArticleIDs returns the distinct article ids whose placeholder
// records are linked into the canonical event.
func (r *Repository) ListLinkedArticleIDs(ctx context.Context, canonicalEventID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "fieldlink.Repository.ListLinkedArticleIDs")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("DISTINCT fr.article_id")
	sb.From("field_links fl")
	sb.JoinWithOption(sqlbuilder.InnerJoin, "field_records fr", "fr.id = fl.field_record_id")
	sb.Where(
		sb.Equal("fl.canonical_event_id", canonicalEventID),
		sb.Equal("fr.variable", models.LinkVariable),
	)
	sb.OrderBy("fr.article_id")

	query, args := sb.Build()
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"canonical_event_id": canonicalEventID}).Error("Failed to list linked articles")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list linked articles")
	}
	return ids, nil
}
