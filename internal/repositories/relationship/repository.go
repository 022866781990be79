package relationship

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

// hierarchyRow flattens an edge joined with the canonical event on its far
// side so sqlx can scan it in one pass.
type hierarchyRow struct {
	EventID          string    `db:"event_id"`
	EventCoderID     string    `db:"event_coder_id"`
	EventKey         string    `db:"event_key"`
	EventDescription string    `db:"event_description"`
	EventNotes       *string   `db:"event_notes"`
	EventLastUpdated time.Time `db:"event_last_updated"`
	EdgeID           string    `db:"edge_id"`
	EdgeCoderID      string    `db:"edge_coder_id"`
	CanonicalIDFrom  string    `db:"canonical_id_from"`
	CanonicalIDTo    string    `db:"canonical_id_to"`
	RelationshipType string    `db:"relationship_type"`
	EdgeTimestamp    time.Time `db:"edge_timestamp"`
}

func (row hierarchyRow) toNode() models.HierarchyNode {
	return models.HierarchyNode{
		Event: models.CanonicalEvent{
			ID:          row.EventID,
			CoderID:     row.EventCoderID,
			Key:         row.EventKey,
			Description: row.EventDescription,
			Notes:       row.EventNotes,
			LastUpdated: row.EventLastUpdated,
		},
		Edge: models.RelationshipEdge{
			ID:               row.EdgeID,
			CoderID:          row.EdgeCoderID,
			CanonicalIDFrom:  row.CanonicalIDFrom,
			CanonicalIDTo:    row.CanonicalIDTo,
			RelationshipType: row.RelationshipType,
			Timestamp:        row.EdgeTimestamp,
		},
	}
}

// Repository handles typed directed edges between canonical events. In the
// hierarchy view an event's parents sit on the from side of edges pointing at
// it, and its children on the to side of edges leaving it.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new relationship repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an edge. The same (from, to, type) twice is a conflict.
func (r *Repository) Create(ctx context.Context, coderID, fromID, toID, relationshipType string) (*models.RelationshipEdge, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Create")
	defer span.End()

	edge := models.RelationshipEdge{
		ID:               uuid.New().String(),
		CoderID:          coderID,
		CanonicalIDFrom:  fromID,
		CanonicalIDTo:    toID,
		RelationshipType: relationshipType,
		Timestamp:        time.Now().UTC(),
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("relationship_edges")
	ib.Cols("id", "coder_id", "canonical_id_from", "canonical_id_to", "relationship_type", "timestamp")
	ib.Values(edge.ID, edge.CoderID, edge.CanonicalIDFrom, edge.CanonicalIDTo, edge.RelationshipType, edge.Timestamp)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, httperror.NewHTTPError(http.StatusConflict, "that relationship already exists")
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"canonical_id_from": fromID,
			"canonical_id_to":   toID,
			"relationship_type": relationshipType,
		}).Error("Failed to create relationship edge")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create relationship")
	}
	return &edge, nil
}

// Delete removes the edge with the exact (from, to, type)
func (r *Repository) Delete(ctx context.Context, fromID, toID, relationshipType string) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Delete")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("relationship_edges")
	db.Where(
		db.Equal("canonical_id_from", fromID),
		db.Equal("canonical_id_to", toID),
		db.Equal("relationship_type", relationshipType),
	)

	query, args := db.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"canonical_id_from": fromID,
			"canonical_id_to":   toID,
			"relationship_type": relationshipType,
		}).Error("Failed to delete relationship edge")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete relationship")
	}
	count, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read affected rows")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete relationship")
	}
	if count == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, "relationship not found")
	}
	return nil
}

// DeleteByCanonical removes every edge touching a canonical event in either
// direction. Part of the canonical delete cascade.
func (r *Repository) DeleteByCanonical(ctx context.Context, canonicalEventID string) error {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.DeleteByCanonical")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("relationship_edges")
	db.Where(db.Or(
		db.Equal("canonical_id_from", canonicalEventID),
		db.Equal("canonical_id_to", canonicalEventID),
	))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"canonical_event_id": canonicalEventID}).Error("Failed to delete relationship edges")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete relationships")
	}
	return nil
}

// ParentsOf loads the events whose edges point at this one, with the
// connecting edges.
func (r *Repository) ParentsOf(ctx context.Context, canonicalEventID string) ([]models.HierarchyNode, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ParentsOf")
	defer span.End()

	sb := r.hierarchySelect("ce.id = re.canonical_id_from")
	sb.Where(sb.Equal("re.canonical_id_to", canonicalEventID))
	sb.OrderBy("re.relationship_type", "ce.key")

	return r.selectNodes(ctx, sb)
}

// ChildrenOf loads the events this one's edges point at, with the connecting
// edges.
func (r *Repository) ChildrenOf(ctx context.Context, canonicalEventID string) ([]models.HierarchyNode, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ChildrenOf")
	defer span.End()

	sb := r.hierarchySelect("ce.id = re.canonical_id_to")
	sb.Where(sb.Equal("re.canonical_id_from", canonicalEventID))
	sb.OrderBy("re.relationship_type", "ce.key")

	return r.selectNodes(ctx, sb)
}

// EdgesFrom loads, in one query, every edge originating at any of the given
// events, with the event on the far side. The caller groups the result by
// Edge.CanonicalIDFrom.
func (r *Repository) EdgesFrom(ctx context.Context, canonicalEventIDs []string) ([]models.HierarchyNode, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.EdgesFrom")
	defer span.End()

	if len(canonicalEventIDs) == 0 {
		return []models.HierarchyNode{}, nil
	}

	sb := r.hierarchySelect("ce.id = re.canonical_id_to")
	sb.Where(sb.In("re.canonical_id_from", sqlbuilder.Flatten(canonicalEventIDs)...))
	sb.OrderBy("re.relationship_type", "ce.key")

	return r.selectNodes(ctx, sb)
}

func (r *Repository) hierarchySelect(joinCondition string) *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"ce.id AS event_id",
		"ce.coder_id AS event_coder_id",
		"ce.key AS event_key",
		"ce.description AS event_description",
		"ce.notes AS event_notes",
		"ce.last_updated AS event_last_updated",
		"re.id AS edge_id",
		"re.coder_id AS edge_coder_id",
		"re.canonical_id_from",
		"re.canonical_id_to",
		"re.relationship_type",
		"re.timestamp AS edge_timestamp",
	)
	sb.From("relationship_edges re")
	sb.JoinWithOption(sqlbuilder.InnerJoin, "canonical_events ce", joinCondition)
	return sb
}

func (r *Repository) selectNodes(ctx context.Context, sb *sqlbuilder.SelectBuilder) ([]models.HierarchyNode, error) {
	query, args := sb.Build()
	var rows []hierarchyRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load hierarchy edges")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load relationships")
	}

	nodes := make([]models.HierarchyNode, 0, len(rows))
	for _, row := range rows {
		nodes = append(nodes, row.toNode())
	}
	return nodes, nil
}
