package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Projection mirrors canonical events, their relationship edges and their
// provenance links into the graph store for exploratory queries. The
// relational store stays authoritative; projection failures are logged by the
// caller and never fail the originating mutation. A nil Projection disables
// mirroring.
type Projection struct {
	client *Client
	logger ectologger.Logger
}

// NewProjection creates a new graph projection
func NewProjection(client *Client, logger ectologger.Logger) *Projection {
	return &Projection{
		client: client,
		logger: logger,
	}
}

// UpsertCanonicalEvent mirrors a canonical event node
func (p *Projection) UpsertCanonicalEvent(ctx context.Context, event *models.CanonicalEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "graph.Projection.UpsertCanonicalEvent")
	defer span.End()

	notes := ""
	if event.Notes != nil {
		notes = *event.Notes
	}

	cypher := `
		MERGE (e:CanonicalEvent {id: $id})
		SET e.key = $key,
		    e.description = $description,
		    e.notes = $notes,
		    e.coder_id = $coder_id,
		    e.last_updated = $last_updated
		RETURN e
	`
	return p.write(ctx, cypher, map[string]any{
		"id":           event.ID,
		"key":          event.Key,
		"description":  event.Description,
		"notes":        notes,
		"coder_id":     event.CoderID,
		"last_updated": event.LastUpdated.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// DeleteCanonicalEvent removes a canonical event node and every edge on it
func (p *Projection) DeleteCanonicalEvent(ctx context.Context, id string) error {
	if p == nil || p.client == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "graph.Projection.DeleteCanonicalEvent")
	defer span.End()

	cypher := `MATCH (e:CanonicalEvent {id: $id}) DETACH DELETE e`
	return p.write(ctx, cypher, map[string]any{"id": id})
}

// UpsertRelationship mirrors a typed edge between two canonical events
func (p *Projection) UpsertRelationship(ctx context.Context, edge *models.RelationshipEdge) error {
	if p == nil || p.client == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "graph.Projection.UpsertRelationship")
	defer span.End()

	cypher := fmt.Sprintf(`
		MATCH (from:CanonicalEvent {id: $from_id})
		MATCH (to:CanonicalEvent {id: $to_id})
		MERGE (from)-[r:%s]->(to)
		SET r.id = $edge_id, r.coder_id = $coder_id
		RETURN r
	`, sanitizeRelType(edge.RelationshipType))
	return p.write(ctx, cypher, map[string]any{
		"from_id":  edge.CanonicalIDFrom,
		"to_id":    edge.CanonicalIDTo,
		"edge_id":  edge.ID,
		"coder_id": edge.CoderID,
	})
}

// DeleteRelationship removes the mirrored edge
func (p *Projection) DeleteRelationship(ctx context.Context, fromID, toID, relationshipType string) error {
	if p == nil || p.client == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "graph.Projection.DeleteRelationship")
	defer span.End()

	cypher := fmt.Sprintf(`
		MATCH (:CanonicalEvent {id: $from_id})-[r:%s]->(:CanonicalEvent {id: $to_id})
		DELETE r
	`, sanitizeRelType(relationshipType))
	return p.write(ctx, cypher, map[string]any{
		"from_id": fromID,
		"to_id":   toID,
	})
}

// UpsertLink mirrors a provenance link as an INCORPORATES edge from the
// canonical event to the source candidate event.
func (p *Projection) UpsertLink(ctx context.Context, link *models.FieldLink, candidateEventID string) error {
	if p == nil || p.client == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "graph.Projection.UpsertLink")
	defer span.End()

	cypher := `
		MATCH (ce:CanonicalEvent {id: $canonical_id})
		MERGE (cand:CandidateEvent {id: $candidate_id})
		MERGE (ce)-[r:INCORPORATES]->(cand)
		SET r.link_id = $link_id, r.coder_id = $coder_id
		RETURN r
	`
	return p.write(ctx, cypher, map[string]any{
		"canonical_id": link.CanonicalEventID,
		"candidate_id": candidateEventID,
		"link_id":      link.ID,
		"coder_id":     link.CoderID,
	})
}

func (p *Projection) write(ctx context.Context, cypher string, params map[string]any) error {
	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

// sanitizeRelType turns a free-form relationship type into a legal edge
// label. Cypher cannot parameterize labels, so the type is interpolated after
// stripping everything but word characters.
func sanitizeRelType(relationshipType string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(relationshipType) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else if r == '-' || r == ' ' {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "RELATED_TO"
	}
	return b.String()
}
