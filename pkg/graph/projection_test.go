package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/aster/pkg/models"
)

func TestSanitizeRelType(t *testing.T) {
	assert.Equal(t, "PART_OF", sanitizeRelType("part-of"))
	assert.Equal(t, "FOLLOW_UP", sanitizeRelType("follow up"))
	assert.Equal(t, "RESPONSE_TO", sanitizeRelType("RESPONSE_TO"))
	assert.Equal(t, "WAVE2", sanitizeRelType("wave2"))
	assert.Equal(t, "RELATED_TO", sanitizeRelType("!!!"))
	assert.Equal(t, "RELATED_TO", sanitizeRelType(""))
}

func TestNilProjectionIsInert(t *testing.T) {
	var p *Projection

	ctx := context.Background()
	assert.NoError(t, p.UpsertCanonicalEvent(ctx, &models.CanonicalEvent{ID: "c1", Key: "selma-march"}))
	assert.NoError(t, p.DeleteCanonicalEvent(ctx, "c1"))
	assert.NoError(t, p.UpsertRelationship(ctx, &models.RelationshipEdge{CanonicalIDFrom: "c1", CanonicalIDTo: "c2", RelationshipType: "part-of"}))
	assert.NoError(t, p.DeleteRelationship(ctx, "c1", "c2", "part-of"))
}

func TestClientlessProjectionIsInert(t *testing.T) {
	p := NewProjection(nil, nil)

	assert.NoError(t, p.UpsertCanonicalEvent(context.Background(), &models.CanonicalEvent{ID: "c1", Key: "selma-march"}))
}
