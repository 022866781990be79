package events

import (
	"context"
	"testing"

	"github.com/Ramsey-B/aster/pkg/models"
)

func TestEmitterWithoutProducerIsInert(t *testing.T) {
	ctx := context.Background()
	event := &models.CanonicalEvent{ID: "c1", Key: "selma-march"}

	var nilEmitter *Emitter
	nilEmitter.EmitCanonical(ctx, EventTypeCanonicalCreated, event, "coder-1")

	disabled := NewEmitter(nil, nil)
	disabled.EmitCanonical(ctx, EventTypeCanonicalCreated, event, "coder-1")
	disabled.EmitLink(ctx, EventTypeLinkCreated, &models.FieldLink{ID: "l1"})
	disabled.EmitRelationship(ctx, EventTypeRelationshipDeleted, &models.RelationshipEdge{ID: "r1"})
	disabled.EmitFlag(ctx, &models.EventFlag{ID: "f1", Flag: "duplicate"})
}
