// Package events handles event emission for adjudication activity
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/kafka"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// Emitter publishes adjudication activity to the output topic. Emission is
// best-effort: consumers are downstream analytics, so a publish failure is
// logged and swallowed rather than failing the mutation that triggered it.
// A nil producer disables emission entirely.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitCanonical emits a canonical event lifecycle change
func (e *Emitter) EmitCanonical(ctx context.Context, eventType EventType, event *models.CanonicalEvent, coderID string) {
	data, _ := json.Marshal(map[string]any{
		"schema_version": SchemaVersion,
		"key":            event.Key,
		"description":    event.Description,
	})
	e.emit(ctx, eventType, event.ID, coderID, data)
}

// EmitLink emits a field link change
func (e *Emitter) EmitLink(ctx context.Context, eventType EventType, link *models.FieldLink) {
	data, _ := json.Marshal(map[string]any{
		"schema_version":     SchemaVersion,
		"canonical_event_id": link.CanonicalEventID,
		"field_record_id":    link.FieldRecordID,
	})
	e.emit(ctx, eventType, link.ID, link.CoderID, data)
}

// EmitRelationship emits a relationship edge change
func (e *Emitter) EmitRelationship(ctx context.Context, eventType EventType, edge *models.RelationshipEdge) {
	data, _ := json.Marshal(map[string]any{
		"schema_version":    SchemaVersion,
		"canonical_id_from": edge.CanonicalIDFrom,
		"canonical_id_to":   edge.CanonicalIDTo,
		"relationship_type": edge.RelationshipType,
	})
	e.emit(ctx, eventType, edge.ID, edge.CoderID, data)
}

// EmitFlag emits a flag change
func (e *Emitter) EmitFlag(ctx context.Context, flag *models.EventFlag) {
	data, _ := json.Marshal(map[string]any{
		"schema_version":     SchemaVersion,
		"candidate_event_id": flag.CandidateEventID,
		"flag":               flag.Flag,
	})
	e.emit(ctx, EventTypeFlagSet, flag.ID, flag.CoderID, data)
}

func (e *Emitter) emit(ctx context.Context, eventType EventType, key, coderID string, data json.RawMessage) {
	if e == nil || e.producer == nil {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emit")
	defer span.End()

	event := &kafka.AdjudicationEvent{
		EventType: string(eventType),
		Key:       key,
		CoderID:   coderID,
		Data:      data,
	}
	if err := e.producer.Publish(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
		}).Error("Failed to emit adjudication event")
	}
}
