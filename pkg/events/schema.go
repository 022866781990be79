package events

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// EventType defines the type of adjudication event
type EventType string

const (
	EventTypeCanonicalCreated EventType = "canonical.created"
	EventTypeCanonicalUpdated EventType = "canonical.updated"
	EventTypeCanonicalDeleted EventType = "canonical.deleted"

	EventTypeLinkCreated EventType = "link.created"
	EventTypeLinkDeleted EventType = "link.deleted"

	EventTypeRelationshipCreated EventType = "relationship.created"
	EventTypeRelationshipDeleted EventType = "relationship.deleted"

	EventTypeFlagSet EventType = "flag.set"
)
