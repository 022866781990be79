package models

import "time"

// CanonicalEvent is the adjudicator-curated, deduplicated record that
// candidate event field data is linked into. Key is unique across all live
// canonical events at all times.
type CanonicalEvent struct {
	ID          string    `json:"id" db:"id"`
	CoderID     string    `json:"coder_id" db:"coder_id"`
	Key         string    `json:"key" db:"key"`
	Description string    `json:"description" db:"description"`
	Notes       *string   `json:"notes,omitempty" db:"notes"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// CreateCanonicalEventRequest is the request to create a canonical event.
type CreateCanonicalEventRequest struct {
	Key         string  `json:"key" validate:"required"`
	Description string  `json:"description"`
	Notes       *string `json:"notes,omitempty"`
}

// UpdateCanonicalEventRequest is the request to edit a canonical event.
// Renaming the key re-checks uniqueness against other live events.
type UpdateCanonicalEventRequest struct {
	Key         string  `json:"key" validate:"required"`
	Description string  `json:"description"`
	Notes       *string `json:"notes,omitempty"`
}

// FieldLink is a provenance edge recording that a specific field record was
// incorporated into a specific canonical event. The (canonical, record) pair
// is unique.
type FieldLink struct {
	ID               string    `json:"id" db:"id"`
	CoderID          string    `json:"coder_id" db:"coder_id"`
	CanonicalEventID string    `json:"canonical_event_id" db:"canonical_event_id"`
	FieldRecordID    string    `json:"field_record_id" db:"field_record_id"`
	Timestamp        time.Time `json:"timestamp" db:"timestamp"`
}

// LinkedValue is one linked field value of a canonical event, with its
// provenance. IsDummy marks values synthesized through the adjudication
// placeholder mechanism rather than coded by a reviewer.
type LinkedValue struct {
	LinkID        string    `json:"link_id"`
	Value         string    `json:"value"`
	Timestamp     time.Time `json:"timestamp"`
	SourceEventID string    `json:"source_event_id"`
	IsDummy       bool      `json:"is_dummy"`
}

// CanonicalEventDetail is the expanded grid view of one canonical event with
// every linked field value grouped by variable.
type CanonicalEventDetail struct {
	ID          string                   `json:"id"`
	Key         string                   `json:"key"`
	Description string                   `json:"description"`
	Notes       *string                  `json:"notes,omitempty"`
	Fields      map[string][]LinkedValue `json:"fields"`
}

// LinkWholeEventRequest links an article to a canonical event without
// choosing a specific field.
type LinkWholeEventRequest struct {
	ArticleID        string `json:"article_id" validate:"required"`
	CanonicalEventID string `json:"canonical_event_id" validate:"required"`
}

// LinkFieldRequest links one specific field record to a canonical event.
type LinkFieldRequest struct {
	FieldRecordID    string `json:"field_record_id" validate:"required"`
	CanonicalEventID string `json:"canonical_event_id" validate:"required"`
}
