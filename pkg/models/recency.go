package models

import "time"

// RecentCandidateEvent is a per-coder bookmark of the last time a candidate
// event was opened in the adjudication view. One live row per (coder, event).
type RecentCandidateEvent struct {
	ID               string    `json:"id" db:"id"`
	CoderID          string    `json:"coder_id" db:"coder_id"`
	CandidateEventID string    `json:"candidate_event_id" db:"candidate_event_id"`
	LastAccessed     time.Time `json:"last_accessed" db:"last_accessed"`
}

// TouchRecencyRequest records that the caller just viewed the given
// candidate events and, optionally, the canonical event with the given key.
type TouchRecencyRequest struct {
	CandidateIDs []string `json:"candidate_ids"`
	CanonicalKey string   `json:"canonical_key"`
}

// RecentCanonicalEvent is the canonical-event variant of the recency
// bookmark. One live row per (coder, event).
type RecentCanonicalEvent struct {
	ID               string    `json:"id" db:"id"`
	CoderID          string    `json:"coder_id" db:"coder_id"`
	CanonicalEventID string    `json:"canonical_event_id" db:"canonical_event_id"`
	LastAccessed     time.Time `json:"last_accessed" db:"last_accessed"`
}
