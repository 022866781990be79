package models

import "time"

// FlagCompleted marks a candidate event as fully adjudicated. Terminal in
// meaning but structurally just another flag value.
const FlagCompleted = "completed"

// EventFlag is a short status token on a candidate event. At most one live
// flag exists per event, enforced by delete-before-insert at write time.
type EventFlag struct {
	ID               string    `json:"id" db:"id"`
	CoderID          string    `json:"coder_id" db:"coder_id"`
	CandidateEventID string    `json:"candidate_event_id" db:"candidate_event_id"`
	Flag             string    `json:"flag" db:"flag"`
	Timestamp        time.Time `json:"timestamp" db:"timestamp"`
}

// SetFlagRequest sets the flag on a candidate event.
type SetFlagRequest struct {
	CandidateEventID string `json:"candidate_event_id" validate:"required"`
	Flag             string `json:"flag" validate:"required"`
}
