package models

import "time"

// Reserved field record values used by whole-event links. A placeholder
// record with the link variable carries no coded data; it exists only so a
// field link can reference the (article, coder) scope.
const (
	LinkVariable = "link"
	LinkValue    = "yes"
)

// CandidateEvent is one real-world event as perceived by one coder for one
// article. Created during primary coding, except for the lazily created
// placeholder events used by whole-event links.
type CandidateEvent struct {
	ID        string    `json:"id" db:"id"`
	ArticleID string    `json:"article_id" db:"article_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FieldRecord is one EAV row: a single coded value for one variable of one
// candidate event. Text carries the highlighted article passage when the
// coder selected one.
type FieldRecord struct {
	ID               string    `json:"id" db:"id"`
	ArticleID        string    `json:"article_id" db:"article_id"`
	CandidateEventID string    `json:"candidate_event_id" db:"candidate_event_id"`
	Variable         string    `json:"variable" db:"variable"`
	Value            string    `json:"value" db:"value"`
	Text             *string   `json:"text,omitempty" db:"text"`
	CoderID          string    `json:"coder_id" db:"coder_id"`
	Timestamp        time.Time `json:"timestamp" db:"timestamp"`
}

// DisplayValue prefers the highlighted passage over the raw coded value.
func (r *FieldRecord) DisplayValue() string {
	if r.Text != nil {
		return *r.Text
	}
	return r.Value
}

// CandidateEventIndex is the wide, queryable projection of a fixed subset of
// field record variables, keyed by candidate event. Populated by the external
// ETL process; only ever read here.
type CandidateEventIndex struct {
	ID               string     `json:"id" db:"id"`
	CandidateEventID string     `json:"candidate_event_id" db:"candidate_event_id"`
	CoderID          *string    `json:"coder_id,omitempty" db:"coder_id"`
	ArticleID        *string    `json:"article_id,omitempty" db:"article_id"`
	ArticleDesc      *string    `json:"article_desc,omitempty" db:"article_desc"`
	Description      *string    `json:"description,omitempty" db:"description"`
	Location         *string    `json:"location,omitempty" db:"location"`
	StartDate        *time.Time `json:"start_date,omitempty" db:"start_date"`
	Publication      *string    `json:"publication,omitempty" db:"publication"`
	PubDate          *time.Time `json:"pub_date,omitempty" db:"pub_date"`
	Title            *string    `json:"title,omitempty" db:"title"`
	Form             *string    `json:"form,omitempty" db:"form"`
	Issue            *string    `json:"issue,omitempty" db:"issue"`
	RacialIssue      *string    `json:"racial_issue,omitempty" db:"racial_issue"`
}

// FieldValue is one coded value of a candidate event variable, as shown in
// the adjudication grid.
type FieldValue struct {
	Value     string    `json:"value"`
	RecordID  string    `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CandidateEventDetail is the grid view of one candidate event: its index
// metadata plus every coded variable with all of its values.
type CandidateEventDetail struct {
	Metadata map[string]any          `json:"metadata"`
	Fields   map[string][]FieldValue `json:"fields"`
}

// LoadCandidateEventsRequest asks for the grid view of the given events.
type LoadCandidateEventsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}
