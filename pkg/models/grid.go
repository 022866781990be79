package models

// LoadGridRequest asks for the combined adjudication grid: the candidate
// events under review plus, optionally, the canonical event being built.
type LoadGridRequest struct {
	CandidateIDs []string `json:"candidate_ids" validate:"required,min=1"`
	CanonicalKey string   `json:"canonical_key"`
}

// GridView is everything the adjudication grid renders in one load: candidate
// detail per event, live flags, and the canonical side when a key was given.
type GridView struct {
	Events         map[string]CandidateEventDetail `json:"events"`
	Flags          map[string]string               `json:"flags"`
	Canonical      *CanonicalEventDetail           `json:"canonical,omitempty"`
	LinkedArticles []string                        `json:"linked_articles,omitempty"`
}
