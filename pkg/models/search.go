package models

// FilterClause is one (field, comparator, value) predicate of a search.
type FilterClause struct {
	Field      string `json:"field"`
	Comparator string `json:"comparator"`
	Value      string `json:"value"`
}

// SortClause is one (field, direction) ordering of a search result set.
// Direction is "asc" or "desc".
type SortClause struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// SearchRequest carries up to four filter clauses, up to four sort clauses
// and an optional free-text expression.
type SearchRequest struct {
	Filters  []FilterClause `json:"filters" validate:"max=4,dive"`
	Sorts    []SortClause   `json:"sorts" validate:"max=4,dive"`
	FreeText string         `json:"free_text"`
}

// CandidateSearchResponse returns matching candidate event index rows plus
// the live flag per event id.
type CandidateSearchResponse struct {
	Events     []CandidateEventIndex `json:"events"`
	Flags      map[string]string     `json:"flags"`
	TotalCount int                   `json:"total_count"`
}

// CanonicalSearchResponse returns matching canonical events plus, per
// canonical id, the index rows of the candidate events whose field data is
// linked into it (placeholder whole-event links excluded).
type CanonicalSearchResponse struct {
	Events        []CanonicalEvent                          `json:"events"`
	CandidateData map[string]map[string]CandidateEventIndex `json:"candidate_data"`
	TotalCount    int                                       `json:"total_count"`
}

// SearchVocabulary is the static filter/sort vocabulary served to the
// adjudication page for building search forms.
type SearchVocabulary struct {
	CandidateFilterFields []string   `json:"candidate_filter_fields"`
	CanonicalFilterFields []string   `json:"canonical_filter_fields"`
	CanonicalSortFields   []string   `json:"canonical_sort_fields"`
	Comparators           [][]string `json:"comparators"`
}
