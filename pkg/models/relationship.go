package models

import "time"

// RelationshipEdge is a typed directed edge between two canonical events.
// Unique per (from, to, type). Cycles and differing-alias self-links are not
// prevented; symmetric relationship types make them legitimate.
type RelationshipEdge struct {
	ID               string    `json:"id" db:"id"`
	CoderID          string    `json:"coder_id" db:"coder_id"`
	CanonicalIDFrom  string    `json:"canonical_id_from" db:"canonical_id_from"`
	CanonicalIDTo    string    `json:"canonical_id_to" db:"canonical_id_to"`
	RelationshipType string    `json:"relationship_type" db:"relationship_type"`
	Timestamp        time.Time `json:"timestamp" db:"timestamp"`
}

// AddRelationshipRequest creates an edge between two canonical events
// referenced by their human-entered keys.
type AddRelationshipRequest struct {
	Key1 string `json:"key1" validate:"required"`
	Key2 string `json:"key2" validate:"required"`
	Type string `json:"type" validate:"required"`
}

// DeleteRelationshipRequest removes an edge by its exact (from, to, type).
type DeleteRelationshipRequest struct {
	CanonicalIDFrom string `json:"canonical_id_from" validate:"required"`
	CanonicalIDTo   string `json:"canonical_id_to" validate:"required"`
	Type            string `json:"type" validate:"required"`
}

// HierarchyNode pairs a canonical event with the edge that places it in the
// hierarchy view.
type HierarchyNode struct {
	Event CanonicalEvent   `json:"event"`
	Edge  RelationshipEdge `json:"edge"`
}

// HierarchyView is the two-level materialized hierarchy around one canonical
// event: its parents, its children, and its grandchildren indexed by the
// child they hang off of. Deeper ancestry is deliberately not traversed.
type HierarchyView struct {
	ID            string                     `json:"id"`
	Key           string                     `json:"key"`
	Parents       []HierarchyNode            `json:"parents"`
	Children      []HierarchyNode            `json:"children"`
	Grandchildren map[string][]HierarchyNode `json:"grandchildren"`
}
