package models

import (
	"strings"
	"time"
)

// Coder access levels. Adjudication requires AccessLevelAdjudicator or above.
const (
	AccessLevelCoder       = 1
	AccessLevelAdjudicator = 2
	AccessLevelAdmin       = 3
)

// Coder is a reviewer account. Managed by the session layer; read-only here.
type Coder struct {
	ID          string    `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	AccessLevel int       `json:"access_level" db:"access_level"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// IsDummyUsername reports whether a username belongs to an adjudication
// placeholder account. Placeholder accounts follow the "adj" naming
// convention; field values authored by them were synthesized during
// adjudication rather than coded from the article text.
func IsDummyUsername(username string) bool {
	return strings.Contains(username, "adj")
}

// IsDummy reports whether this coder is an adjudication placeholder account.
func (c *Coder) IsDummy() bool {
	return IsDummyUsername(c.Username)
}

// IsAdjudicator reports whether this coder can use the adjudication surface.
func (c *Coder) IsAdjudicator() bool {
	return c.AccessLevel >= AccessLevelAdjudicator
}
