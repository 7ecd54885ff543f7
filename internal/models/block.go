package models

import "time"

// BlockEntry is one active or historical block on an identifier.
// At most one active entry exists per (identifier, dimension); blocking an
// already-blocked identifier updates the existing row instead of adding one.
type BlockEntry struct {
	ID         string     `db:"id"`
	Identifier string     `db:"identifier"`
	Dimension  Dimension  `db:"dimension"`
	Reason     string     `db:"reason"`
	BlockedBy  string     `db:"blocked_by"`
	BlockedAt  time.Time  `db:"blocked_at"`
	ExpiresAt  *time.Time `db:"expires_at"` // nil = permanent until explicit unblock
	IsActive   bool       `db:"is_active"`
}

// Expired reports whether a TTL block has lapsed at the given instant.
// Permanent blocks (nil ExpiresAt) never expire.
func (b *BlockEntry) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// Actors recorded in blocked_by for non-human block sources.
const (
	BlockedByEscalation = "auto-escalation"
)
