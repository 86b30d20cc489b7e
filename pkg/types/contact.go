// Package types defines the core data structures shared across the
// coalesce system.
package types

import "time"

// LinkPrecedence marks a contact as either the canonical record of an
// identity cluster or a secondary record owned by one.
type LinkPrecedence string

const (
	// LinkPrecedencePrimary is the canonical contact of a cluster.
	// A cluster has exactly one primary at rest.
	LinkPrecedencePrimary LinkPrecedence = "primary"

	// LinkPrecedenceSecondary is a contact owned by a primary via LinkedID.
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

// Valid reports whether p is one of the two known precedence values.
func (p LinkPrecedence) Valid() bool {
	return p == LinkPrecedencePrimary || p == LinkPrecedenceSecondary
}

// Contact is the sole persisted entity. A contact carries an email, a phone
// number, or both. Secondaries point at their cluster's current primary
// through LinkedID; the link is always one hop.
type Contact struct {
	// ID is assigned by the database in creation order. Creation order is
	// semantically significant: it breaks CreatedAt ties during primacy
	// arbitration.
	ID int64

	Email       *string
	PhoneNumber *string

	// LinkedID is nil for a primary and the owning primary's ID for a
	// secondary. It never points at another secondary.
	LinkedID *int64

	LinkPrecedence LinkPrecedence

	// CreatedAt is immutable and decides primacy: the oldest contact in a
	// cluster is its canonical primary.
	CreatedAt time.Time
	UpdatedAt time.Time

	// DeletedAt is the soft-delete marker. All storage queries exclude
	// contacts with DeletedAt set; nothing in this service sets it.
	DeletedAt *time.Time
}

// IsPrimary reports whether the contact is its cluster's canonical record.
func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// Older reports whether a precedes b in canonical order: strictly earlier
// CreatedAt, or equal CreatedAt with a smaller ID. Used to pick the true
// primary deterministically when clusters merge.
func Older(a, b *Contact) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
