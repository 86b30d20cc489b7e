// Package storage defines the relational contract the identity core depends
// on. Backends (postgres, sqlite) implement these interfaces; the core never
// sees a concrete driver, which keeps it testable against a fake store.
package storage

import (
	"context"
	"errors"

	"github.com/coalesce-dev/coalesce/pkg/types"
)

var (
	// ErrNotFound indicates the requested contact does not exist (or is
	// soft-deleted).
	ErrNotFound = errors.New("contact not found")

	// ErrInvalidInput indicates the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTxConflict indicates the transaction lost a serialization race with
	// a concurrent request. The whole transaction may be re-run from the
	// start; no partial effects were committed.
	ErrTxConflict = errors.New("transaction serialization conflict")
)

// ContactStore is the set of relational operations the identity core
// composes. Every read excludes soft-deleted rows; every multi-row read is
// ordered by created_at ascending (ties by id) so cluster ordering is stable.
//
// Implementations obtained through TxRunner.RunInTx are bound to a single
// transaction; the standalone store methods each run in their own implicit
// transaction and exist for bootstrap tooling and tests.
type ContactStore interface {
	// FindByEmailOrPhone returns contacts whose email equals email or whose
	// phone number equals phone. Nil identifiers are ignored; with both nil
	// the result is empty.
	FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]*types.Contact, error)

	// GetByID returns a single contact or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*types.Contact, error)

	// GetChildren returns all contacts whose linked_id equals parentID.
	GetChildren(ctx context.Context, parentID int64) ([]*types.Contact, error)

	// GetClusterByPrimaryID returns the primary with the given id plus every
	// contact linked to it.
	GetClusterByPrimaryID(ctx context.Context, primaryID int64) ([]*types.Contact, error)

	// GetByIDs re-fetches a set of contacts as one parameterized query.
	// Unknown ids are silently omitted.
	GetByIDs(ctx context.Context, ids []int64) ([]*types.Contact, error)

	// Demote atomically turns the contact into a secondary of newLinkedID
	// and bumps updated_at. Returns ErrNotFound if no row was updated.
	Demote(ctx context.Context, id, newLinkedID int64) error

	// Repoint atomically moves every contact linked to oldLinkedID to
	// newLinkedID, keeping linkage one hop after a demotion.
	Repoint(ctx context.Context, oldLinkedID, newLinkedID int64) error

	// Insert creates a contact and returns the stored row with its assigned
	// id and timestamps.
	Insert(ctx context.Context, email, phone *string, linkedID *int64, precedence types.LinkPrecedence) (*types.Contact, error)
}

// TxRunner executes fn against a ContactStore bound to one transaction. If fn
// returns an error the transaction is rolled back and nothing is persisted.
// A conflict with a concurrent transaction surfaces as ErrTxConflict after
// rollback; callers may re-run the whole unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ContactStore) error) error
}

// Store is the complete backend contract wired into the service at startup.
type Store interface {
	ContactStore
	TxRunner

	// Ping verifies connectivity to the underlying database.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
