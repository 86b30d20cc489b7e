// Package sqlite provides an embedded SQLite implementation of the contact
// storage contract, used for local development and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/coalesce-dev/coalesce/internal/storage"
	"github.com/coalesce-dev/coalesce/pkg/types"
)

const contactColumns = "id, email, phone_number, linked_id, link_precedence, created_at, updated_at, deleted_at"

// Schema is the embedded DDL for the contacts table. AUTOINCREMENT keeps ids
// strictly monotonic (rowids are never reused), which primacy arbitration
// relies on for tie-breaking.
const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	email           TEXT,
	phone_number    TEXT,
	linked_id       INTEGER REFERENCES contacts(id),
	link_precedence TEXT NOT NULL CHECK (link_precedence IN ('primary', 'secondary')),
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL,
	deleted_at      TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_phone_number ON contacts(phone_number);
CREATE INDEX IF NOT EXISTS idx_contacts_linked_id ON contacts(linked_id);
`

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ContactStore implements storage.Store using SQLite.
type ContactStore struct {
	db *sql.DB
	queries
}

// NewContactStore opens a SQLite contact store and applies the schema.
func NewContactStore(dsn string) (*ContactStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises transactions and avoids most SQLITE_BUSY errors; WAL mode
	// lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &ContactStore{db: db, queries: queries{db: db}}, nil
}

// RunInTx executes fn inside one transaction. With a single connection the
// database serialises transactions fully, so the isolation contract matches
// the Postgres backend; a lock wait that exceeds busy_timeout surfaces as
// storage.ErrTxConflict and the caller may re-run the unit of work.
func (s *ContactStore) RunInTx(ctx context.Context, fn func(storage.ContactStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError("commit transaction", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *ContactStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *ContactStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type queries struct {
	db dbtx
}

func (q *queries) FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]*types.Contact, error) {
	var (
		query string
		args  []any
	)
	switch {
	case email != nil && phone != nil:
		query = "SELECT " + contactColumns + ` FROM contacts
			WHERE deleted_at IS NULL AND (email = ? OR phone_number = ?)
			ORDER BY created_at, id`
		args = []any{*email, *phone}
	case email != nil:
		query = "SELECT " + contactColumns + ` FROM contacts
			WHERE deleted_at IS NULL AND email = ?
			ORDER BY created_at, id`
		args = []any{*email}
	case phone != nil:
		query = "SELECT " + contactColumns + ` FROM contacts
			WHERE deleted_at IS NULL AND phone_number = ?
			ORDER BY created_at, id`
		args = []any{*phone}
	default:
		return nil, nil
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("find by email or phone", err)
	}
	return collectContacts(rows)
}

func (q *queries) GetByID(ctx context.Context, id int64) (*types.Contact, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE id = ? AND deleted_at IS NULL", id)
	contact, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, mapError("get contact", err)
	}
	return contact, nil
}

func (q *queries) GetChildren(ctx context.Context, parentID int64) ([]*types.Contact, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+contactColumns+` FROM contacts
			WHERE linked_id = ? AND deleted_at IS NULL
			ORDER BY created_at, id`, parentID)
	if err != nil {
		return nil, mapError("get children", err)
	}
	return collectContacts(rows)
}

func (q *queries) GetClusterByPrimaryID(ctx context.Context, primaryID int64) ([]*types.Contact, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+contactColumns+` FROM contacts
			WHERE deleted_at IS NULL AND (id = ? OR linked_id = ?)
			ORDER BY created_at, id`, primaryID, primaryID)
	if err != nil {
		return nil, mapError("get cluster", err)
	}
	return collectContacts(rows)
}

func (q *queries) GetByIDs(ctx context.Context, ids []int64) ([]*types.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	// Placeholder per id; never interpolated.
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := q.db.QueryContext(ctx,
		"SELECT "+contactColumns+` FROM contacts
			WHERE id IN (`+placeholders+`) AND deleted_at IS NULL
			ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, mapError("get contacts by ids", err)
	}
	return collectContacts(rows)
}

func (q *queries) Demote(ctx context.Context, id, newLinkedID int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE contacts
			SET link_precedence = 'secondary', linked_id = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL`,
		newLinkedID, time.Now().UTC(), id)
	if err != nil {
		return mapError("demote contact", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("demote contact", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (q *queries) Repoint(ctx context.Context, oldLinkedID, newLinkedID int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE contacts
			SET linked_id = ?, updated_at = ?
			WHERE linked_id = ? AND deleted_at IS NULL`,
		newLinkedID, time.Now().UTC(), oldLinkedID)
	if err != nil {
		return mapError("repoint contacts", err)
	}
	return nil
}

func (q *queries) Insert(ctx context.Context, email, phone *string, linkedID *int64, precedence types.LinkPrecedence) (*types.Contact, error) {
	if !precedence.Valid() {
		return nil, fmt.Errorf("%w: unknown link precedence %q", storage.ErrInvalidInput, precedence)
	}

	now := time.Now().UTC()
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO contacts (email, phone_number, linked_id, link_precedence, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
		nullString(email), nullString(phone), nullInt64(linkedID), string(precedence), now, now)
	if err != nil {
		return nil, mapError("insert contact", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, mapError("insert contact", err)
	}

	row := q.db.QueryRowContext(ctx,
		"SELECT "+contactColumns+" FROM contacts WHERE id = ?", id)
	contact, err := scanContact(row)
	if err != nil {
		return nil, mapError("read back inserted contact", err)
	}
	return contact, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(s scanner) (*types.Contact, error) {
	var (
		c         types.Contact
		email     sql.NullString
		phone     sql.NullString
		linkedID  sql.NullInt64
		prec      string
		deletedAt sql.NullTime
	)
	if err := s.Scan(&c.ID, &email, &phone, &linkedID, &prec, &c.CreatedAt, &c.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if email.Valid {
		c.Email = &email.String
	}
	if phone.Valid {
		c.PhoneNumber = &phone.String
	}
	if linkedID.Valid {
		c.LinkedID = &linkedID.Int64
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	c.LinkPrecedence = types.LinkPrecedence(prec)
	return &c, nil
}

func collectContacts(rows *sql.Rows) ([]*types.Contact, error) {
	defer rows.Close()

	var contacts []*types.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate contacts", err)
	}
	return contacts, nil
}

// mapError wraps driver errors, translating lock contention into
// storage.ErrTxConflict. The modernc driver reports contention through the
// error text, so this matches on the canonical SQLite messages.
func mapError(op string, err error) error {
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return fmt.Errorf("%w: %s: %v", storage.ErrTxConflict, op, err)
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
