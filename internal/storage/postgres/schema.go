package postgres

// Schema is the authoritative DDL for the contacts table. Every statement is
// idempotent (IF NOT EXISTS) so it is safe to apply on each store open.
//
// linked_id is a self-referential foreign key: a secondary always points at
// its cluster's current primary. The CHECK constraint pins link_precedence to
// the two known values, and the three indexes keep the matcher and cluster
// resolver lookups sublinear.
const Schema = `
CREATE TABLE IF NOT EXISTS contacts (
	id              BIGSERIAL PRIMARY KEY,
	email           TEXT,
	phone_number    TEXT,
	linked_id       BIGINT REFERENCES contacts(id),
	link_precedence TEXT NOT NULL CHECK (link_precedence IN ('primary', 'secondary')),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	deleted_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_phone_number ON contacts(phone_number);
CREATE INDEX IF NOT EXISTS idx_contacts_linked_id ON contacts(linked_id);
`
