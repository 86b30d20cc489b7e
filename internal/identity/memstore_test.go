package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coalesce-dev/coalesce/internal/storage"
	"github.com/coalesce-dev/coalesce/pkg/types"
)

// memStore is an in-memory storage.Store for core tests. RunInTx serialises
// callers behind one mutex (the moral equivalent of SERIALIZABLE) and rolls
// the state back when fn fails, so transactional semantics match the real
// backends. Fault injection hooks simulate serialization conflicts and
// storage outages.
type memStore struct {
	mu       sync.Mutex
	contacts map[int64]*types.Contact
	nextID   int64
	clock    time.Time

	insertCalls int
	demoteCalls int
	txCalls     int

	// conflictsRemaining makes the next n RunInTx calls fail with
	// storage.ErrTxConflict before fn runs.
	conflictsRemaining int

	// failuresRemaining makes the next n RunInTx calls fail with a plain
	// storage error before fn runs.
	failuresRemaining int
}

func newMemStore() *memStore {
	return &memStore{
		contacts: make(map[int64]*types.Contact),
		nextID:   1,
		clock:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) RunInTx(ctx context.Context, fn func(storage.ContactStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txCalls++
	if m.conflictsRemaining > 0 {
		m.conflictsRemaining--
		return fmt.Errorf("%w: injected", storage.ErrTxConflict)
	}
	if m.failuresRemaining > 0 {
		m.failuresRemaining--
		return fmt.Errorf("memstore: injected storage failure")
	}

	snapshot := make(map[int64]*types.Contact, len(m.contacts))
	for id, c := range m.contacts {
		copied := *c
		snapshot[id] = &copied
	}

	if err := fn((*lockedStore)(m)); err != nil {
		m.contacts = snapshot
		return err
	}
	return nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }
func (m *memStore) Close() error                   { return nil }

// Standalone (non-tx) reads take the lock themselves.

func (m *memStore) FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]*types.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*lockedStore)(m).FindByEmailOrPhone(ctx, email, phone)
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*types.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*lockedStore)(m).GetByID(ctx, id)
}

func (m *memStore) GetChildren(ctx context.Context, parentID int64) ([]*types.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*lockedStore)(m).GetChildren(ctx, parentID)
}

func (m *memStore) GetClusterByPrimaryID(ctx context.Context, primaryID int64) ([]*types.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*lockedStore)(m).GetClusterByPrimaryID(ctx, primaryID)
}

func (m *memStore) GetByIDs(ctx context.Context, ids []int64) ([]*types.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*lockedStore)(m).GetByIDs(ctx, ids)
}

func (m *memStore) Demote(ctx context.Context, id, newLinkedID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*lockedStore)(m).Demote(ctx, id, newLinkedID)
}

func (m *memStore) Repoint(ctx context.Context, oldLinkedID, newLinkedID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*lockedStore)(m).Repoint(ctx, oldLinkedID, newLinkedID)
}

func (m *memStore) Insert(ctx context.Context, email, phone *string, linkedID *int64, precedence types.LinkPrecedence) (*types.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (*lockedStore)(m).Insert(ctx, email, phone, linkedID, precedence)
}

// lockedStore is memStore with the mutex already held (inside RunInTx).
type lockedStore memStore

func (m *lockedStore) FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]*types.Contact, error) {
	var out []*types.Contact
	for _, c := range m.contacts {
		if email != nil && c.Email != nil && *c.Email == *email {
			out = append(out, copyContact(c))
			continue
		}
		if phone != nil && c.PhoneNumber != nil && *c.PhoneNumber == *phone {
			out = append(out, copyContact(c))
		}
	}
	sortContacts(out)
	return out, nil
}

func (m *lockedStore) GetByID(ctx context.Context, id int64) (*types.Contact, error) {
	c, ok := m.contacts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyContact(c), nil
}

func (m *lockedStore) GetChildren(ctx context.Context, parentID int64) ([]*types.Contact, error) {
	var out []*types.Contact
	for _, c := range m.contacts {
		if c.LinkedID != nil && *c.LinkedID == parentID {
			out = append(out, copyContact(c))
		}
	}
	sortContacts(out)
	return out, nil
}

func (m *lockedStore) GetClusterByPrimaryID(ctx context.Context, primaryID int64) ([]*types.Contact, error) {
	var out []*types.Contact
	for _, c := range m.contacts {
		if c.ID == primaryID || (c.LinkedID != nil && *c.LinkedID == primaryID) {
			out = append(out, copyContact(c))
		}
	}
	sortContacts(out)
	return out, nil
}

func (m *lockedStore) GetByIDs(ctx context.Context, ids []int64) ([]*types.Contact, error) {
	var out []*types.Contact
	for _, id := range ids {
		if c, ok := m.contacts[id]; ok {
			out = append(out, copyContact(c))
		}
	}
	sortContacts(out)
	return out, nil
}

func (m *lockedStore) Demote(ctx context.Context, id, newLinkedID int64) error {
	m.demoteCalls++
	c, ok := m.contacts[id]
	if !ok {
		return storage.ErrNotFound
	}
	linked := newLinkedID
	c.LinkPrecedence = types.LinkPrecedenceSecondary
	c.LinkedID = &linked
	c.UpdatedAt = m.clock
	return nil
}

func (m *lockedStore) Repoint(ctx context.Context, oldLinkedID, newLinkedID int64) error {
	for _, c := range m.contacts {
		if c.LinkedID != nil && *c.LinkedID == oldLinkedID {
			linked := newLinkedID
			c.LinkedID = &linked
			c.UpdatedAt = m.clock
		}
	}
	return nil
}

func (m *lockedStore) Insert(ctx context.Context, email, phone *string, linkedID *int64, precedence types.LinkPrecedence) (*types.Contact, error) {
	m.insertCalls++
	c := &types.Contact{
		ID:             m.nextID,
		LinkPrecedence: precedence,
		CreatedAt:      m.clock,
		UpdatedAt:      m.clock,
	}
	if email != nil {
		v := *email
		c.Email = &v
	}
	if phone != nil {
		v := *phone
		c.PhoneNumber = &v
	}
	if linkedID != nil {
		v := *linkedID
		c.LinkedID = &v
	}
	m.contacts[c.ID] = c
	m.nextID++
	m.clock = m.clock.Add(time.Second)
	return copyContact(c), nil
}

// seed inserts a contact directly, bypassing the pipeline, for arranging
// specific cluster shapes (including invariant-violating ones).
func (m *memStore) seed(email, phone string, linkedID *int64, precedence types.LinkPrecedence) *types.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()

	var emailPtr, phonePtr *string
	if email != "" {
		emailPtr = &email
	}
	if phone != "" {
		phonePtr = &phone
	}
	c, _ := (*lockedStore)(m).Insert(context.Background(), emailPtr, phonePtr, linkedID, precedence)
	return c
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.contacts)
}

func (m *memStore) get(id int64) *types.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok {
		return nil
	}
	return copyContact(c)
}

func copyContact(c *types.Contact) *types.Contact {
	copied := *c
	return &copied
}

func sortContacts(contacts []*types.Contact) {
	sort.Slice(contacts, func(i, j int) bool {
		return types.Older(contacts[i], contacts[j])
	})
}
