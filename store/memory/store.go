// Package memory provides an in-memory Store implementation for testing.
// This store is not suitable for production use - data is not persisted.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/mailfinder/store"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// Store implements store.Store with in-memory storage.
// Thread-safe for concurrent use. Not suitable for production.
type Store struct {
	mu        sync.RWMutex
	accounts  map[int64]*store.Account
	mailboxes map[int64]*store.Mailbox
	nextID    int64
	connected int32
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		accounts:  make(map[int64]*store.Account),
		mailboxes: make(map[int64]*store.Mailbox),
	}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (s *Store) GetAccount(ctx context.Context, accountID int64) (*store.Account, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if accountID <= 0 {
		return nil, store.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// GetMailbox retrieves the mailbox of the given type for an account.
// When several mailboxes of the same type exist, the lowest ID wins so
// lookups are deterministic.
func (s *Store) GetMailbox(ctx context.Context, accountID int64, typ store.MailboxType) (*store.Mailbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if accountID <= 0 {
		return nil, store.ErrInvalidID
	}
	if !typ.Valid() {
		return nil, store.ErrInvalidType
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *store.Mailbox
	for _, m := range s.mailboxes {
		if m.AccountID != accountID || m.Type != typ {
			continue
		}
		if found == nil || m.ID < found.ID {
			found = m
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	cp := *found
	return &cp, nil
}

// PutAccount upserts an account, assigning an ID when needed.
func (s *Store) PutAccount(ctx context.Context, a *store.Account) (*store.Account, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if a == nil {
		return nil, store.ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	if cp.ID == 0 {
		s.nextID++
		cp.ID = s.nextID
	} else if cp.ID > s.nextID {
		s.nextID = cp.ID
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.accounts[cp.ID] = &cp

	out := cp
	return &out, nil
}

// PutMailbox upserts a mailbox, keyed by (account ID, folder name).
func (s *Store) PutMailbox(ctx context.Context, m *store.Mailbox) (*store.Mailbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if m == nil || m.AccountID <= 0 {
		return nil, store.ErrInvalidID
	}
	if !m.Type.Valid() {
		return nil, store.ErrInvalidType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *m
	for _, existing := range s.mailboxes {
		if existing.AccountID == cp.AccountID && existing.Name == cp.Name {
			existing.Type = cp.Type
			out := *existing
			return &out, nil
		}
	}
	if cp.ID == 0 {
		s.nextID++
		cp.ID = s.nextID
	} else if cp.ID > s.nextID {
		s.nextID = cp.ID
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.mailboxes[cp.ID] = &cp

	out := cp
	return &out, nil
}
