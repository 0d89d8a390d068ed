// Package manual provides a Syncer whose completions are driven explicitly
// by the caller, for tests and simple deployments where the mailbox list is
// maintained out of band.
package manual

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rbaliyan/mailfinder/syncer"
)

// Compile-time check
var _ syncer.Syncer = (*Syncer)(nil)

// Request records one refresh request.
type Request struct {
	AccountID int64
	Token     string
}

type pending struct {
	token    string
	listener syncer.Listener
}

// Syncer implements syncer.Syncer with caller-driven completion.
// RefreshMailboxList only records the request; nothing happens until the
// caller invokes Complete or Fail. Safe for concurrent use.
type Syncer struct {
	mu       sync.Mutex
	pending  map[int64][]pending
	requests []Request
}

// New creates a new manual syncer.
func New() *Syncer {
	return &Syncer{pending: make(map[int64][]pending)}
}

// RefreshMailboxList records the request and returns immediately.
func (s *Syncer) RefreshMailboxList(accountID int64, l syncer.Listener) {
	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{AccountID: accountID, Token: token})
	if l != nil {
		s.pending[accountID] = append(s.pending[accountID], pending{token: token, listener: l})
	}
}

// Complete reports a successful refresh for the account. Every listener
// registered for the account is invoked once, then forgotten.
func (s *Syncer) Complete(accountID int64) {
	s.finish(accountID, nil)
}

// Fail reports a failed refresh for the account.
func (s *Syncer) Fail(accountID int64, err error) {
	s.finish(accountID, err)
}

func (s *Syncer) finish(accountID int64, err error) {
	s.mu.Lock()
	waiting := s.pending[accountID]
	delete(s.pending, accountID)
	s.mu.Unlock()

	// Listeners run outside the lock so they may call back into the syncer.
	for _, p := range waiting {
		p.listener(syncer.Result{AccountID: accountID, Token: p.token, Err: err})
	}
}

// Requests returns a copy of all refresh requests seen so far.
func (s *Syncer) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// PendingCount returns the number of requests awaiting completion for the
// account.
func (s *Syncer) PendingCount(accountID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[accountID])
}

// Reset forgets all recorded requests and pending listeners.
func (s *Syncer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[int64][]pending)
	s.requests = nil
}
