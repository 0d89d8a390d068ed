package imap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rbaliyan/mailfinder/store"
	"github.com/rbaliyan/mailfinder/store/memory"
	"github.com/rbaliyan/mailfinder/syncer"
)

const waitTimeout = 2 * time.Second

// fakeConn implements FolderLister without a live server.
type fakeConn struct {
	mu         sync.Mutex
	folders    []string
	foldersErr error
	closed     bool
}

func (c *fakeConn) GetFolders() ([]string, error) {
	if c.foldersErr != nil {
		return nil, c.foldersErr
	}
	return c.folders, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func testCreds(ctx context.Context, accountID int64) (Credentials, error) {
	return Credentials{
		Username: "user@example.com",
		Password: "secret",
		Host:     "imap.example.com",
		Port:     993,
	}, nil
}

func setupWriter(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New()
	if err := st.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return st
}

func waitFor(t *testing.T, ch <-chan syncer.Result) syncer.Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for refresh completion")
		return syncer.Result{}
	}
}

func TestNew(t *testing.T) {
	t.Run("requires writer", func(t *testing.T) {
		_, err := New(nil, testCreds)
		if !errors.Is(err, ErrWriterRequired) {
			t.Errorf("expected ErrWriterRequired, got %v", err)
		}
	})

	t.Run("requires credentials func", func(t *testing.T) {
		_, err := New(setupWriter(t), nil)
		if !errors.Is(err, ErrCredentialsRequired) {
			t.Errorf("expected ErrCredentialsRequired, got %v", err)
		}
	})

	t.Run("creates syncer", func(t *testing.T) {
		s, err := New(setupWriter(t), testCreds)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s == nil {
			t.Fatal("expected non-nil syncer")
		}
	})
}

func TestRefreshStoresFolders(t *testing.T) {
	st := setupWriter(t)
	conn := &fakeConn{folders: []string{"INBOX", "Drafts", "Sent", "Receipts"}}

	s, err := New(st, testCreds, WithDialFunc(func(Credentials) (FolderLister, error) {
		return conn, nil
	}))
	if err != nil {
		t.Fatalf("failed to create syncer: %v", err)
	}

	ch := make(chan syncer.Result, 1)
	s.RefreshMailboxList(1, func(res syncer.Result) { ch <- res })

	res := waitFor(t, ch)
	if res.Err != nil {
		t.Fatalf("refresh failed: %v", res.Err)
	}
	if res.AccountID != 1 || res.Token == "" {
		t.Errorf("unexpected result: %+v", res)
	}
	if !conn.isClosed() {
		t.Error("expected connection to be closed")
	}

	ctx := context.Background()
	cases := []struct {
		typ  store.MailboxType
		name string
	}{
		{store.TypeInbox, "INBOX"},
		{store.TypeDrafts, "Drafts"},
		{store.TypeSent, "Sent"},
		{store.TypeMail, "Receipts"},
	}
	for _, tc := range cases {
		mb, err := st.GetMailbox(ctx, 1, tc.typ)
		if err != nil {
			t.Errorf("expected %v mailbox: %v", tc.typ, err)
			continue
		}
		if mb.Name != tc.name {
			t.Errorf("expected %v mailbox named %q, got %q", tc.typ, tc.name, mb.Name)
		}
	}
}

func TestRefreshReportsDialError(t *testing.T) {
	dialErr := errors.New("connection refused")
	s, err := New(setupWriter(t), testCreds, WithDialFunc(func(Credentials) (FolderLister, error) {
		return nil, dialErr
	}))
	if err != nil {
		t.Fatalf("failed to create syncer: %v", err)
	}

	ch := make(chan syncer.Result, 1)
	s.RefreshMailboxList(1, func(res syncer.Result) { ch <- res })

	res := waitFor(t, ch)
	if !errors.Is(res.Err, dialErr) {
		t.Errorf("expected dial error, got %v", res.Err)
	}
}

func TestRefreshReportsListError(t *testing.T) {
	listErr := errors.New("server hung up")
	conn := &fakeConn{foldersErr: listErr}
	s, err := New(setupWriter(t), testCreds, WithDialFunc(func(Credentials) (FolderLister, error) {
		return conn, nil
	}))
	if err != nil {
		t.Fatalf("failed to create syncer: %v", err)
	}

	ch := make(chan syncer.Result, 1)
	s.RefreshMailboxList(1, func(res syncer.Result) { ch <- res })

	res := waitFor(t, ch)
	if !errors.Is(res.Err, listErr) {
		t.Errorf("expected list error, got %v", res.Err)
	}
	if !conn.isClosed() {
		t.Error("expected connection to be closed after error")
	}
}

func TestRefreshReportsCredentialsError(t *testing.T) {
	credsErr := errors.New("no credentials on file")
	s, err := New(setupWriter(t), func(context.Context, int64) (Credentials, error) {
		return Credentials{}, credsErr
	})
	if err != nil {
		t.Fatalf("failed to create syncer: %v", err)
	}

	ch := make(chan syncer.Result, 1)
	s.RefreshMailboxList(1, func(res syncer.Result) { ch <- res })

	res := waitFor(t, ch)
	if !errors.Is(res.Err, credsErr) {
		t.Errorf("expected credentials error, got %v", res.Err)
	}
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	st := setupWriter(t)

	var mu sync.Mutex
	dials := 0
	release := make(chan struct{})

	s, err := New(st, testCreds, WithDialFunc(func(Credentials) (FolderLister, error) {
		mu.Lock()
		dials++
		mu.Unlock()
		<-release
		return &fakeConn{folders: []string{"INBOX"}}, nil
	}))
	if err != nil {
		t.Fatalf("failed to create syncer: %v", err)
	}

	const numRequests = 5
	ch := make(chan syncer.Result, numRequests)
	for i := 0; i < numRequests; i++ {
		s.RefreshMailboxList(1, func(res syncer.Result) { ch <- res })
	}

	// Give the refresh goroutines time to pile up behind the first dial.
	time.Sleep(50 * time.Millisecond)
	close(release)

	tokens := make(map[string]bool)
	for i := 0; i < numRequests; i++ {
		res := waitFor(t, ch)
		if res.Err != nil {
			t.Errorf("refresh failed: %v", res.Err)
		}
		tokens[res.Token] = true
	}

	// Every request gets its own completion token even when the round-trips
	// are shared.
	if len(tokens) != numRequests {
		t.Errorf("expected %d distinct tokens, got %d", numRequests, len(tokens))
	}

	mu.Lock()
	defer mu.Unlock()
	if dials >= numRequests {
		t.Errorf("expected coalesced dials, got %d for %d requests", dials, numRequests)
	}
}

func TestNilListenerAccepted(t *testing.T) {
	s, err := New(setupWriter(t), testCreds, WithDialFunc(func(Credentials) (FolderLister, error) {
		return &fakeConn{folders: []string{"INBOX"}}, nil
	}))
	if err != nil {
		t.Fatalf("failed to create syncer: %v", err)
	}

	// Fire-and-forget refresh must not panic.
	s.RefreshMailboxList(1, nil)
	time.Sleep(50 * time.Millisecond)
}
