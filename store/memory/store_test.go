package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rbaliyan/mailfinder/store"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return s
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	t.Run("operations fail before connect", func(t *testing.T) {
		_, err := s.GetAccount(ctx, 1)
		if !errors.Is(err, store.ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})

	t.Run("double connect fails", func(t *testing.T) {
		if err := s.Connect(ctx); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		if err := s.Connect(ctx); !errors.Is(err, store.ErrAlreadyConnected) {
			t.Errorf("expected ErrAlreadyConnected, got %v", err)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		if err := s.Close(ctx); err != nil {
			t.Errorf("close failed: %v", err)
		}
		if err := s.Close(ctx); err != nil {
			t.Errorf("second close failed: %v", err)
		}
	})
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	t.Run("put assigns ID", func(t *testing.T) {
		a, err := s.PutAccount(ctx, &store.Account{Email: "a@example.com"})
		if err != nil {
			t.Fatalf("put failed: %v", err)
		}
		if a.ID == 0 {
			t.Error("expected assigned ID")
		}
		if a.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}
	})

	t.Run("get returns stored account", func(t *testing.T) {
		put, err := s.PutAccount(ctx, &store.Account{Email: "b@example.com", SecurityHold: true})
		if err != nil {
			t.Fatalf("put failed: %v", err)
		}

		got, err := s.GetAccount(ctx, put.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Email != "b@example.com" || !got.SecurityHold {
			t.Errorf("unexpected account: %+v", got)
		}
	})

	t.Run("get missing account", func(t *testing.T) {
		_, err := s.GetAccount(ctx, 9999)
		if !store.IsNotFound(err) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("get rejects bad ID", func(t *testing.T) {
		_, err := s.GetAccount(ctx, 0)
		if !store.IsInvalidID(err) {
			t.Errorf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("put with explicit ID upserts", func(t *testing.T) {
		a1, err := s.PutAccount(ctx, &store.Account{ID: 500, Email: "c@example.com"})
		if err != nil {
			t.Fatalf("put failed: %v", err)
		}
		a2, err := s.PutAccount(ctx, &store.Account{ID: 500, Email: "c2@example.com"})
		if err != nil {
			t.Fatalf("second put failed: %v", err)
		}
		if a1.ID != a2.ID {
			t.Errorf("expected same ID, got %d and %d", a1.ID, a2.ID)
		}

		got, err := s.GetAccount(ctx, 500)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.Email != "c2@example.com" {
			t.Errorf("expected updated email, got %q", got.Email)
		}
	})
}

func TestMailboxes(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	acct, err := s.PutAccount(ctx, &store.Account{Email: "a@example.com"})
	if err != nil {
		t.Fatalf("put account failed: %v", err)
	}

	t.Run("put and get by type", func(t *testing.T) {
		put, err := s.PutMailbox(ctx, &store.Mailbox{
			AccountID: acct.ID,
			Type:      store.TypeInbox,
			Name:      "INBOX",
		})
		if err != nil {
			t.Fatalf("put failed: %v", err)
		}

		got, err := s.GetMailbox(ctx, acct.ID, store.TypeInbox)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.ID != put.ID || got.Name != "INBOX" {
			t.Errorf("unexpected mailbox: %+v", got)
		}
	})

	t.Run("type mismatch is not found", func(t *testing.T) {
		_, err := s.GetMailbox(ctx, acct.ID, store.TypeTrash)
		if !store.IsNotFound(err) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("wrong account is not found", func(t *testing.T) {
		_, err := s.GetMailbox(ctx, acct.ID+100, store.TypeInbox)
		if !store.IsNotFound(err) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("upsert by name updates type in place", func(t *testing.T) {
		m1, err := s.PutMailbox(ctx, &store.Mailbox{
			AccountID: acct.ID,
			Type:      store.TypeMail,
			Name:      "Receipts",
		})
		if err != nil {
			t.Fatalf("put failed: %v", err)
		}
		m2, err := s.PutMailbox(ctx, &store.Mailbox{
			AccountID: acct.ID,
			Type:      store.TypeArchive,
			Name:      "Receipts",
		})
		if err != nil {
			t.Fatalf("second put failed: %v", err)
		}
		if m1.ID != m2.ID {
			t.Errorf("expected upsert to keep ID %d, got %d", m1.ID, m2.ID)
		}
		if m2.Type != store.TypeArchive {
			t.Errorf("expected updated type, got %v", m2.Type)
		}
	})

	t.Run("lowest ID wins for duplicate types", func(t *testing.T) {
		first, err := s.PutMailbox(ctx, &store.Mailbox{
			AccountID: acct.ID,
			Type:      store.TypeSent,
			Name:      "Sent",
		})
		if err != nil {
			t.Fatalf("put failed: %v", err)
		}
		if _, err := s.PutMailbox(ctx, &store.Mailbox{
			AccountID: acct.ID,
			Type:      store.TypeSent,
			Name:      "Sent Items",
		}); err != nil {
			t.Fatalf("second put failed: %v", err)
		}

		got, err := s.GetMailbox(ctx, acct.ID, store.TypeSent)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.ID != first.ID {
			t.Errorf("expected mailbox %d, got %d", first.ID, got.ID)
		}
	})

	t.Run("rejects invalid type", func(t *testing.T) {
		_, err := s.PutMailbox(ctx, &store.Mailbox{
			AccountID: acct.ID,
			Type:      store.MailboxType(42),
			Name:      "Bogus",
		})
		if !errors.Is(err, store.ErrInvalidType) {
			t.Errorf("expected ErrInvalidType, got %v", err)
		}
	})

	t.Run("rejects missing account ID", func(t *testing.T) {
		_, err := s.PutMailbox(ctx, &store.Mailbox{Type: store.TypeInbox, Name: "X"})
		if !store.IsInvalidID(err) {
			t.Errorf("expected ErrInvalidID, got %v", err)
		}
	})
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	acct, err := s.PutAccount(ctx, &store.Account{Email: "a@example.com"})
	if err != nil {
		t.Fatalf("put account failed: %v", err)
	}

	const numWorkers = 20
	var wg sync.WaitGroup
	errCh := make(chan error, numWorkers*2)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			if _, err := s.PutMailbox(ctx, &store.Mailbox{
				AccountID: acct.ID,
				Type:      store.TypeInbox,
				Name:      "INBOX",
			}); err != nil {
				errCh <- err
				return
			}
			if _, err := s.GetMailbox(ctx, acct.ID, store.TypeInbox); err != nil {
				errCh <- err
			}
		}(i)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent access error: %v", err)
	}
}
