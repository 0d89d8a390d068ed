package mailfinder

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names for resolution events.
const (
	EventNameMailboxResolved = "mailfinder.mailbox.resolved"
	EventNameMailboxMissed   = "mailfinder.mailbox.missed"
)

// MailboxResolvedEvent is published when a resolution finds the requested
// mailbox, whether from the local store or after a refresh.
type MailboxResolvedEvent struct {
	AccountID  int64     `json:"account_id"`
	MailboxID  int64     `json:"mailbox_id"`
	Type       string    `json:"type"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// MailboxMissedEvent is published when a resolution ends without a mailbox.
// Synced reports whether a refresh ran before the miss was declared; a miss
// with Synced=false cannot occur, it would have triggered a refresh instead.
type MailboxMissedEvent struct {
	AccountID int64     `json:"account_id"`
	Type      string    `json:"type"`
	Synced    bool      `json:"synced"`
	MissedAt  time.Time `json:"missed_at"`
}

// FinderEvents provides access to per-finder event instances.
// Each finder creates its own events bound to its own event bus,
// enabling independent event routing and parallel testing.
//
// Subscribe to events:
//
//	f.Events().MailboxResolved.Subscribe(ctx, handler)
//	f.Events().MailboxMissed.Subscribe(ctx, handler)
type FinderEvents struct {
	// MailboxResolved is published when a mailbox is found.
	MailboxResolved event.Event[MailboxResolvedEvent]

	// MailboxMissed is published when a resolution ends without a mailbox.
	MailboxMissed event.Event[MailboxMissedEvent]
}

// newFinderEvents creates per-finder event instances with a unique name prefix.
func newFinderEvents(namePrefix string) *FinderEvents {
	return &FinderEvents{
		MailboxResolved: event.New[MailboxResolvedEvent](namePrefix + "." + EventNameMailboxResolved),
		MailboxMissed:   event.New[MailboxMissedEvent](namePrefix + "." + EventNameMailboxMissed),
	}
}

// registerFinderEvents registers per-finder events with the given bus.
func registerFinderEvents(ctx context.Context, bus *event.Bus, events *FinderEvents) error {
	if err := event.Register(ctx, bus, events.MailboxResolved); err != nil {
		return fmt.Errorf("register MailboxResolved: %w", err)
	}
	if err := event.Register(ctx, bus, events.MailboxMissed); err != nil {
		return fmt.Errorf("register MailboxMissed: %w", err)
	}
	return nil
}
