// Package syncer defines the sync-trigger boundary: the subsystem that
// repopulates an account's mailbox list from a remote source and reports
// completion asynchronously.
//
// Implementations are in syncer/imap (production, IMAP-backed) and
// syncer/manual (deterministic completion for tests and harnesses).
package syncer

// Result is the outcome of one refresh request. Listeners match results to
// their own requests by AccountID; the Token correlates a completion with
// the individual request that produced it.
type Result struct {
	// AccountID is the account the refresh was for.
	AccountID int64
	// Token correlates this completion with the request that started it.
	Token string
	// Err is non-nil when the refresh failed. A failed refresh means the
	// local mailbox list may be stale, not that the mailbox is absent.
	Err error
}

// Listener receives the completion of a refresh request. It is invoked
// exactly once per request, from the syncer's own goroutine. Listeners must
// tolerate results for accounts they did not ask about and filter by
// AccountID.
type Listener func(Result)

// Syncer starts asynchronous refreshes of an account's mailbox list.
type Syncer interface {
	// RefreshMailboxList begins a refresh for the account and returns
	// immediately. The listener is invoked once the refresh completes,
	// successfully or not. A refresh, once started, is never retracted.
	RefreshMailboxList(accountID int64, l Listener)
}
