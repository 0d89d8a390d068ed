package mailfinder

// Callback receives the terminal outcome of a resolution. Exactly one of the
// four methods is invoked per Start, at most once, from the finder's
// background goroutine; no method is invoked after Cancel.
type Callback interface {
	// OnAccountNotFound reports that the account does not exist.
	OnAccountNotFound()
	// OnAccountSecurityHold reports that the account exists but is blocked
	// pending user action.
	OnAccountSecurityHold(accountID int64)
	// OnMailboxFound reports the resolved mailbox.
	OnMailboxFound(accountID, mailboxID int64)
	// OnMailboxNotFound reports that no matching mailbox exists, or that the
	// refresh needed to verify it failed. The two cases are deliberately not
	// distinguished; callers handle one negative case.
	OnMailboxNotFound(accountID int64)
}

// Outcome tags a resolution result.
type Outcome int

const (
	// OutcomeAccountNotFound means the account does not exist.
	OutcomeAccountNotFound Outcome = iota
	// OutcomeAccountSecurityHold means the account is blocked by a security hold.
	OutcomeAccountSecurityHold
	// OutcomeMailboxFound means the mailbox was resolved.
	OutcomeMailboxFound
	// OutcomeMailboxNotFound means no matching mailbox exists, even after a
	// refresh, or the refresh failed.
	OutcomeMailboxNotFound
)

// String returns the outcome name for logging and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccountNotFound:
		return "account_not_found"
	case OutcomeAccountSecurityHold:
		return "account_security_hold"
	case OutcomeMailboxFound:
		return "mailbox_found"
	case OutcomeMailboxNotFound:
		return "mailbox_not_found"
	default:
		return "unknown"
	}
}

// Result is the tagged terminal outcome of one resolution.
// MailboxID is set only for OutcomeMailboxFound.
type Result struct {
	Outcome   Outcome
	AccountID int64
	MailboxID int64
}

// deliver dispatches the result to the matching callback method.
func (r Result) deliver(cb Callback) {
	switch r.Outcome {
	case OutcomeAccountNotFound:
		cb.OnAccountNotFound()
	case OutcomeAccountSecurityHold:
		cb.OnAccountSecurityHold(r.AccountID)
	case OutcomeMailboxFound:
		cb.OnMailboxFound(r.AccountID, r.MailboxID)
	case OutcomeMailboxNotFound:
		cb.OnMailboxNotFound(r.AccountID)
	}
}

// CallbackFuncs adapts plain functions to the Callback interface.
// Nil fields are simply skipped.
type CallbackFuncs struct {
	AccountNotFound     func()
	AccountSecurityHold func(accountID int64)
	MailboxFound        func(accountID, mailboxID int64)
	MailboxNotFound     func(accountID int64)
}

// Compile-time check
var _ Callback = CallbackFuncs{}

func (c CallbackFuncs) OnAccountNotFound() {
	if c.AccountNotFound != nil {
		c.AccountNotFound()
	}
}

func (c CallbackFuncs) OnAccountSecurityHold(accountID int64) {
	if c.AccountSecurityHold != nil {
		c.AccountSecurityHold(accountID)
	}
}

func (c CallbackFuncs) OnMailboxFound(accountID, mailboxID int64) {
	if c.MailboxFound != nil {
		c.MailboxFound(accountID, mailboxID)
	}
}

func (c CallbackFuncs) OnMailboxNotFound(accountID int64) {
	if c.MailboxNotFound != nil {
		c.MailboxNotFound(accountID)
	}
}

// ResultChan returns a Callback that sends the terminal Result on the
// returned channel. The channel has capacity one, so delivery never blocks
// the finder.
func ResultChan() (Callback, <-chan Result) {
	ch := make(chan Result, 1)
	cb := CallbackFuncs{
		AccountNotFound: func() {
			ch <- Result{Outcome: OutcomeAccountNotFound}
		},
		AccountSecurityHold: func(accountID int64) {
			ch <- Result{Outcome: OutcomeAccountSecurityHold, AccountID: accountID}
		},
		MailboxFound: func(accountID, mailboxID int64) {
			ch <- Result{Outcome: OutcomeMailboxFound, AccountID: accountID, MailboxID: mailboxID}
		},
		MailboxNotFound: func(accountID int64) {
			ch <- Result{Outcome: OutcomeMailboxNotFound, AccountID: accountID}
		},
	}
	return cb, ch
}
