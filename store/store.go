// Package store provides interfaces and types for account and mailbox storage.
// Implementations are in store/memory, store/postgres, and store/mongo subpackages.
//
// The finder core only reads from a store. Writes (PutAccount, PutMailbox)
// exist for syncers that repopulate an account's mailbox list and for test
// fixtures; nothing in the resolution path mutates storage.
package store

import (
	"context"
	"strings"
	"time"
)

// MailboxType is the role tag distinguishing mailboxes within one account.
type MailboxType int

// Mailbox types, in wire order. TypeMail is the catch-all for regular
// user-created folders.
const (
	TypeInbox MailboxType = iota
	TypeMail
	TypeDrafts
	TypeSent
	TypeTrash
	TypeJunk
	TypeArchive
)

var mailboxTypeNames = map[MailboxType]string{
	TypeInbox:   "inbox",
	TypeMail:    "mail",
	TypeDrafts:  "drafts",
	TypeSent:    "sent",
	TypeTrash:   "trash",
	TypeJunk:    "junk",
	TypeArchive: "archive",
}

// String returns the lowercase name of the type, or "unknown" for
// out-of-range values.
func (t MailboxType) String() string {
	if name, ok := mailboxTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is one of the defined mailbox types.
func (t MailboxType) Valid() bool {
	_, ok := mailboxTypeNames[t]
	return ok
}

// TypeFromFolder classifies an IMAP folder name into a MailboxType.
// Matching is case-insensitive and covers the common provider spellings;
// anything unrecognized is a regular mail folder.
func TypeFromFolder(name string) MailboxType {
	// Nested folders classify by their leaf name ("[Gmail]/Sent Mail").
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "inbox":
		return TypeInbox
	case "drafts", "draft":
		return TypeDrafts
	case "sent", "sent mail", "sent messages", "sent items":
		return TypeSent
	case "trash", "deleted", "deleted items", "deleted messages", "bin":
		return TypeTrash
	case "junk", "spam", "junk e-mail", "bulk mail":
		return TypeJunk
	case "archive", "archives", "all mail":
		return TypeArchive
	default:
		return TypeMail
	}
}

// Account is a snapshot of a stored account. The finder reads it and never
// writes it back.
type Account struct {
	ID           int64     `db:"id" bson:"_id"`
	Email        string    `db:"email" bson:"email"`
	SecurityHold bool      `db:"security_hold" bson:"security_hold"`
	CreatedAt    time.Time `db:"created_at" bson:"created_at"`
}

// Mailbox is a snapshot of a stored mailbox.
type Mailbox struct {
	ID        int64       `db:"id" bson:"_id"`
	AccountID int64       `db:"account_id" bson:"account_id"`
	Type      MailboxType `db:"type" bson:"type"`
	Name      string      `db:"name" bson:"name"`
	CreatedAt time.Time   `db:"created_at" bson:"created_at"`
}

// AccountReader provides account lookups.
type AccountReader interface {
	// GetAccount retrieves an account by ID.
	// Returns ErrNotFound if the account doesn't exist.
	GetAccount(ctx context.Context, accountID int64) (*Account, error)
}

// MailboxReader provides mailbox lookups.
type MailboxReader interface {
	// GetMailbox retrieves the mailbox of the given type for an account.
	// Both keys are exact-match: a mailbox of a different type never
	// satisfies the lookup. Returns ErrNotFound when no such mailbox exists.
	GetMailbox(ctx context.Context, accountID int64, typ MailboxType) (*Mailbox, error)
}

// Writer provides upserts used by syncers and test fixtures.
//
// Concurrency: implementations rely on database-level atomicity (upserts,
// unique constraints) rather than external locking, so concurrent refreshes
// of the same account are safe.
type Writer interface {
	// PutAccount upserts an account. A zero ID means "assign one";
	// the stored account is returned.
	PutAccount(ctx context.Context, a *Account) (*Account, error)
	// PutMailbox upserts a mailbox, keyed by (account ID, folder name).
	// A refresh that sees a folder again updates its type in place rather
	// than creating a duplicate. The stored mailbox is returned.
	PutMailbox(ctx context.Context, m *Mailbox) (*Mailbox, error)
}

// Store is the storage interface consumed by the finder and by syncers.
//
// Composed of:
//   - AccountReader / MailboxReader: the point lookups the finder performs
//   - Writer: upserts for syncers repopulating the mailbox list
//
// All operations must be safe for concurrent use.
type Store interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	AccountReader
	MailboxReader
	Writer
}
