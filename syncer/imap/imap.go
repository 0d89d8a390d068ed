// Package imap provides a Syncer that repopulates an account's mailbox list
// by listing folders over IMAP.
package imap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	goimap "github.com/BrianLeishman/go-imap"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rbaliyan/mailfinder/store"
	"github.com/rbaliyan/mailfinder/syncer"
)

// Compile-time check
var _ syncer.Syncer = (*Syncer)(nil)

// ErrCredentialsRequired is returned by New when no credentials lookup is
// provided.
var ErrCredentialsRequired = errors.New("imap: credentials func is required")

// ErrWriterRequired is returned by New when no store writer is provided.
var ErrWriterRequired = errors.New("imap: store writer is required")

// Credentials identify and authenticate one account's IMAP endpoint.
type Credentials struct {
	Username string
	Password string
	Host     string
	Port     int
}

// CredentialsFunc resolves the IMAP credentials for an account.
type CredentialsFunc func(ctx context.Context, accountID int64) (Credentials, error)

// FolderLister is the slice of the IMAP client a refresh needs.
type FolderLister interface {
	GetFolders() ([]string, error)
	Close() error
}

// DialFunc opens an IMAP connection for the given credentials.
type DialFunc func(c Credentials) (FolderLister, error)

// dialIMAP is the default DialFunc, backed by the go-imap client.
func dialIMAP(c Credentials) (FolderLister, error) {
	return goimap.New(c.Username, c.Password, c.Host, c.Port)
}

// Syncer implements syncer.Syncer over IMAP. A refresh dials the account's
// server, lists its folders, classifies each into a mailbox type, and
// upserts them through the store writer before notifying listeners.
//
// Concurrent refreshes of the same account are coalesced: every request
// still gets its own completion, but only one IMAP round-trip runs.
type Syncer struct {
	writer store.Writer
	creds  CredentialsFunc
	opts   *options
	logger *slog.Logger
	group  singleflight.Group
}

// New creates an IMAP syncer writing refreshed mailboxes through w.
func New(w store.Writer, creds CredentialsFunc, opts ...Option) (*Syncer, error) {
	if w == nil {
		return nil, ErrWriterRequired
	}
	if creds == nil {
		return nil, ErrCredentialsRequired
	}
	o := newOptions(opts...)
	return &Syncer{
		writer: w,
		creds:  creds,
		opts:   o,
		logger: o.logger,
	}, nil
}

// RefreshMailboxList begins a refresh for the account and returns
// immediately. The listener is invoked exactly once, from a syncer
// goroutine, after the refresh completes.
func (s *Syncer) RefreshMailboxList(accountID int64, l syncer.Listener) {
	token := uuid.NewString()

	go func() {
		_, err, shared := s.group.Do(strconv.FormatInt(accountID, 10), func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.timeout)
			defer cancel()
			return nil, s.refresh(ctx, accountID)
		})
		if err != nil {
			s.logger.Warn("mailbox list refresh failed",
				"account_id", accountID, "token", token, "error", err)
		} else {
			s.logger.Debug("mailbox list refreshed",
				"account_id", accountID, "token", token, "shared", shared)
		}
		if l != nil {
			l(syncer.Result{AccountID: accountID, Token: token, Err: err})
		}
	}()
}

// refresh performs one IMAP round-trip for the account.
func (s *Syncer) refresh(ctx context.Context, accountID int64) error {
	creds, err := s.creds(ctx, accountID)
	if err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}

	conn, err := s.opts.dial(creds)
	if err != nil {
		return fmt.Errorf("dial %s: %w", creds.Host, err)
	}
	defer conn.Close()

	folders, err := conn.GetFolders()
	if err != nil {
		return fmt.Errorf("list folders: %w", err)
	}

	for _, name := range folders {
		if err := ctx.Err(); err != nil {
			return err
		}
		mb := &store.Mailbox{
			AccountID: accountID,
			Type:      store.TypeFromFolder(name),
			Name:      name,
		}
		if _, err := s.writer.PutMailbox(ctx, mb); err != nil {
			return fmt.Errorf("save folder %q: %w", name, err)
		}
	}

	s.logger.Debug("stored mailbox list", "account_id", accountID, "folders", len(folders))
	return nil
}
