package postgres

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultAccountsTable  = "accounts"
	DefaultMailboxesTable = "mailboxes"
	DefaultTimeout        = 10 * time.Second
)

// options holds PostgreSQL store configuration.
type options struct {
	accountsTable  string
	mailboxesTable string
	timeout        time.Duration
	logger         *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		accountsTable:  DefaultAccountsTable,
		mailboxesTable: DefaultMailboxesTable,
		timeout:        DefaultTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a PostgreSQL store.
type Option func(*options)

// WithAccountsTable sets the accounts table name.
func WithAccountsTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.accountsTable = name
		}
	}
}

// WithMailboxesTable sets the mailboxes table name.
func WithMailboxesTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.mailboxesTable = name
		}
	}
}

// WithTimeout sets the operation timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
