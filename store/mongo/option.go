package mongo

import (
	"log/slog"
	"time"
)

// Default configuration values.
const (
	DefaultDatabase            = "mailfinder"
	DefaultAccountsCollection  = "accounts"
	DefaultMailboxesCollection = "mailboxes"
	DefaultCountersCollection  = "counters"
	DefaultTimeout             = 10 * time.Second
)

// options holds MongoDB store configuration.
type options struct {
	database  string
	accounts  string
	mailboxes string
	counters  string
	timeout   time.Duration
	logger    *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		database:  DefaultDatabase,
		accounts:  DefaultAccountsCollection,
		mailboxes: DefaultMailboxesCollection,
		counters:  DefaultCountersCollection,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures a MongoDB store.
type Option func(*options)

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(o *options) {
		if name != "" {
			o.database = name
		}
	}
}

// WithAccountsCollection sets the accounts collection name.
func WithAccountsCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.accounts = name
		}
	}
}

// WithMailboxesCollection sets the mailboxes collection name.
func WithMailboxesCollection(name string) Option {
	return func(o *options) {
		if name != "" {
			o.mailboxes = name
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
