package imap

import (
	"log/slog"
	"time"
)

// DefaultTimeout bounds a single refresh, dial included.
const DefaultTimeout = 60 * time.Second

// options holds IMAP syncer configuration.
type options struct {
	dial    DialFunc
	timeout time.Duration
	logger  *slog.Logger
}

func newOptions(opts ...Option) *options {
	o := &options{
		dial:    dialIMAP,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures an IMAP syncer.
type Option func(*options)

// WithDialFunc replaces the IMAP dialer. Refreshes call it once per
// connection attempt; tests use it to avoid a live server.
func WithDialFunc(dial DialFunc) Option {
	return func(o *options) {
		if dial != nil {
			o.dial = dial
		}
	}
}

// WithTimeout sets the per-refresh timeout.
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
