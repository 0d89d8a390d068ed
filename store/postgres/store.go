// Package postgres provides a PostgreSQL implementation of store.Store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rbaliyan/mailfinder/store"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// Store implements store.Store using PostgreSQL.
type Store struct {
	db        *sqlx.DB
	opts      *options
	connected int32
	ownsDB    bool
	logger    *slog.Logger
}

// New creates a new PostgreSQL store with the provided database connection.
// Call Connect() to initialize the schema and indexes.
func New(db *sqlx.DB, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		db:     db,
		opts:   o,
		logger: o.logger,
	}
}

// NewFromDB creates a new PostgreSQL store from a standard sql.DB connection.
// This wraps the sql.DB with sqlx for enhanced functionality.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	return New(sqlx.NewDb(db, "postgres"), opts...)
}

// Open connects to PostgreSQL with the given DSN and returns a store backed
// by the new connection. The caller owns the returned store; Close() does
// not close the underlying pool when the store was built with New/NewFromDB,
// but does for stores created via Open.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	s := New(db, opts...)
	s.ownsDB = true
	return s, nil
}

// Connect initializes the schema and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.db == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres: db is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("postgres ping: %w", err)
	}

	if err := s.ensureSchema(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure schema: %w", err)
	}

	s.logger.Info("connected to PostgreSQL",
		"accounts_table", s.opts.accountsTable,
		"mailboxes_table", s.opts.mailboxesTable)
	return nil
}

// Close marks the store as disconnected. The underlying pool is closed only
// when this store opened it itself (see Open).
func (s *Store) Close(ctx context.Context) error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return nil
	}
	atomic.StoreInt32(&s.connected, 0)
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// ensureSchema creates the required tables and indexes.
func (s *Store) ensureSchema(ctx context.Context) error {
	createAccounts := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(320) NOT NULL DEFAULT '',
			security_hold BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, s.opts.accountsTable)

	if _, err := s.db.ExecContext(ctx, createAccounts); err != nil {
		return fmt.Errorf("create accounts table: %w", err)
	}

	createMailboxes := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			account_id BIGINT NOT NULL,
			type INT NOT NULL DEFAULT 1,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (account_id, name)
		)
	`, s.opts.mailboxesTable)

	if _, err := s.db.ExecContext(ctx, createMailboxes); err != nil {
		return fmt.Errorf("create mailboxes table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_account_type ON %s(account_id, type, id)`,
			s.opts.mailboxesTable, s.opts.mailboxesTable),
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			s.logger.Warn("failed to create index", "error", err, "sql", idx)
		}
	}

	return nil
}

// checkConnected returns error if not connected.
func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (s *Store) GetAccount(ctx context.Context, accountID int64) (*store.Account, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if accountID <= 0 {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, email, security_hold, created_at
		FROM %s
		WHERE id = $1
	`, s.opts.accountsTable)

	var a store.Account
	if err := s.db.GetContext(ctx, &a, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// GetMailbox retrieves the mailbox of the given type for an account.
// The lowest ID wins when several mailboxes share a type.
func (s *Store) GetMailbox(ctx context.Context, accountID int64, typ store.MailboxType) (*store.Mailbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if accountID <= 0 {
		return nil, store.ErrInvalidID
	}
	if !typ.Valid() {
		return nil, store.ErrInvalidType
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, account_id, type, name, created_at
		FROM %s
		WHERE account_id = $1 AND type = $2
		ORDER BY id
		LIMIT 1
	`, s.opts.mailboxesTable)

	var m store.Mailbox
	if err := s.db.GetContext(ctx, &m, query, accountID, int(typ)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get mailbox: %w", err)
	}
	return &m, nil
}

// PutAccount upserts an account. A zero ID inserts a new row.
func (s *Store) PutAccount(ctx context.Context, a *store.Account) (*store.Account, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if a == nil {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	cp := *a
	if cp.ID == 0 {
		query := fmt.Sprintf(`
			INSERT INTO %s (email, security_hold)
			VALUES ($1, $2)
			RETURNING id, created_at
		`, s.opts.accountsTable)
		if err := s.db.QueryRowxContext(ctx, query, cp.Email, cp.SecurityHold).
			Scan(&cp.ID, &cp.CreatedAt); err != nil {
			return nil, mapError("insert account", err)
		}
		return &cp, nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, security_hold)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email, security_hold = EXCLUDED.security_hold
		RETURNING created_at
	`, s.opts.accountsTable)
	if err := s.db.QueryRowxContext(ctx, query, cp.ID, cp.Email, cp.SecurityHold).
		Scan(&cp.CreatedAt); err != nil {
		return nil, mapError("upsert account", err)
	}
	return &cp, nil
}

// PutMailbox upserts a mailbox, keyed by (account ID, folder name).
func (s *Store) PutMailbox(ctx context.Context, m *store.Mailbox) (*store.Mailbox, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if m == nil || m.AccountID <= 0 {
		return nil, store.ErrInvalidID
	}
	if !m.Type.Valid() {
		return nil, store.ErrInvalidType
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	cp := *m
	query := fmt.Sprintf(`
		INSERT INTO %s (account_id, type, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, name) DO UPDATE
		SET type = EXCLUDED.type
		RETURNING id, created_at
	`, s.opts.mailboxesTable)
	if err := s.db.QueryRowxContext(ctx, query, cp.AccountID, int(cp.Type), cp.Name).
		Scan(&cp.ID, &cp.CreatedAt); err != nil {
		return nil, mapError("upsert mailbox", err)
	}
	return &cp, nil
}

// mapError translates driver errors into store sentinels where possible.
func mapError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, store.ErrDuplicateEntry)
	}
	return fmt.Errorf("%s: %w", op, err)
}
