// Package mongo provides a MongoDB implementation of store.Store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/mailfinder/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	accounts  *mongo.Collection
	mailboxes *mongo.Collection
	counters  *mongo.Collection
	opts      *options
	connected int32
	logger    *slog.Logger
}

// New creates a new MongoDB store with the provided client.
// Call Connect() to initialize the collections and indexes.
func New(client *mongo.Client, opts ...Option) *Store {
	o := newOptions(opts...)
	return &Store{
		client: client,
		opts:   o,
		logger: o.logger,
	}
}

// Connect initializes the database, collections, and indexes.
func (s *Store) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}

	if s.client == nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("mongo: client is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := s.client.Ping(ctx, nil); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("mongo ping: %w", err)
	}

	s.db = s.client.Database(s.opts.database)
	s.accounts = s.db.Collection(s.opts.accounts)
	s.mailboxes = s.db.Collection(s.opts.mailboxes)
	s.counters = s.db.Collection(s.opts.counters)

	if err := s.ensureIndexes(ctx); err != nil {
		atomic.StoreInt32(&s.connected, 0)
		return fmt.Errorf("ensure indexes: %w", err)
	}

	s.logger.Info("connected to MongoDB", "database", s.opts.database)
	return nil
}

// Close marks the store as disconnected.
// The caller is responsible for closing the MongoDB client.
func (s *Store) Close(ctx context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

// ensureIndexes creates required indexes.
func (s *Store) ensureIndexes(ctx context.Context) error {
	mailboxIndexes := []mongo.IndexModel{
		// Lookup path: exact (account_id, type), lowest _id first.
		{Keys: bson.D{
			bson.E{Key: "account_id", Value: 1},
			bson.E{Key: "type", Value: 1},
			bson.E{Key: "_id", Value: 1},
		}},
		// Upsert key for syncer refreshes.
		{
			Keys: bson.D{
				bson.E{Key: "account_id", Value: 1},
				bson.E{Key: "name", Value: 1},
			},
			Options: mongoopts.Index().SetUnique(true),
		},
	}

	if _, err := s.mailboxes.Indexes().CreateMany(ctx, mailboxIndexes); err != nil {
		return err
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

// nextID atomically allocates the next ID in the named sequence.
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		mongoopts.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(mongoopts.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", name, err)
	}
	return doc.Seq, nil
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

	var a store.Account
	err := s.accounts.FindOne(ctx, bson.M{"_id": accountID}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// GetMailbox retrieves the mailbox of the given type for an account.
// The lowest _id wins when several mailboxes share a type.
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

	var m store.Mailbox
	err := s.mailboxes.FindOne(ctx,
		bson.M{"account_id": accountID, "type": int(typ)},
		mongoopts.FindOne().SetSort(bson.D{bson.E{Key: "_id", Value: 1}}),
	).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get mailbox: %w", err)
	}
	return &m, nil
}

// PutAccount upserts an account. A zero ID allocates one from the sequence.
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
		id, err := s.nextID(ctx, s.opts.accounts)
		if err != nil {
			return nil, err
		}
		cp.ID = id
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	_, err := s.accounts.UpdateOne(ctx,
		bson.M{"_id": cp.ID},
		bson.M{
			"$set": bson.M{
				"email":         cp.Email,
				"security_hold": cp.SecurityHold,
			},
			"$setOnInsert": bson.M{"created_at": cp.CreatedAt},
		},
		mongoopts.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert account: %w", err)
	}
	return &cp, nil
}

// PutMailbox upserts a mailbox, keyed by (account ID, folder name).
// The upsert is atomic at the database level, so concurrent refreshes of the
// same account never create duplicate folders.
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

	// Allocate an ID up front; it is only consumed when the upsert inserts.
	// A skipped sequence value on the update path is harmless.
	id, err := s.nextID(ctx, s.opts.mailboxes)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var out store.Mailbox
	err = s.mailboxes.FindOneAndUpdate(ctx,
		bson.M{"account_id": m.AccountID, "name": m.Name},
		bson.M{
			"$set": bson.M{"type": int(m.Type)},
			"$setOnInsert": bson.M{
				"_id":        id,
				"created_at": now,
			},
		},
		mongoopts.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(mongoopts.After),
	).Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("upsert mailbox: %w", err)
	}
	return &out, nil
}
