// Package mailfinder resolves mailboxes asynchronously for Go applications.
//
// Given an account ID and a mailbox type (inbox, drafts, sent, ...), a
// Finder looks the mailbox up in a local store and, when it is not present
// yet, triggers a mailbox list refresh through a pluggable syncer and
// re-checks once the refresh completes. The outcome is reported through a
// callback: mailbox found, mailbox not found, account not found, or account
// under security hold.
//
// # Basic Usage
//
//	// Create in-memory store for testing
//	st := memory.New()
//
//	// Create a finder with a manually driven syncer
//	sync := manual.New()
//	f, err := mailfinder.New(
//	    mailfinder.WithStore(st),
//	    mailfinder.WithSyncer(sync),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Connect initializes indexes/schema
//	if err := f.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close(ctx)
//
//	// Resolve the inbox for account 42
//	err = f.Start(ctx, 42, store.TypeInbox, mailfinder.CallbackFuncs{
//	    MailboxFound: func(accountID, mailboxID int64) {
//	        log.Printf("inbox for %d is %d", accountID, mailboxID)
//	    },
//	    MailboxNotFound: func(accountID int64) {
//	        log.Printf("account %d has no inbox", accountID)
//	    },
//	})
//
// A Finder runs at most one resolution at a time: starting a new one
// cancels the previous one, and Cancel abandons the current one without any
// callback firing. Exactly one callback method is invoked per resolution
// that is not cancelled.
//
// # Storage Backends
//
// The store package provides implementations for:
//   - MongoDB (store/mongo) - accepts *mongo.Client
//   - PostgreSQL (store/postgres) - accepts *sqlx.DB or a DSN
//   - In-memory (store/memory) - for testing
//
// # Syncers
//
// The syncer package defines the refresh contract. Two implementations ship
// with the module:
//   - syncer/imap - fetches the folder list over IMAP and upserts mailboxes
//     into the store
//   - syncer/manual - completion is driven explicitly, for tests and for
//     embedding in hosts that own their own sync engine
//
// # Events
//
// Mailfinder publishes typed events for resolution outcomes. Events use the
// github.com/rbaliyan/event/v3 library which supports multiple transports
// (Redis Streams, NATS, Kafka, in-memory channel).
//
// To enable events, pass WithRedisClient or WithEventTransport when creating
// the finder:
//
//	f, err := mailfinder.New(
//	    mailfinder.WithStore(st),
//	    mailfinder.WithSyncer(sync),
//	    mailfinder.WithRedisClient(redisClient),
//	)
//
// Events are automatically registered during Connect(). Access per-finder
// events via the Events() method:
//
//	events := f.Events()
//	events.MailboxResolved.Subscribe(ctx, handler)
//	events.MailboxMissed.Subscribe(ctx, handler)
package mailfinder
