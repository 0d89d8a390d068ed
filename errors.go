package mailfinder

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/mailfinder/store"
)

// Sentinel errors for the mailfinder package.
// Use errors.Is() to check for these errors.
//
// These errors wrap corresponding store-level errors where applicable,
// so errors.Is(err, mailfinder.ErrNotConnected) will match both
// finder-level and store-level "not connected" errors.
var (
	// ErrStoreRequired is returned when no store is configured.
	ErrStoreRequired = errors.New("mailfinder: store is required")

	// ErrSyncerRequired is returned when no syncer is configured.
	ErrSyncerRequired = errors.New("mailfinder: syncer is required")

	// ErrCallbackRequired is returned by Start when the callback is nil.
	ErrCallbackRequired = errors.New("mailfinder: callback is required")

	// ErrInvalidAccountID is returned by Start for non-positive account IDs.
	// Wraps store.ErrInvalidID for consistent error checking.
	ErrInvalidAccountID = fmt.Errorf("mailfinder: %w", store.ErrInvalidID)

	// ErrInvalidMailboxType is returned by Start for undefined mailbox types.
	// Wraps store.ErrInvalidType for consistent error checking.
	ErrInvalidMailboxType = fmt.Errorf("mailfinder: %w", store.ErrInvalidType)

	// ErrNotConnected is returned when Start is called before Connect().
	// Wraps store.ErrNotConnected for consistent error checking.
	ErrNotConnected = fmt.Errorf("mailfinder: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	// Wraps store.ErrAlreadyConnected for consistent error checking.
	ErrAlreadyConnected = fmt.Errorf("mailfinder: %w", store.ErrAlreadyConnected)
)
