package mailfinder

import (
	"errors"
	"testing"

	"github.com/rbaliyan/mailfinder/store"
)

func TestErrorWrapping(t *testing.T) {
	t.Run("ErrInvalidAccountID wraps store.ErrInvalidID", func(t *testing.T) {
		if !errors.Is(ErrInvalidAccountID, store.ErrInvalidID) {
			t.Error("expected ErrInvalidAccountID to match store.ErrInvalidID")
		}
	})

	t.Run("ErrInvalidMailboxType wraps store.ErrInvalidType", func(t *testing.T) {
		if !errors.Is(ErrInvalidMailboxType, store.ErrInvalidType) {
			t.Error("expected ErrInvalidMailboxType to match store.ErrInvalidType")
		}
	})

	t.Run("ErrNotConnected wraps store.ErrNotConnected", func(t *testing.T) {
		if !errors.Is(ErrNotConnected, store.ErrNotConnected) {
			t.Error("expected ErrNotConnected to match store.ErrNotConnected")
		}
	})

	t.Run("ErrAlreadyConnected wraps store.ErrAlreadyConnected", func(t *testing.T) {
		if !errors.Is(ErrAlreadyConnected, store.ErrAlreadyConnected) {
			t.Error("expected ErrAlreadyConnected to match store.ErrAlreadyConnected")
		}
	})

	t.Run("sentinels are distinct", func(t *testing.T) {
		if errors.Is(ErrStoreRequired, ErrSyncerRequired) {
			t.Error("expected ErrStoreRequired and ErrSyncerRequired to differ")
		}
		if errors.Is(ErrInvalidAccountID, ErrInvalidMailboxType) {
			t.Error("expected ErrInvalidAccountID and ErrInvalidMailboxType to differ")
		}
	})
}
