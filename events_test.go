package mailfinder

import (
	"context"
	"testing"

	"github.com/rbaliyan/mailfinder/store/memory"
	"github.com/rbaliyan/mailfinder/syncer/manual"
)

func TestEventsAvailableAfterConnect(t *testing.T) {
	ctx := context.Background()

	f, err := New(WithStore(memory.New()), WithSyncer(manual.New()))
	if err != nil {
		t.Fatalf("failed to create finder: %v", err)
	}

	if f.Events() != nil {
		t.Error("expected no events before Connect")
	}

	if err := f.Connect(ctx); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer f.Close(ctx)

	if f.Events() == nil {
		t.Fatal("expected events after Connect")
	}
}

func TestEventBusNamesAreUnique(t *testing.T) {
	ctx := context.Background()

	// Two finders in one process must not collide on bus or event names.
	for i := 0; i < 2; i++ {
		f, err := New(
			WithStore(memory.New()),
			WithSyncer(manual.New()),
			WithServiceName("events-test"),
		)
		if err != nil {
			t.Fatalf("failed to create finder: %v", err)
		}
		if err := f.Connect(ctx); err != nil {
			t.Fatalf("connect %d failed: %v", i, err)
		}
		defer f.Close(ctx)
	}
}
