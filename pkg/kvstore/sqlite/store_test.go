package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ledgervoice/ledgervoice/pkg/kvstore/sqlite"
)

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := sqlite.NewStore(ctx, filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent with nil error", ok, err)
	}

	if err := s.Set(ctx, "intent:pattern:lunch", `{"intent":"create_transaction"}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get(ctx, "intent:pattern:lunch")
	if err != nil || !ok {
		t.Fatalf("Get = ok=%v err=%v, want present", ok, err)
	}
	if v != `{"intent":"create_transaction"}` {
		t.Errorf("Get = %q, want stored JSON", v)
	}

	// Upsert replaces.
	if err := s.Set(ctx, "intent:pattern:lunch", "v2"); err != nil {
		t.Fatalf("Set (upsert): %v", err)
	}
	if v, _, _ := s.Get(ctx, "intent:pattern:lunch"); v != "v2" {
		t.Errorf("Get after upsert = %q, want \"v2\"", v)
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, err := sqlite.NewStore(ctx, ":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	for _, k := range []string{"a:1", "a:2", "b:1"} {
		if err := s.Set(ctx, k, "x"); err != nil {
			t.Fatalf("Set(%q): %v", k, err)
		}
	}

	got, err := s.List(ctx, "a:")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("List(\"a:\") returned %d entries, want 2", len(got))
	}

	if err := s.Delete(ctx, "a:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "a:1"); ok {
		t.Error("key still present after Delete")
	}
	if err := s.Delete(ctx, "a:1"); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}
