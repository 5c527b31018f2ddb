package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newBoltStoreTest(t *testing.T) *BoltStore {
	t.Helper()

	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "tokens.db"))
	if err != nil {
		t.Fatalf("open bolt store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBoltStorePutPrunesExpired(t *testing.T) {
	store := newBoltStoreTest(t)
	ctx := context.Background()
	now := time.Now()

	_ = store.Put(ctx, "7", "old", Token{ExpiresAt: now.Add(-time.Minute).Unix()}, false, now)
	if err := store.Put(ctx, "7", "new", Token{ExpiresAt: now.Add(time.Hour).Unix()}, true, now); err != nil {
		t.Fatalf("put: %v", err)
	}

	tokens, err := store.Tokens(ctx, "7")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}
	if _, ok := tokens["new"]; !ok {
		t.Fatalf("expected new token present")
	}
}

func TestBoltStoreTokensForUnknownMember(t *testing.T) {
	store := newBoltStoreTest(t)

	tokens, err := store.Tokens(context.Background(), "missing")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected no tokens, got %d", len(tokens))
	}
}

func TestBoltStoreRemoveAndRemoveAll(t *testing.T) {
	store := newBoltStoreTest(t)
	ctx := context.Background()
	now := time.Now()

	_ = store.Put(ctx, "7", "h1", Token{ExpiresAt: now.Add(time.Hour).Unix()}, true, now)
	_ = store.Put(ctx, "7", "h2", Token{ExpiresAt: now.Add(time.Hour).Unix()}, true, now)

	if err := store.Remove(ctx, "7", "h1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Remove(ctx, "8", "h1"); err != nil {
		t.Fatalf("remove for unknown member should be no-op, got %v", err)
	}
	tokens, _ := store.Tokens(ctx, "7")
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}

	if err := store.RemoveAll(ctx, "7"); err != nil {
		t.Fatalf("remove all: %v", err)
	}
	if err := store.RemoveAll(ctx, "7"); err != nil {
		t.Fatalf("second remove all should be no-op, got %v", err)
	}
	tokens, _ = store.Tokens(ctx, "7")
	if len(tokens) != 0 {
		t.Fatalf("expected empty set, got %d", len(tokens))
	}
}

func TestBoltStorePrune(t *testing.T) {
	store := newBoltStoreTest(t)
	ctx := context.Background()
	now := time.Now()

	_ = store.Put(ctx, "7", "h1", Token{ExpiresAt: now.Add(time.Minute).Unix()}, false, now)
	if err := store.Prune(ctx, "7", now.Add(time.Hour)); err != nil {
		t.Fatalf("prune: %v", err)
	}
	tokens, _ := store.Tokens(ctx, "7")
	if len(tokens) != 0 {
		t.Fatalf("expected pruned set, got %d", len(tokens))
	}
}

func TestBoltStoreClaimOnce(t *testing.T) {
	store := newBoltStoreTest(t)
	ctx := context.Background()

	now := time.Unix(1700000000, 0)

	first, err := store.ClaimOnce(ctx, "link-1", time.Minute, now)
	if err != nil || !first {
		t.Fatalf("first claim should win, got %v %v", first, err)
	}
	second, err := store.ClaimOnce(ctx, "link-1", time.Minute, now.Add(30*time.Second))
	if err != nil || second {
		t.Fatalf("second claim should lose, got %v %v", second, err)
	}
	stale, err := store.ClaimOnce(ctx, "link-1", time.Minute, now.Add(2*time.Minute))
	if err != nil || !stale {
		t.Fatalf("claim past its expiry should win again, got %v %v", stale, err)
	}
}
