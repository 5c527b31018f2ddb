package permission

import (
	"context"
	"reflect"
	"testing"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewFrozenRegistry(true, "view_content", "post_comments", "download_files")
	if err != nil {
		t.Fatalf("NewFrozenRegistry: %v", err)
	}
	return r
}

func TestRegistryFrozen(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Register("late"); err == nil {
		t.Fatal("expected register after freeze to fail")
	}
	if r.Count() != 3 {
		t.Fatalf("expected 3 capabilities, got %d", r.Count())
	}
	if bit, ok := r.RootBit(); !ok || bit != 63 {
		t.Fatalf("expected root bit 63, got %d %v", bit, ok)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry(false)
	if _, err := r.Register("a"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Register("a"); err == nil {
		t.Fatal("expected duplicate register to fail")
	}
	if _, err := r.Register(""); err == nil {
		t.Fatal("expected empty name to fail")
	}
}

func TestBundleCapabilities(t *testing.T) {
	r := newTestRegistry(t)
	b, err := NewBundle(r, Tier{ID: 2, Alias: "Gold", Role: "subscriber", Capabilities: []string{"view_content", "download_files"}})
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}

	if !b.Has("view_content") || !b.Has("download_files") {
		t.Fatal("expected granted capabilities")
	}
	if b.Has("post_comments") || b.Has("unknown") {
		t.Fatal("unexpected capability granted")
	}
	if got := b.Capabilities(); !reflect.DeepEqual(got, []string{"download_files", "view_content"}) {
		t.Fatalf("unexpected capabilities: %v", got)
	}
}

func TestBundleRejectsUnregisteredCapability(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := NewBundle(r, Tier{ID: 1, Capabilities: []string{"fly"}}); err == nil {
		t.Fatal("expected unregistered capability to fail")
	}
}

func TestBundleGetFallsBackToDefault(t *testing.T) {
	r := newTestRegistry(t)
	b, err := NewBundle(r, Tier{ID: 2, Alias: "Gold", Attributes: map[string]any{"max_downloads": 10}})
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}

	if got := b.Get("alias", "x"); got != "Gold" {
		t.Fatalf("expected alias, got %v", got)
	}
	if got := b.Get("max_downloads", 0); got != 10 {
		t.Fatalf("expected attribute, got %v", got)
	}
	if got := b.Get("role", "none"); got != "none" {
		t.Fatalf("expected default for empty role, got %v", got)
	}
	if got := b.Get("missing", "def"); got != "def" {
		t.Fatalf("expected default, got %v", got)
	}

	var nilBundle *Bundle
	if got := nilBundle.Get("alias", "def"); got != "def" {
		t.Fatalf("expected default from nil bundle, got %v", got)
	}
}

func TestRootBitGrantsEverything(t *testing.T) {
	r := newTestRegistry(t)
	b, err := NewBundle(r, Tier{ID: 9})
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	b.mask.Set(63)
	if !b.Has("post_comments") {
		t.Fatal("expected root bit to grant every capability")
	}
}

func TestTierManagerLoadForTier(t *testing.T) {
	tm := NewTierManager(newTestRegistry(t))
	if err := tm.RegisterTier(Tier{ID: 1, Alias: "Free", Capabilities: []string{"view_content"}}); err != nil {
		t.Fatalf("RegisterTier: %v", err)
	}
	if err := tm.RegisterTier(Tier{ID: 1, Alias: "Dup"}); err == nil {
		t.Fatal("expected duplicate tier to fail")
	}
	tm.Freeze()
	if err := tm.RegisterTier(Tier{ID: 2}); err == nil {
		t.Fatal("expected register after freeze to fail")
	}

	b, err := tm.LoadForTier(context.Background(), 1)
	if err != nil || b.Alias() != "Free" {
		t.Fatalf("unexpected bundle: %+v %v", b, err)
	}

	unknown, err := tm.LoadForTier(context.Background(), 42)
	if err != nil {
		t.Fatalf("LoadForTier unknown: %v", err)
	}
	if unknown.TierID() != 42 || len(unknown.Capabilities()) != 0 {
		t.Fatalf("expected empty bundle for unknown tier, got %+v", unknown)
	}
}
