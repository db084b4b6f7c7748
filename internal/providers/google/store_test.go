package google

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestStore(t *testing.T) *GrantStore {
	t.Helper()

	store, err := NewGrantStore(GrantStoreConfig{Dir: t.TempDir(), FileMode: true})
	if err != nil {
		t.Fatalf("NewGrantStore failed: %v", err)
	}
	return store
}

func TestGrantStore_PutAndLookup(t *testing.T) {
	store := createTestStore(t)

	grant := &StoredGrant{
		Principal:    "local",
		Scopes:       []string{"scope-a", "scope-b"},
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
	if err := store.Put(grant); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got := store.Lookup("local", []string{"scope-a", "scope-b"})
	if got == nil {
		t.Fatal("expected grant, got nil")
	}
	if got.AccessToken != "access" {
		t.Errorf("expected access token 'access', got %q", got.AccessToken)
	}
	if got.RefreshToken != "refresh" {
		t.Errorf("expected refresh token to round-trip, got %q", got.RefreshToken)
	}
}

func TestGrantStore_LookupScopeOrderIrrelevant(t *testing.T) {
	store := createTestStore(t)

	if err := store.Put(&StoredGrant{Principal: "local", Scopes: []string{"b", "a"}, AccessToken: "tok"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if store.Lookup("local", []string{"a", "b"}) == nil {
		t.Error("lookup must treat the scope sequence as a set")
	}
}

func TestGrantStore_LookupCoveringGrant(t *testing.T) {
	store := createTestStore(t)

	if err := store.Put(&StoredGrant{Principal: "local", Scopes: []string{"a", "b", "c"}, AccessToken: "tok"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if store.Lookup("local", []string{"b"}) == nil {
		t.Error("a grant covering a superset of the requested scopes must match")
	}
	if store.Lookup("local", []string{"b", "d"}) != nil {
		t.Error("a grant missing a requested scope must not match")
	}
	if store.Lookup("other", []string{"b"}) != nil {
		t.Error("a grant for another principal must not match")
	}
}

func TestGrantStore_LookupMiss(t *testing.T) {
	store := createTestStore(t)

	if store.Lookup("local", []string{"scope-a"}) != nil {
		t.Error("expected nil for a principal with no grants")
	}
}

func TestGrantStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first, err := NewGrantStore(GrantStoreConfig{Dir: dir, FileMode: true})
	if err != nil {
		t.Fatalf("NewGrantStore failed: %v", err)
	}
	if err := first.Put(&StoredGrant{Principal: "local", Scopes: []string{"a"}, AccessToken: "tok", RefreshToken: "rt"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	second, err := NewGrantStore(GrantStoreConfig{Dir: dir, FileMode: true})
	if err != nil {
		t.Fatalf("NewGrantStore failed: %v", err)
	}

	got := second.Lookup("local", []string{"a"})
	if got == nil {
		t.Fatal("expected grant loaded from disk")
	}
	if got.RefreshToken != "rt" {
		t.Errorf("refresh secret must survive the file round-trip, got %q", got.RefreshToken)
	}
}

func TestGrantStore_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewGrantStore(GrantStoreConfig{Dir: dir, FileMode: true})
	if err != nil {
		t.Fatalf("NewGrantStore failed: %v", err)
	}
	if err := store.Put(&StoredGrant{Principal: "local", Scopes: []string{"a"}, AccessToken: "tok"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 grant file, got %d", len(entries))
	}

	info, err := os.Stat(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected grant file mode 0600, got %o", perm)
	}
}

func TestGrantStore_PutReplacesExistingGrant(t *testing.T) {
	store := createTestStore(t)

	if err := store.Put(&StoredGrant{Principal: "local", Scopes: []string{"a"}, AccessToken: "old"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put(&StoredGrant{Principal: "local", Scopes: []string{"a"}, AccessToken: "new"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got := store.Lookup("local", []string{"a"})
	if got == nil || got.AccessToken != "new" {
		t.Errorf("expected replacement grant, got %+v", got)
	}
}

func TestGrantStore_Delete(t *testing.T) {
	store := createTestStore(t)

	if err := store.Put(&StoredGrant{Principal: "local", Scopes: []string{"a"}, AccessToken: "tok"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete("local", []string{"a"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if store.Lookup("local", []string{"a"}) != nil {
		t.Error("expected grant to be gone after Delete")
	}
	if err := store.Delete("local", []string{"a"}); err != nil {
		t.Errorf("deleting a missing grant must not fail: %v", err)
	}
}

func TestGrantStore_MalformedFileIsSkipped(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	store, err := NewGrantStore(GrantStoreConfig{Dir: dir, FileMode: true})
	if err != nil {
		t.Fatalf("NewGrantStore failed: %v", err)
	}

	if store.Lookup("local", []string{"a"}) != nil {
		t.Error("malformed grant files must be treated as absent, not crash")
	}
}
