package auth

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElicitationStore_PendingLookupIsIdempotent(t *testing.T) {
	store := NewElicitationStore(ElicitationStoreConfig{})
	store.AddPending("id-1", "google", []string{"scope-a"})

	for i := 0; i < 3; i++ {
		pending, err := store.LookupPending("id-1")
		require.NoError(t, err)
		assert.Equal(t, "google", pending.Provider)
	}
}

func TestElicitationStore_UnknownPending(t *testing.T) {
	store := NewElicitationStore(ElicitationStoreConfig{})

	_, err := store.LookupPending("never-issued")
	require.Error(t, err)
	assert.True(t, IsUnknownElicitation(err))
}

func TestElicitationStore_SessionBeforeConnectFails(t *testing.T) {
	store := NewElicitationStore(ElicitationStoreConfig{})
	store.AddPending("id-1", "google", []string{"scope-a"})

	// Callback arriving before the connect phase ran.
	_, err := store.LookupSession("id-1")
	require.Error(t, err)
	assert.True(t, IsUnknownSession(err))
}

func TestElicitationStore_RepeatedConnectReplacesSession(t *testing.T) {
	store := NewElicitationStore(ElicitationStoreConfig{})

	store.PutSession(&Session{ID: "id-1", State: "first"})
	store.PutSession(&Session{ID: "id-1", State: "second"})

	session, err := store.LookupSession("id-1")
	require.NoError(t, err)
	assert.Equal(t, "second", session.State, "only the most recent session is honored")
}

func TestElicitationStore_CompleteIsTerminal(t *testing.T) {
	store := NewElicitationStore(ElicitationStoreConfig{})
	store.AddPending("id-1", "google", []string{"scope-a"})
	store.PutSession(&Session{ID: "id-1", State: "s"})

	store.Complete("id-1")

	_, err := store.LookupPending("id-1")
	assert.True(t, IsUnknownElicitation(err))
	_, err = store.LookupSession("id-1")
	assert.True(t, IsUnknownSession(err))
}

func TestElicitationStore_SweepEvictsExpiredEntries(t *testing.T) {
	store := NewElicitationStore(ElicitationStoreConfig{TTL: time.Minute})

	store.AddPending("old", "google", nil)
	store.PutSession(&Session{ID: "old", CreatedAt: time.Now().Add(-2 * time.Minute)})
	store.AddPending("fresh", "google", nil)

	// Backdate the old pending entry.
	store.mu.Lock()
	old := store.pending["old"]
	old.CreatedAt = time.Now().Add(-2 * time.Minute)
	store.pending["old"] = old
	store.mu.Unlock()

	store.sweep(time.Now())

	_, err := store.LookupPending("old")
	assert.True(t, IsUnknownElicitation(err))
	_, err = store.LookupSession("old")
	assert.True(t, IsUnknownSession(err))
	_, err = store.LookupPending("fresh")
	assert.NoError(t, err)
}

func TestElicitationStore_ExpiredEntriesRejectedBeforeSweep(t *testing.T) {
	store := NewElicitationStore(ElicitationStoreConfig{TTL: time.Minute})

	store.PutSession(&Session{ID: "stale", CreatedAt: time.Now().Add(-2 * time.Minute)})

	_, err := store.LookupSession("stale")
	assert.True(t, IsUnknownSession(err), "expired sessions must not be usable even before the sweeper runs")
}

func TestElicitationStore_ConcurrentAccess(t *testing.T) {
	store := NewElicitationStore(ElicitationStoreConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("id-%d", n)
			store.AddPending(id, "google", []string{"scope-a"})
			if _, err := store.LookupPending(id); err != nil {
				t.Errorf("LookupPending(%s) failed: %v", id, err)
			}
			store.PutSession(&Session{ID: id, State: "s"})
			if _, err := store.LookupSession(id); err != nil {
				t.Errorf("LookupSession(%s) failed: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	pending, sessions := store.Len()
	assert.Equal(t, 50, pending)
	assert.Equal(t, 50, sessions)
}
