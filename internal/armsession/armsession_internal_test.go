package armsession

import (
	"testing"
	"time"

	"github.com/awnumar/memguard"
)

// TestDisarmIfCurrentLockedIgnoresStaleEntry exercises the Arm/Extend race
// guard directly: a stale timer callback holding a reference to an entry
// that has since been replaced must not delete the replacement.
func TestDisarmIfCurrentLockedIgnoresStaleEntry(t *testing.T) {
	m := New(time.Hour, nil)
	defer func() {
		m.mu.Lock()
		for key := range m.sessions {
			delete(m.sessions, key)
		}
		m.mu.Unlock()
	}()

	key := Key{UserID: "u1", WalletID: "w1"}
	stale := &entry{enclave: memguard.NewEnclave([]byte("stale-dek-bytes-0000000000000000"))}
	current := &entry{enclave: memguard.NewEnclave([]byte("current-dek-bytes-00000000000000"))}

	m.mu.Lock()
	m.sessions[key] = current
	m.mu.Unlock()

	// Simulate the stale timer's callback firing after the key was
	// re-armed: it still references the old *entry it was scheduled for.
	m.mu.Lock()
	m.disarmIfCurrentLocked(key, stale)
	m.mu.Unlock()

	m.mu.Lock()
	got, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok || got != current {
		t.Fatal("expected stale disarm to leave the current entry untouched")
	}

	// A disarm that does reference the current entry must still win.
	m.mu.Lock()
	m.disarmIfCurrentLocked(key, current)
	m.mu.Unlock()

	m.mu.Lock()
	_, ok = m.sessions[key]
	m.mu.Unlock()
	if ok {
		t.Fatal("expected the matching disarm to remove the current entry")
	}
}
