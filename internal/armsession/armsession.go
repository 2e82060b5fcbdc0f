// Package armsession implements the Arm-Session Manager (spec §4.5/§5): a
// process-local, time-bounded cache of live DEKs keyed by (userId,
// walletId). It is modeled on the teacher's single-session
// memguard.Enclave pattern, generalized to a keyed table with a periodic
// sweeper and signal-driven shutdown disarm.
package armsession

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/awnumar/memguard"
)

// Key identifies an arm session.
type Key struct {
	UserID   string
	WalletID string
}

type entry struct {
	enclave   *memguard.Enclave
	expiresAt time.Time
	timer     *time.Timer
}

// Status is the read-only snapshot returned by Status.
type Status struct {
	Armed  bool
	MsLeft int64
}

// Manager is the Arm-Session Manager. The zero value is not usable; build
// one with New. A Manager is sticky to the process that created it: spec
// §5 explicitly forbids horizontal scale-out of armed sessions.
type Manager struct {
	mu           sync.Mutex
	sessions     map[Key]*entry
	sweepEvery   time.Duration
	log          *slog.Logger
	stopSweeper  chan struct{}
	sweeperOnce  sync.Once
	sweeperDone  chan struct{}
}

// New creates a Manager and starts its periodic sweeper, which runs every
// sweepEvery and disarms any session whose timer was missed (defense in
// depth per spec §4.5).
func New(sweepEvery time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		sessions:    make(map[Key]*entry),
		sweepEvery:  sweepEvery,
		log:         log,
		stopSweeper: make(chan struct{}),
		sweeperDone: make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Arm installs dek for (userId, walletId), replacing (disarming) any
// prior entry for the same key, and schedules expiry after ttl. dek is
// copied into a memguard.Enclave, which wipes the caller's slice; the
// caller must not reuse the slice afterward.
func (m *Manager) Arm(userID, walletID string, dek []byte, ttl time.Duration) {
	key := Key{UserID: userID, WalletID: walletID}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.disarmLocked(key)

	expiresAt := time.Now().Add(ttl)
	e := &entry{
		enclave:   memguard.NewEnclave(dek),
		expiresAt: expiresAt,
	}
	e.timer = time.AfterFunc(ttl, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.disarmIfCurrentLocked(key, e)
	})
	m.sessions[key] = e
}

// Extend adds extraMs to the remaining TTL of an existing session,
// replacing it with an identical DEK copy and a fresh timer. Returns
// false if no session is currently armed for the key.
func (m *Manager) Extend(userID, walletID string, extra time.Duration) bool {
	key := Key{UserID: userID, WalletID: walletID}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[key]
	if !ok {
		return false
	}
	if time.Now().After(e.expiresAt) {
		m.disarmLocked(key)
		return false
	}

	buf, err := e.enclave.Open()
	if err != nil {
		m.disarmLocked(key)
		return false
	}
	dekCopy := make([]byte, buf.Size())
	copy(dekCopy, buf.Bytes())
	buf.Destroy()

	remaining := time.Until(e.expiresAt)
	if remaining < 0 {
		remaining = 0
	}
	newTTL := remaining + extra

	m.disarmLocked(key)

	newEntry := &entry{
		enclave:   memguard.NewEnclave(dekCopy),
		expiresAt: time.Now().Add(newTTL),
	}
	newEntry.timer = time.AfterFunc(newTTL, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.disarmIfCurrentLocked(key, newEntry)
	})
	m.sessions[key] = newEntry
	return true
}

// Disarm cancels the timer and removes the session, dropping its sealed
// DEK (see disarmLocked). It is a no-op if no session is armed for the
// key.
func (m *Manager) Disarm(userID, walletID string) {
	key := Key{UserID: userID, WalletID: walletID}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disarmLocked(key)
}

// disarmLocked requires m.mu held.
func (m *Manager) disarmLocked(key Key) {
	e, ok := m.sessions[key]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	// The entry holds the DEK only as memguard-encrypted enclave
	// ciphertext; plaintext copies exist only in the LockedBuffers that
	// GetDEK/Extend destroy. Deleting the entry drops that ciphertext
	// without overwriting it.
	delete(m.sessions, key)
}

// disarmIfCurrentLocked requires m.mu held. It's the expiry-timer
// callback's disarm: only deletes the map entry if it still holds the
// exact *entry the timer was scheduled for, so a timer whose Arm/Extend
// replacement already won the race (installed a new entry after losing
// the Stop() race) can never delete that newer entry out from under it.
func (m *Manager) disarmIfCurrentLocked(key Key, want *entry) {
	if m.sessions[key] != want {
		return
	}
	m.disarmLocked(key)
}

// Status reports whether a session is armed and the time remaining. An
// expired session is disarmed as a side effect and reported unarmed.
func (m *Manager) Status(userID, walletID string) Status {
	key := Key{UserID: userID, WalletID: walletID}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[key]
	if !ok {
		return Status{Armed: false}
	}
	if time.Now().After(e.expiresAt) {
		m.disarmLocked(key)
		return Status{Armed: false}
	}

	msLeft := time.Until(e.expiresAt).Milliseconds()
	if msLeft < 0 {
		msLeft = 0
	}
	return Status{Armed: true, MsLeft: msLeft}
}

// GetDEK returns a fresh copy of the DEK for (userId, walletId) if a
// session is still valid, or nil if none exists or it has expired (in
// which case it is disarmed as a side effect). The caller owns the
// returned slice and must zeroize it after use.
func (m *Manager) GetDEK(userID, walletID string) []byte {
	key := Key{UserID: userID, WalletID: walletID}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[key]
	if !ok {
		return nil
	}
	if time.Now().After(e.expiresAt) {
		m.disarmLocked(key)
		return nil
	}

	buf, err := e.enclave.Open()
	if err != nil {
		m.disarmLocked(key)
		return nil
	}
	dekCopy := make([]byte, buf.Size())
	copy(dekCopy, buf.Bytes())
	buf.Destroy()
	return dekCopy
}

// sweepLoop runs the periodic defense-in-depth sweep (spec §4.5).
func (m *Manager) sweepLoop() {
	defer close(m.sweeperDone)
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopSweeper:
			return
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for key, e := range m.sessions {
		if now.After(e.expiresAt) {
			m.disarmLocked(key)
		}
	}
}

// Shutdown stops the sweeper and disarms every armed session. It is
// intended to be called from a signal handler on graceful termination
// (spec §4.5). It blocks until the sweeper goroutine has exited.
func (m *Manager) Shutdown(ctx context.Context) {
	m.sweeperOnce.Do(func() { close(m.stopSweeper) })

	select {
	case <-m.sweeperDone:
	case <-ctx.Done():
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cleared := len(m.sessions)
	for key := range m.sessions {
		m.disarmLocked(key)
	}
	m.log.Info("armsession: shutdown complete", "sessions_cleared", cleared)
}

// Len reports the number of currently armed sessions. Intended for tests
// and metrics, not for control flow.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
