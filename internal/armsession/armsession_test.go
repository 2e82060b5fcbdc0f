package armsession_test

import (
	"context"
	"testing"
	"time"

	"github.com/caesar-terminal/caesar/internal/armsession"
)

func newManager(t *testing.T) *armsession.Manager {
	t.Helper()
	m := armsession.New(24*time.Hour, nil) // sweeper disabled for practical purposes in short tests
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m
}

func TestArmAndGetDEK(t *testing.T) {
	m := newManager(t)
	want := "0123456789abcdef0123456789abcdef"

	m.Arm("u1", "w1", []byte(want), time.Minute)

	got := m.GetDEK("u1", "w1")
	if got == nil {
		t.Fatal("expected a DEK copy, got nil")
	}
	if string(got) != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestGetDEKMissingReturnsNil(t *testing.T) {
	m := newManager(t)
	if got := m.GetDEK("no-such-user", "no-such-wallet"); got != nil {
		t.Fatalf("expected nil, got %q", got)
	}
}

func TestArmReplacesExisting(t *testing.T) {
	m := newManager(t)
	m.Arm("u1", "w1", []byte("first-dek-bytes-0000000000000000"), time.Minute)
	m.Arm("u1", "w1", []byte("second-dek-bytes-000000000000000"), time.Minute)

	got := m.GetDEK("u1", "w1")
	if string(got) != "second-dek-bytes-000000000000000" {
		t.Fatalf("expected second entry to win, got %q", got)
	}
	if m.Len() != 1 {
		t.Fatalf("expected exactly one session, got %d", m.Len())
	}
}

func TestDisarmRemovesSession(t *testing.T) {
	m := newManager(t)
	m.Arm("u1", "w1", []byte("dek-bytes-00000000000000000000000"), time.Minute)
	m.Disarm("u1", "w1")

	if got := m.GetDEK("u1", "w1"); got != nil {
		t.Fatalf("expected nil after disarm, got %q", got)
	}
	if st := m.Status("u1", "w1"); st.Armed {
		t.Fatal("expected unarmed status after disarm")
	}
}

func TestExpiryViaTimer(t *testing.T) {
	m := newManager(t)
	m.Arm("u1", "w1", []byte("dek-bytes-00000000000000000000000"), 20*time.Millisecond)

	if st := m.Status("u1", "w1"); !st.Armed {
		t.Fatal("expected armed immediately after arm")
	}

	time.Sleep(100 * time.Millisecond)

	if st := m.Status("u1", "w1"); st.Armed {
		t.Fatal("expected session to expire and disarm via timer")
	}
	if got := m.GetDEK("u1", "w1"); got != nil {
		t.Fatalf("expected nil after expiry, got %q", got)
	}
}

func TestExtendExistingSession(t *testing.T) {
	m := newManager(t)
	m.Arm("u1", "w1", []byte("dek-bytes-00000000000000000000000"), 50*time.Millisecond)

	ok := m.Extend("u1", "w1", 500*time.Millisecond)
	if !ok {
		t.Fatal("expected Extend to succeed on an armed session")
	}

	time.Sleep(100 * time.Millisecond)
	if st := m.Status("u1", "w1"); !st.Armed {
		t.Fatal("expected session still armed after extend outlives the original TTL")
	}
}

func TestExtendMissingSessionFails(t *testing.T) {
	m := newManager(t)
	if ok := m.Extend("no-user", "no-wallet", time.Minute); ok {
		t.Fatal("expected Extend to fail for a session that was never armed")
	}
}

func TestStatusMsLeftDecreases(t *testing.T) {
	m := newManager(t)
	m.Arm("u1", "w1", []byte("dek-bytes-00000000000000000000000"), 200*time.Millisecond)

	first := m.Status("u1", "w1")
	time.Sleep(50 * time.Millisecond)
	second := m.Status("u1", "w1")

	if !first.Armed || !second.Armed {
		t.Fatal("expected both status checks to observe an armed session")
	}
	if second.MsLeft >= first.MsLeft {
		t.Fatalf("expected msLeft to decrease, got first=%d second=%d", first.MsLeft, second.MsLeft)
	}
}

func TestPeriodicSweeperDisarmsExpiredEntries(t *testing.T) {
	m := armsession.New(30*time.Millisecond, nil)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Shutdown(ctx)
	}()

	m.Arm("u1", "w1", []byte("dek-bytes-00000000000000000000000"), 10*time.Millisecond)

	time.Sleep(150 * time.Millisecond)

	if got := m.Len(); got != 0 {
		t.Fatalf("expected sweeper to clear expired session, got %d remaining", got)
	}
}

func TestShutdownZeroizesAllSessions(t *testing.T) {
	m := armsession.New(time.Hour, nil)
	m.Arm("u1", "w1", []byte("dek-bytes-00000000000000000000000"), time.Hour)
	m.Arm("u2", "w2", []byte("dek-bytes-11111111111111111111111"), time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Shutdown(ctx)

	if got := m.Len(); got != 0 {
		t.Fatalf("expected all sessions cleared after shutdown, got %d", got)
	}
}
