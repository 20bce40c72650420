package connect

import "testing"

// TestColdConnect is scenario S1: sync_cnt threshold=3, feed valid frames
// at cycles 1..4. After cycle 1, SYNC; after cycle 3 (third valid frame),
// CONNECTED; stays CONNECTED on cycle 4.
func TestColdConnect(t *testing.T) {
	m := New(100, 3)
	if got := m.Feed(true); got != Sync {
		t.Fatalf("cycle 1: state = %v, want SYNC", got)
	}
	if got := m.Feed(true); got != Sync {
		t.Fatalf("cycle 2: state = %v, want SYNC", got)
	}
	if got := m.Feed(true); got != Connected {
		t.Fatalf("cycle 3: state = %v, want CONNECTED", got)
	}
	if got := m.Feed(true); got != Connected {
		t.Fatalf("cycle 4: state = %v, want CONNECTED", got)
	}
}

// TestConnectedAfterSyncThreshold is testable property 4.
func TestConnectedAfterSyncThreshold(t *testing.T) {
	const threshold = 5
	m := New(1000, threshold)
	for i := 0; i < threshold; i++ {
		m.Feed(true)
	}
	if !m.Connected() {
		t.Fatalf("state = %v after %d consecutive valid frames, want CONNECTED", m.State(), threshold)
	}
}

// TestLinkLostAfterTimeout is testable property 5: after CONNECT_TMO_SYSTICKS
// systicks without a valid frame while CONNECTED, state becomes LISTEN.
func TestLinkLostAfterTimeout(t *testing.T) {
	const tmo = 50
	m := New(tmo, 2)
	m.Feed(true)
	m.Feed(true)
	if !m.Connected() {
		t.Fatalf("expected CONNECTED before timeout test, got %v", m.State())
	}

	for i := 0; i < tmo; i++ {
		m.Tick()
	}
	if got := m.Feed(false); got != Listen {
		t.Fatalf("state after %d systicks with no valid frame = %v, want LISTEN", tmo, got)
	}
}

func TestMissInSyncDoesNotResetCounter(t *testing.T) {
	m := New(100, 5)
	m.Feed(true) // LISTEN -> SYNC, syncCnt=0
	m.Feed(true) // syncCnt=1
	m.Feed(false) // a miss while in SYNC must not reset syncCnt
	if got := m.SyncCount(); got != 1 {
		t.Fatalf("syncCnt after miss in SYNC = %d, want 1 (unchanged)", got)
	}
	if m.State() != Sync {
		t.Fatalf("state after miss in SYNC = %v, want SYNC", m.State())
	}
}

func TestMissWhileConnectedResetsSyncCounter(t *testing.T) {
	m := New(1000, 2)
	m.Feed(true)
	m.Feed(true)
	if !m.Connected() {
		t.Fatal("expected CONNECTED")
	}
	m.Feed(false)
	if got := m.SyncCount(); got != 0 {
		t.Fatalf("syncCnt after miss while CONNECTED = %d, want 0", got)
	}
}

func TestTimeoutRefreshedOnEveryValidFrame(t *testing.T) {
	m := New(5, 1)
	m.Feed(true) // CONNECTED immediately (threshold 1), tmo armed to 5
	for i := 0; i < 3; i++ {
		m.Tick()
	}
	m.Feed(true) // refresh before expiry
	for i := 0; i < 3; i++ {
		m.Tick()
	}
	if got := m.Feed(false); got != Connected {
		t.Fatalf("state = %v, want still CONNECTED since timeout was refreshed", got)
	}
}
