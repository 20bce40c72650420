// Package connect implements the LISTEN/SYNC/CONNECTED link supervisor
// driven by the stream of valid frames the link engine observes.
package connect

import "github.com/olliw-labs/mlrs-tx/internal/tick"

// State is one of LISTEN, SYNC, CONNECTED.
type State uint8

const (
	Listen State = iota
	Sync
	Connected
)

func (s State) String() string {
	switch s {
	case Listen:
		return "LISTEN"
	case Sync:
		return "SYNC"
	case Connected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Machine is the connect-state supervisor. SyncThreshold consecutive
// cycles with a valid frame promote LISTEN -> SYNC -> CONNECTED; once
// CONNECTED, TmoSysticks systicks without a fresh valid frame demotes back
// to LISTEN.
type Machine struct {
	state         State
	syncCnt       uint8
	syncThreshold uint8
	tmo           tick.Countdown
	tmoSysticks   uint32
}

// New returns a Machine starting in LISTEN.
func New(tmoSysticks uint32, syncThreshold uint8) *Machine {
	return &Machine{syncThreshold: syncThreshold, tmoSysticks: tmoSysticks}
}

// Tick must be called once per systick; it decrements the connect timeout
// countdown. State transitions driven by the timeout are applied in Feed,
// not here, matching the original firmware's split between the 1kHz
// SysTask decrement and the once-per-cycle pre-transmit evaluation.
func (m *Machine) Tick() {
	m.tmo.Tick()
}

// Feed must be called once per cycle, during the pre-transmit phase, with
// whether a valid frame was received this cycle. It returns the resulting
// state.
func (m *Machine) Feed(validFrameReceived bool) State {
	if validFrameReceived {
		switch m.state {
		case Listen:
			m.state = Sync
			m.syncCnt = 0
			if m.syncThreshold <= 1 {
				m.state = Connected
			}
		case Sync:
			m.syncCnt++
			// syncCnt counts the valid frames after the one that left
			// LISTEN, so the frame that left LISTEN is added back here.
			if m.syncCnt+1 >= m.syncThreshold {
				m.state = Connected
			}
		default:
			m.state = Connected
		}
		m.tmo.Arm(m.tmoSysticks)
	}

	if m.state == Connected && !m.tmo.Active() {
		m.state = Listen
	}

	// A cycle with no valid frame resets the sync counter, but only once
	// CONNECTED does a miss reset it to zero — while still in SYNC, a
	// single miss does not by itself restart the climb (the SYNC branch
	// above only ever increments on a hit; a miss simply leaves syncCnt
	// where it was, matching the narrow reading of spec.md §4.6).
	if m.state == Connected && !validFrameReceived {
		m.syncCnt = 0
	}

	return m.state
}

// State returns the current state without mutating anything.
func (m *Machine) State() State { return m.state }

// Connected reports whether the machine is in CONNECTED.
func (m *Machine) Connected() bool { return m.state == Connected }

// SyncCount exposes the current sync counter, mostly for tests.
func (m *Machine) SyncCount() uint8 { return m.syncCnt }
