// Package stats implements the sliding-window link-quality accounting
// (TxStats) and the per-cycle diagnostic snapshot (Stats) the link engine
// maintains. Both are main-loop-only state: never touched from an ISR.
package stats

// MaxLQPeriod bounds the sliding window so it lives in a fixed array with
// no per-boot heap allocation.
const MaxLQPeriod = 250

// TxStats is the sliding-window link-quality accounting over
// LQAveragingPeriod cycles.
type TxStats struct {
	period int

	frameWin  [MaxLQPeriod]bool
	validWin  [MaxLQPeriod]bool
	serialWin [MaxLQPeriod]bool
	idx       int

	frameSum, validSum, serialSum int

	pendingFrame, pendingValid, pendingSerial bool

	bytesTxAccum, bytesRxAccum     uint32
	bytesTxPerSec, bytesRxPerSec   uint32

	// Diagnostic snapshot fields mirroring the fhss_curr_i/rx1_valid/
	// rx2_valid fields the original firmware stashes on TxStats for
	// telemetry/debug readout.
	FhssCurrIndex int
	Rx1Valid      bool
	Rx2Valid      bool
}

// NewTxStats returns a TxStats averaging over period cycles (clamped to
// [1, MaxLQPeriod]).
func NewTxStats(period int) *TxStats {
	if period < 1 {
		period = 1
	}
	if period > MaxLQPeriod {
		period = MaxLQPeriod
	}
	return &TxStats{period: period}
}

// DoFrameReceived marks the current cycle as having received something
// (valid or not) on at least one active antenna. Call at most once per
// cycle, only when a reception was actually detected.
func (t *TxStats) DoFrameReceived() { t.pendingFrame = true }

// DoValidFrameReceived marks the current cycle as having received a valid
// frame.
func (t *TxStats) DoValidFrameReceived() { t.pendingValid = true }

// DoSerialDataMoved marks the current cycle as having moved useful serial
// payload (tunneled bytes actually transmitted or delivered).
func (t *TxStats) DoSerialDataMoved() { t.pendingSerial = true }

// AddBytesTransmitted accumulates bytes sent this cycle toward the 1Hz
// bytes-per-second counter.
func (t *TxStats) AddBytesTransmitted(n int) { t.bytesTxAccum += uint32(n) }

// AddBytesReceived accumulates bytes received this cycle toward the 1Hz
// bytes-per-second counter.
func (t *TxStats) AddBytesReceived(n int) { t.bytesRxAccum += uint32(n) }

// Update1Hz rolls the byte accumulators into the reported bytes-per-second
// values and resets them. Call once per second.
func (t *TxStats) Update1Hz() {
	t.bytesTxPerSec = t.bytesTxAccum
	t.bytesTxAccum = 0
	t.bytesRxPerSec = t.bytesRxAccum
	t.bytesRxAccum = 0
}

// BytesPerSecTransmitted and BytesPerSecReceived report the last Update1Hz
// snapshot.
func (t *TxStats) BytesPerSecTransmitted() uint32 { return t.bytesTxPerSec }
func (t *TxStats) BytesPerSecReceived() uint32    { return t.bytesRxPerSec }

// Next advances the sliding window by one cycle, folding in whatever was
// marked via DoFrameReceived/DoValidFrameReceived/DoSerialDataMoved since
// the last call and evicting the oldest cycle's contribution.
func (t *TxStats) Next() {
	if t.frameWin[t.idx] {
		t.frameSum--
	}
	if t.validWin[t.idx] {
		t.validSum--
	}
	if t.serialWin[t.idx] {
		t.serialSum--
	}

	t.frameWin[t.idx] = t.pendingFrame
	t.validWin[t.idx] = t.pendingValid
	t.serialWin[t.idx] = t.pendingSerial
	if t.pendingFrame {
		t.frameSum++
	}
	if t.pendingValid {
		t.validSum++
	}
	if t.pendingSerial {
		t.serialSum++
	}

	t.idx = (t.idx + 1) % t.period
	t.pendingFrame, t.pendingValid, t.pendingSerial = false, false, false
}

// GetLQ returns the percentage (0-100) of the last `period` cycles in
// which any reception was detected.
func (t *TxStats) GetLQ() uint8 {
	return uint8(t.frameSum * 100 / t.period)
}

// GetLQValid returns the percentage of the last `period` cycles in which a
// valid frame was received.
func (t *TxStats) GetLQValid() uint8 {
	return uint8(t.validSum * 100 / t.period)
}

// GetLQSerialData returns the percentage of the last `period` cycles in
// which useful serial payload moved.
func (t *TxStats) GetLQSerialData() uint8 {
	return uint8(t.serialSum * 100 / t.period)
}
