package link

import (
	"testing"

	"github.com/olliw-labs/mlrs-tx/internal/fhss"
	"github.com/olliw-labs/mlrs-tx/internal/frame"
	"github.com/olliw-labs/mlrs-tx/internal/radio"
)

func newBothEngine(t *testing.T) (*Engine, *radio.LoopbackDriver, *radio.LoopbackDriver, *radio.LoopbackDriver, *radio.LoopbackDriver) {
	t.Helper()
	d1a, d1b := radio.NewLoopbackPair()
	d2a, d2b := radio.NewLoopbackPair()
	codec := frame.NewCodec(frame.DefaultSyncWord)
	fh := fhss.New()
	fh.Init(10, 42)
	p1 := radio.NewPort(d1a, frame.DefaultSyncWord)
	p2 := radio.NewPort(d2a, frame.DefaultSyncWord)
	e := NewEngine(codec, fh, radio.ModeBoth, p1, p2)
	return e, d1a, d1b, d2a, d2b
}

// TestDiversitySelection is testable property 6: all nine (rx1, rx2)
// combinations resolve per §4.5/§4.6's RSSI tiebreak, which ties to
// antenna 1 rather than the original mlrs-tx.cpp's do_transmit ternary
// (which ties to antenna 2).
func TestDiversitySelection(t *testing.T) {
	cases := []struct {
		rx1, rx2           RxStatus
		rssi1, rssi2       int8
		want               radio.Antenna
	}{
		{RxNone, RxNone, -50, -40, radio.Antenna2},
		{RxNone, RxNone, -40, -50, radio.Antenna1},
		{RxNone, RxNone, -50, -50, radio.Antenna1},
		{RxNone, RxInvalid, -50, -40, radio.Antenna2},
		{RxNone, RxInvalid, -40, -50, radio.Antenna1},
		{RxNone, RxValid, -80, -80, radio.Antenna2},
		{RxInvalid, RxNone, -40, -50, radio.Antenna1},
		{RxInvalid, RxInvalid, -50, -40, radio.Antenna2},
		{RxInvalid, RxInvalid, -40, -50, radio.Antenna1},
		{RxInvalid, RxInvalid, -45, -45, radio.Antenna1},
		{RxInvalid, RxValid, -80, -80, radio.Antenna2},
		{RxValid, RxNone, -80, -80, radio.Antenna1},
		{RxValid, RxInvalid, -80, -80, radio.Antenna1},
		{RxValid, RxValid, -50, -40, radio.Antenna2},
		{RxValid, RxValid, -40, -50, radio.Antenna1},
		{RxValid, RxValid, -60, -60, radio.Antenna1},
	}

	for _, c := range cases {
		e := &Engine{Diversity: radio.ModeBoth, rx1: c.rx1, rx2: c.rx2}
		got := e.selectAntenna(c.rssi1, c.rssi2)
		if got != c.want {
			t.Errorf("rx1=%v rx2=%v rssi1=%d rssi2=%d: selectAntenna() = %v, want %v",
				c.rx1, c.rx2, c.rssi1, c.rssi2, got, c.want)
		}
	}
}

func TestEnterCycleTransmitHopsAndClears(t *testing.T) {
	e, d1a, _, d2a, _ := newBothEngine(t)
	e.Port1.IRQ.Latch(radio.IRQTimeout)
	e.Port2.IRQ.Latch(radio.IRQTimeout)
	e.state = Transmit

	before := e.Fhss.CurrIndex()
	buf := make([]byte, frame.Len)
	trigger := e.EnterCycle(buf, 1000)

	if !trigger {
		t.Fatal("EnterCycle() on TRANSMIT entry should request a WhileTransmit trigger")
	}
	if e.state != TransmitWait {
		t.Fatalf("state = %v, want TRANSMIT_WAIT", e.state)
	}
	if e.Fhss.CurrIndex() == before {
		t.Fatal("EnterCycle() on TRANSMIT entry did not hop the FHSS schedule")
	}
	if e.Port1.IRQ.Snapshot() != 0 || e.Port2.IRQ.Snapshot() != 0 {
		t.Fatal("EnterCycle() on TRANSMIT entry did not clear both IRQ words")
	}
	if d1a.Frequency() != d2a.Frequency() {
		t.Fatal("both radios should be retuned to the same hopped frequency")
	}
}

// TestFullCycleRoundTrip drives two Engines through TRANSMIT/RECEIVE once
// each, using a loopback pair on antenna 1 only, and checks the receiving
// side decodes a valid frame.
func TestFullCycleRoundTrip(t *testing.T) {
	codecA := frame.NewCodec(frame.DefaultSyncWord)
	codecB := frame.NewCodec(frame.DefaultSyncWord)
	fhA := fhss.New()
	fhA.Init(1, 1)
	fhB := fhss.New()
	fhB.Init(1, 1)

	dA, dB := radio.NewLoopbackPair()
	pA := radio.NewPort(dA, frame.DefaultSyncWord)
	pB := radio.NewPort(dB, frame.DefaultSyncWord)

	engA := NewEngine(codecA, fhA, radio.ModeAntenna1Only, pA, nil)
	engB := NewEngine(codecB, fhB, radio.ModeAntenna1Only, pB, nil)
	engA.state = Transmit
	engB.state = Receive

	txBuf := make([]byte, frame.Len)
	codecA.PackTX(txBuf, frame.StatsInput{SeqNo: 7}, nil, nil)

	engA.EnterCycle(txBuf, 1000)
	engB.EnterCycle(nil, 1000)

	// The DIO handler normally latches IRQ asynchronously; invoke it
	// synchronously here since the loopback driver completes SendFrame
	// and SetToRX immediately.
	pA.HandleDIOInterrupt()
	pB.HandleDIOInterrupt()

	engA.ProcessIRQ1(nil)
	rxBuf := make([]byte, frame.Len)
	engB.ProcessIRQ1(rxBuf)

	if engA.state != Receive {
		t.Fatalf("transmitter state after TX_DONE = %v, want RECEIVE", engA.state)
	}
	if engB.state != ReceiveDone {
		t.Fatalf("receiver state after RX_DONE = %v, want RECEIVE_DONE", engB.state)
	}
	if engB.rx1 != RxValid {
		t.Fatalf("receiver rx1 status = %v, want VALID", engB.rx1)
	}
	if engB.last1.Frame.SeqNo != 7 {
		t.Fatalf("decoded SeqNo = %d, want 7", engB.last1.Frame.SeqNo)
	}
}

// TestCorruptedSyncwordNormalizesToNoFrame is scenario S3 at the link layer:
// a frame whose syncword doesn't match never counts as a reception.
func TestCorruptedSyncwordNormalizesToNoFrame(t *testing.T) {
	codecA := frame.NewCodec(frame.DefaultSyncWord)
	fhA := fhss.New()
	fhA.Init(1, 1)
	dA, dB := radio.NewLoopbackPair()
	_ = radio.NewPort(dA, frame.DefaultSyncWord)
	pB := radio.NewPort(dB, frame.DefaultSyncWord)
	engB := NewEngine(codecA, fhA, radio.ModeAntenna1Only, pB, nil)
	engB.state = Receive

	txBuf := make([]byte, frame.Len)
	codecA.PackTX(txBuf, frame.StatsInput{SeqNo: 1}, nil, nil)
	dA.SendFrame(txBuf, 1000)
	dB.CorruptPendingSyncWord()

	engB.EnterCycle(nil, 1000)
	pB.HandleDIOInterrupt()
	engB.ProcessIRQ1(make([]byte, frame.Len))

	if engB.state != ReceiveWait {
		t.Fatalf("state after mismatched syncword = %v, want still RECEIVE_WAIT (no frame)", engB.state)
	}
	if engB.rx1 != RxNone {
		t.Fatalf("rx1 status after mismatched syncword = %v, want NONE", engB.rx1)
	}
}

// TestImpossibleIRQFatal is scenario S6: an RX_DONE observed while in
// TRANSMIT_WAIT (never consumed by the TX_DONE branch) is fatal.
func TestImpossibleIRQFatal(t *testing.T) {
	d1, _ := radio.NewLoopbackPair()
	p1 := radio.NewPort(d1, frame.DefaultSyncWord)
	fh := fhss.New()
	fh.Init(1, 1)
	e := NewEngine(frame.NewCodec(frame.DefaultSyncWord), fh, radio.ModeAntenna1Only, p1, nil)
	e.state = TransmitWait
	p1.IRQ.Latch(radio.IRQRxDone)

	e.ProcessIRQ1(make([]byte, frame.Len))

	if e.Fatal != FatalUnexpectedRxDone {
		t.Fatalf("Fatal = %v, want FatalUnexpectedRxDone", e.Fatal)
	}
	if e.FatalErr == nil {
		t.Fatal("FatalErr should be set alongside Fatal")
	}
}

func TestPreTransmitResetsAndAdvancesToTransmit(t *testing.T) {
	e, _, _, _, _ := newBothEngine(t)
	e.rx1 = RxValid
	e.state = ReceiveDone

	res := e.PreTransmit(-50, -60)

	if !res.FrameReceived || !res.ValidFrameReceived {
		t.Fatal("expected frame_received and valid_frame_received to be true")
	}
	if res.SelectedAntenna != radio.Antenna1 {
		t.Fatalf("SelectedAntenna = %v, want ANTENNA_1 (it reported VALID)", res.SelectedAntenna)
	}
	if e.state != Transmit {
		t.Fatalf("state after PreTransmit() = %v, want TRANSMIT", e.state)
	}
	if e.rx1 != RxNone || e.rx2 != RxNone {
		t.Fatal("PreTransmit() must reset both rx statuses for the next cycle")
	}
}

func TestTimeoutSingleAntennaDoesNotAbortOther(t *testing.T) {
	e, _, _, _, _ := newBothEngine(t)
	e.TimeoutAbortsBoth = false
	e.state = ReceiveWait
	e.rx2 = RxValid
	e.Port1.IRQ.Latch(radio.IRQTimeout)

	e.ProcessIRQ1(make([]byte, frame.Len))

	if e.rx1 != RxNone {
		t.Fatalf("rx1 after its own timeout = %v, want NONE", e.rx1)
	}
	if e.rx2 != RxValid {
		t.Fatal("rx2 must survive antenna 1's timeout when TimeoutAbortsBoth is false")
	}
}
