// Package link implements the per-cycle TRANSMIT/RECEIVE state machine
// that drives one or two radio ports through a half-duplex TDMA cycle, and
// the antenna-diversity policy used to pick which antenna's reception to
// act on when both are active.
package link

import (
	"errors"

	"github.com/olliw-labs/mlrs-tx/internal/fhss"
	"github.com/olliw-labs/mlrs-tx/internal/frame"
	"github.com/olliw-labs/mlrs-tx/internal/radio"
)

// RxStatus ranks what a cycle's reception attempt produced on one antenna.
// The ordering (None < Invalid < Valid) is load-bearing: the pre-transmit
// frame_received/valid_frame_received evaluation compares statuses with
// plain ">".
type RxStatus uint8

const (
	RxNone RxStatus = iota
	RxInvalid
	RxValid
)

func (s RxStatus) String() string {
	switch s {
	case RxNone:
		return "NONE"
	case RxInvalid:
		return "INVALID"
	default:
		return "VALID"
	}
}

// State is one phase of the per-cycle TDMA state machine.
type State uint8

const (
	Idle State = iota
	Transmit
	TransmitWait
	Receive
	ReceiveWait
	ReceiveDone
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Transmit:
		return "TRANSMIT"
	case TransmitWait:
		return "TRANSMIT_WAIT"
	case Receive:
		return "RECEIVE"
	case ReceiveWait:
		return "RECEIVE_WAIT"
	case ReceiveDone:
		return "RECEIVE_DONE"
	default:
		return "UNKNOWN"
	}
}

// FatalKind identifies which impossible-IRQ condition tripped Engine.Fatal.
type FatalKind uint8

const (
	FatalNone FatalKind = iota
	// FatalUnexpectedRxDone is an RX_DONE flag observed while not in
	// RECEIVE_WAIT: the radio signalled a reception the state machine
	// was not expecting.
	FatalUnexpectedRxDone
	// FatalUnexpectedTxDone is a TX_DONE flag observed while not in
	// TRANSMIT_WAIT.
	FatalUnexpectedTxDone
)

// ErrImpossibleIRQ is wrapped into Engine.Fatal when a FatalKind trips.
var ErrImpossibleIRQ = errors.New("link: impossible IRQ observed")

// ReceiveResult is what one antenna's reception attempt produced this cycle.
type ReceiveResult struct {
	Antenna   radio.Antenna
	Status    RxStatus
	RSSI, SNR int8
	Frame     frame.Frame
}

// PreTransmitResult is the outcome of the pre-transmit evaluation: whether
// anything was received, whether it was valid, and which antenna's
// reception the caller should act on (pack into Stats, feed to the connect
// state machine, etc).
type PreTransmitResult struct {
	FrameReceived      bool
	ValidFrameReceived bool
	SelectedAntenna    radio.Antenna
	Rx1Valid, Rx2Valid bool
	Rx1, Rx2           ReceiveResult
}

// Engine is the per-cycle link state machine. It owns one or two radio
// ports, a shared FHSS schedule, and the frame codec used to validate
// receptions.
type Engine struct {
	Codec     *frame.Codec
	Fhss      *fhss.Fhss
	Diversity radio.DiversityMode

	// TimeoutAbortsBoth resolves the ambiguity left open by the source
	// firmware, which always clears both antennas' rx status on any
	// timeout regardless of which one fired. Set false to only clear the
	// status of the antenna whose window actually expired, leaving the
	// other antenna's in-flight reception (if any) intact.
	TimeoutAbortsBoth bool

	Port1 *radio.Port
	Port2 *radio.Port

	state    State
	rx1, rx2 RxStatus
	last1    ReceiveResult
	last2    ReceiveResult

	Fatal       FatalKind
	FatalAntenna radio.Antenna
	FatalErr     error
}

// NewEngine returns an Engine starting in IDLE. Port2 may be nil when
// Diversity is ModeAntenna1Only.
func NewEngine(codec *frame.Codec, fh *fhss.Fhss, diversity radio.DiversityMode, port1, port2 *radio.Port) *Engine {
	return &Engine{Codec: codec, Fhss: fh, Diversity: diversity, Port1: port1, Port2: port2, TimeoutAbortsBoth: true}
}

// State returns the current phase.
func (e *Engine) State() State { return e.state }

// EnterCycle performs the entry actions for the current state: on
// TRANSMIT, hops the FHSS schedule, retunes both radios, sends txBuf on
// every active antenna, and clears both IRQ words; on RECEIVE, arms both
// radios' listen window. IDLE and RECEIVE_DONE have no entry action,
// matching the original switch's fallthrough. Returns whether the caller
// should trigger its deferred-task runner for this cycle.
func (e *Engine) EnterCycle(txBuf []byte, tmoUS uint32) (triggerWhileTransmit bool) {
	switch e.state {
	case Transmit:
		e.Fhss.HopToNext()
		freq := e.Fhss.CurrFreq()
		if e.Port1 != nil {
			e.Port1.Driver.SetRFFrequency(freq)
		}
		if e.Port2 != nil {
			e.Port2.Driver.SetRFFrequency(freq)
		}
		if e.Diversity.UsesAntenna1() && e.Port1 != nil {
			e.Port1.SendFrame(txBuf, tmoUS)
		}
		if e.Diversity.UsesAntenna2() && e.Port2 != nil {
			e.Port2.SendFrame(txBuf, tmoUS)
		}
		if e.Port1 != nil {
			e.Port1.ClearIRQ()
		}
		if e.Port2 != nil {
			e.Port2.ClearIRQ()
		}
		e.state = TransmitWait
		return true
	case Receive:
		if e.Diversity.UsesAntenna1() && e.Port1 != nil {
			e.Port1.SetToRX(0)
		}
		if e.Diversity.UsesAntenna2() && e.Port2 != nil {
			e.Port2.SetToRX(0)
		}
		if e.Port1 != nil {
			e.Port1.ClearIRQ()
		}
		if e.Port2 != nil {
			e.Port2.ClearIRQ()
		}
		e.state = ReceiveWait
	}
	return false
}

// ProcessIRQ1 and ProcessIRQ2 consume whatever IRQ word HandleDIOInterrupt
// last latched on the given antenna's port and apply the resulting state
// transition. Call both once per main-loop iteration, every iteration,
// regardless of which antennas are active in the current DiversityMode.
func (e *Engine) ProcessIRQ1(rxBuf []byte) { e.processIRQ(e.Port1, &e.rx1, &e.last1, radio.Antenna1, rxBuf) }
func (e *Engine) ProcessIRQ2(rxBuf []byte) { e.processIRQ(e.Port2, &e.rx2, &e.last2, radio.Antenna2, rxBuf) }

func (e *Engine) processIRQ(p *radio.Port, rxStatus *RxStatus, last *ReceiveResult, ant radio.Antenna, rxBuf []byte) {
	if p == nil {
		return
	}
	status := p.IRQ.TestAndClear(radio.IRQAll)
	if status == 0 {
		return
	}

	switch e.state {
	case TransmitWait:
		if status&radio.IRQTxDone != 0 {
			status &^= radio.IRQTxDone
			e.state = Receive
		}
	case ReceiveWait:
		if status&radio.IRQRxDone != 0 {
			status &^= radio.IRQRxDone
			*rxStatus, *last = e.doReceive(p, ant, rxBuf)
			e.state = ReceiveDone
		}
	}

	if status&radio.IRQTimeout != 0 {
		status &^= radio.IRQTimeout
		e.state = Idle
		if e.TimeoutAbortsBoth {
			e.rx1 = RxNone
			e.rx2 = RxNone
		} else {
			*rxStatus = RxNone
		}
	}

	// Whatever of TX_DONE/RX_DONE survived the state-specific handling
	// above fired in a state it had no business firing in: the radio
	// reported a completion the state machine was not waiting for.
	if status&radio.IRQRxDone != 0 {
		e.Fatal = FatalUnexpectedRxDone
		e.FatalAntenna = ant
		e.FatalErr = ErrImpossibleIRQ
	}
	if status&radio.IRQTxDone != 0 {
		e.Fatal = FatalUnexpectedTxDone
		e.FatalAntenna = ant
		e.FatalErr = ErrImpossibleIRQ
	}
}

func (e *Engine) doReceive(p *radio.Port, ant radio.Antenna, rxBuf []byte) (RxStatus, ReceiveResult) {
	if err := p.ReadFrame(rxBuf); err != nil {
		return RxInvalid, ReceiveResult{Antenna: ant, Status: RxInvalid}
	}
	rssi, snr := p.GetPacketStatus()
	var f frame.Frame
	switch e.Codec.CheckRX(rxBuf, &f) {
	case frame.CheckOK:
		return RxValid, ReceiveResult{Antenna: ant, Status: RxValid, RSSI: rssi, SNR: snr, Frame: f}
	case frame.CheckErrSyncword:
		// Already normalized to "nothing happened" by the DIO handler in
		// the ordinary case; handled again here for drivers that hand a
		// foreign frame straight to ReadFrame without that pre-check.
		return RxNone, ReceiveResult{Antenna: ant, Status: RxNone}
	default:
		return RxInvalid, ReceiveResult{Antenna: ant, Status: RxInvalid, RSSI: rssi, SNR: snr}
	}
}

// PreTransmit evaluates what was received this cycle, selects the antenna
// whose reception the caller should act on, resets the per-cycle rx status,
// and advances the state to TRANSMIT. Call once per cycle, before packing
// the next outgoing frame. lastRSSI1/lastRSSI2 are the caller's most recent
// RSSI readings for each antenna, used as the diversity tiebreak.
func (e *Engine) PreTransmit(lastRSSI1, lastRSSI2 int8) PreTransmitResult {
	var frameReceived, validFrameReceived bool
	switch e.Diversity {
	case radio.ModeBoth:
		frameReceived = e.rx1 > RxNone || e.rx2 > RxNone
		validFrameReceived = e.rx1 > RxInvalid || e.rx2 > RxInvalid
	case radio.ModeAntenna1Only:
		frameReceived = e.rx1 > RxNone
		validFrameReceived = e.rx1 > RxInvalid
	case radio.ModeAntenna2Only:
		frameReceived = e.rx2 > RxNone
		validFrameReceived = e.rx2 > RxInvalid
	}

	antenna := radio.Antenna1
	if frameReceived {
		antenna = e.selectAntenna(lastRSSI1, lastRSSI2)
	}

	res := PreTransmitResult{
		FrameReceived:      frameReceived,
		ValidFrameReceived: validFrameReceived,
		SelectedAntenna:    antenna,
		Rx1Valid:           e.rx1 > RxInvalid,
		Rx2Valid:           e.rx2 > RxInvalid,
		Rx1:                e.last1,
		Rx2:                e.last2,
	}

	e.state = Transmit
	e.rx1 = RxNone
	e.rx2 = RxNone
	e.last1 = ReceiveResult{}
	e.last2 = ReceiveResult{}
	return res
}

// selectAntenna implements the nine-case diversity table of §4.5: equal
// status on both antennas falls back to an RSSI tiebreak favoring whichever
// reading is strictly greater (antenna 1 on an exact tie); otherwise the
// antenna reporting VALID wins outright, and if neither is VALID the RSSI
// tiebreak decides again.
func (e *Engine) selectAntenna(rssi1, rssi2 int8) radio.Antenna {
	switch e.Diversity {
	case radio.ModeAntenna1Only:
		return radio.Antenna1
	case radio.ModeAntenna2Only:
		return radio.Antenna2
	}
	switch {
	case e.rx1 == e.rx2:
		if rssi2 > rssi1 {
			return radio.Antenna2
		}
		return radio.Antenna1
	case e.rx1 == RxValid:
		return radio.Antenna1
	case e.rx2 == RxValid:
		return radio.Antenna2
	default:
		if rssi2 > rssi1 {
			return radio.Antenna2
		}
		return radio.Antenna1
	}
}
