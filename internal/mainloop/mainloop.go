// Package mainloop wires TickSource, Fhss, FrameCodec, one or two
// RadioPorts, LinkStateMachine, ConnectStateMachine, CmdChannel,
// SerialBridge, TxStats and WhileTransmit into the single per-cycle engine
// the TX firmware's main_main() while(1) loop implements.
package mainloop

import (
	"errors"

	"github.com/olliw-labs/mlrs-tx/internal/channels"
	"github.com/olliw-labs/mlrs-tx/internal/cmdchannel"
	"github.com/olliw-labs/mlrs-tx/internal/config"
	"github.com/olliw-labs/mlrs-tx/internal/connect"
	"github.com/olliw-labs/mlrs-tx/internal/fhss"
	"github.com/olliw-labs/mlrs-tx/internal/frame"
	"github.com/olliw-labs/mlrs-tx/internal/led"
	"github.com/olliw-labs/mlrs-tx/internal/link"
	"github.com/olliw-labs/mlrs-tx/internal/radio"
	"github.com/olliw-labs/mlrs-tx/internal/serial"
	"github.com/olliw-labs/mlrs-tx/internal/stats"
	"github.com/olliw-labs/mlrs-tx/internal/tick"
	"github.com/olliw-labs/mlrs-tx/internal/whiletransmit"
)

// sendFrameTmoUS mirrors SEND_FRAME_TMO: the radio's send call is allowed
// 10ms to complete before the driver should consider it timed out.
const sendFrameTmoUS = 10000

// systicksPerSecond is the reload value for the 1Hz bytes-per-second
// rollup, matching a 1kHz systick source.
const systicksPerSecond = 1000

// ChannelSource supplies a fresh RC channel snapshot, reporting whether it
// produced one this call. The Go analogue of mbridge.ChannelsUpdated /
// crsf.Update / in.Update — which RC ingest protocol backs it is outside
// this package's concern.
type ChannelSource interface {
	Update(rc *channels.RcData) bool
}

// NopChannelSource never produces an update. Parsing any particular RC
// ingest protocol is explicitly out of scope; this is the seam a board
// adapter plugs a real source into.
type NopChannelSource struct{}

func (NopChannelSource) Update(*channels.RcData) bool { return false }

// FatalError is returned by Step (via Loop) when the engine hit a
// condition the caller must halt on: a radio that never came up at Boot,
// or an impossible IRQ observed mid-run.
type FatalError struct {
	Pattern led.Pattern
	Err     error
}

func (f *FatalError) Error() string { return f.Err.Error() }

var (
	ErrAntenna1InitFail = errors.New("mainloop: antenna 1 failed to initialize")
	ErrAntenna2InitFail = errors.New("mainloop: antenna 2 failed to initialize")
)

// Engine is the per-cycle link engine: one Tick source, one Link state
// machine (wrapping one or two radio ports), one Connect supervisor, one
// command channel, one set of link-quality accounting, one deferred-task
// runner, and the connected/disconnected status LED cadence.
type Engine struct {
	Config config.Config

	Tick    tick.Source
	Link    *link.Engine
	Connect *connect.Machine
	Cmd     *cmdchannel.Channel
	TxStats *stats.TxStats
	Stats   stats.Stats
	While   *whiletransmit.Runner
	Led     *led.Cadence
	Codec   *frame.Codec

	ChannelOrder *channels.ChannelOrder
	Channels     channels.RcData
	ChannelSrc   ChannelSource

	SerialPort serial.Port

	txTick        tick.Countdown
	tick1Hz       tick.Countdown
	doPreTransmit bool

	payload    [frame.TxPayloadLen]byte
	payloadLen int

	txBuf          [frame.Len]byte
	rx1Buf, rx2Buf [frame.Len]byte
}

// New builds an Engine from cfg. port2 may be nil when cfg selects a
// single-antenna DiversityMode. channelSrc and serialPort may be nil, in
// which case channel ingest and serial tunneling are no-ops.
func New(cfg config.Config, port1, port2 *radio.Port, channelSrc ChannelSource, serialPort serial.Port) *Engine {
	codec := frame.NewCodec(cfg.Frame.SyncWord)
	fh := fhss.New()
	diversity := cfg.DiversityMode()

	e := &Engine{
		Config:       cfg,
		Codec:        codec,
		Link:         link.NewEngine(codec, fh, diversity, port1, port2),
		Connect:      connect.New(cfg.Link.ConnectTmoSysticks, cfg.Link.ConnectSyncCnt),
		Cmd:          cmdchannel.New(),
		TxStats:      stats.NewTxStats(cfg.Link.LQAveragingPeriod),
		While:        whiletransmit.New(),
		Led:          led.NewCadence(),
		ChannelOrder: channels.NewChannelOrder(),
		ChannelSrc:   channelSrc,
		SerialPort:   serialPort,
	}
	if e.ChannelSrc == nil {
		e.ChannelSrc = NopChannelSource{}
	}
	if e.SerialPort == nil {
		e.SerialPort = serial.Null{}
	}
	e.Link.TimeoutAbortsBoth = cfg.Antenna.TimeoutAbortsBoth
	return e
}

// Boot brings up the radios and the FHSS schedule. Call it once, before
// the first Step. A non-nil FatalError means a required antenna never
// came up; Loop (or the caller directly) decides whether to halt forever
// in the matching LED pattern or log and return, per HaltOnFatal.
func (e *Engine) Boot() *FatalError {
	diversity := e.Config.DiversityMode()

	if diversity.UsesAntenna1() && e.Link.Port1 != nil && !e.Link.Port1.Driver.IsOK() {
		return &FatalError{Pattern: led.PatternFatalAntenna1InitFail, Err: ErrAntenna1InitFail}
	}
	if diversity.UsesAntenna2() && e.Link.Port2 != nil && !e.Link.Port2.Driver.IsOK() {
		return &FatalError{Pattern: led.PatternFatalAntenna2InitFail, Err: ErrAntenna2InitFail}
	}
	if diversity.UsesAntenna1() && e.Link.Port1 != nil {
		e.Link.Port1.Driver.StartUp()
	}
	if diversity.UsesAntenna2() && e.Link.Port2 != nil {
		e.Link.Port2.Driver.StartUp()
	}

	e.Link.Fhss.Init(e.Config.Fhss.Num, e.Config.Fhss.Seed)
	e.Link.Fhss.StartTx()
	freq := e.Link.Fhss.CurrFreq()
	if e.Link.Port1 != nil {
		e.Link.Port1.Driver.SetRFFrequency(freq)
	}
	if e.Link.Port2 != nil {
		e.Link.Port2.Driver.SetRFFrequency(freq)
	}

	e.txTick.Arm(e.Config.Frame.RateMs)
	e.tick1Hz.Arm(systicksPerSecond)
	if order, err := e.Config.ChannelOrder(); err == nil {
		e.ChannelOrder.Set(order)
	}
	return nil
}

// Step advances the engine by one systick (nominally 1ms). It runs the
// frame-rate countdown, the per-cycle link state transitions and IRQ
// processing, the pre-transmit evaluation once the countdown elapses, RC
// channel ingest, and the deferred-task runner — in the order the source
// firmware's while(1) body runs them. It returns this tick's LED output
// and a non-nil FatalError if an impossible IRQ was observed.
func (e *Engine) Step() (led.Output, *FatalError) {
	e.Tick.Advance()
	e.Connect.Tick()

	if f, ok := e.SerialPort.(serial.Filler); ok {
		f.Fill()
	}

	if e.Connect.Connected() {
		e.Led.Set(led.PatternConnected)
	} else {
		e.Led.Set(led.PatternDisconnected)
	}
	ledOut := e.Led.Tick()

	if e.txTick.Tick() {
		e.txTick.Arm(e.Config.Frame.RateMs)
		e.doPreTransmit = true
	}
	if e.tick1Hz.Tick() {
		e.tick1Hz.Arm(systicksPerSecond)
		e.TxStats.Update1Hz()
	}

	if e.Link.State() == link.Transmit {
		e.packOutgoingFrame()
	}
	if e.Link.EnterCycle(e.txBuf[:], sendFrameTmoUS) {
		e.While.Trigger()
	}
	e.Link.ProcessIRQ1(e.rx1Buf[:])
	e.Link.ProcessIRQ2(e.rx2Buf[:])

	if e.Link.Fatal != link.FatalNone {
		return ledOut, &FatalError{Pattern: led.PatternFatalImpossibleIrq, Err: e.Link.FatalErr}
	}

	if e.doPreTransmit {
		e.doPreTransmit = false
		e.runPreTransmit()
	}

	var rc channels.RcData
	if e.ChannelSrc.Update(&rc) {
		e.ChannelOrder.Apply(&rc)
		e.Channels = rc
	}

	if e.While.Do()&whiletransmit.TaskStoreParams != 0 {
		e.persistParams()
	}

	return ledOut, nil
}

// persistParams is the deferred action that runs once triggerDelay systicks
// after a store-params request, matching handle_tasks()'s WHILE_TASK_STORE_PARAMS
// branch. The original's only effect there is a debug print; this port has
// no flash-backed config store to write to, so there's nothing to do once
// the countdown elapses.
func (e *Engine) persistParams() {}

func (e *Engine) packOutgoingFrame() {
	ft := e.Cmd.PreparePack()

	if ft == cmdchannel.Normal {
		e.fillPayloadFromSerial()
	}

	e.Stats.TransmitSeqNo++
	st := frame.StatsInput{
		SeqNo:           e.Stats.TransmitSeqNo,
		Ack:             true,
		Antenna:         e.Stats.ReceivedAntenna,
		TransmitAntenna: e.Stats.LastTxAntenna == radio.Antenna2,
		RssiU7:          frame.RssiToU7(e.Stats.GetLastRxRSSI()),
		LQ:              e.TxStats.GetLQ(),
		LQSerialData:    e.TxStats.GetLQSerialData(),
	}

	if ft == cmdchannel.Normal {
		e.Codec.PackTX(e.txBuf[:], st, &e.Channels, e.payload[:e.payloadLen])
	} else {
		var cmdPayload [frame.TxPayloadLen]byte
		e.Cmd.PackPayload(cmdPayload[:])
		e.Codec.PackTXCmd(e.txBuf[:], st, &e.Channels, cmdPayload[:])
	}
}

func (e *Engine) fillPayloadFromSerial() {
	e.payloadLen = 0
	for i := range e.payload {
		e.payload[i] = 0
	}
	if !e.Connect.Connected() {
		return
	}
	for e.payloadLen < frame.TxPayloadLen {
		b, err := e.SerialPort.ReadByte()
		if err != nil {
			break
		}
		e.payload[e.payloadLen] = b
		e.payloadLen++
	}
	if e.payloadLen > 0 {
		e.Stats.BytesTransmitted += uint32(e.payloadLen)
		e.Stats.FreshSerialDataTransmitted++
		e.TxStats.AddBytesTransmitted(e.payloadLen)
		e.TxStats.DoSerialDataMoved()
	}
}

func (e *Engine) runPreTransmit() {
	res := e.Link.PreTransmit(e.Stats.LastRxRSSI1, e.Stats.LastRxRSSI2)

	// last_rx_rssi{1,2} are updated for whichever antenna actually
	// attempted a reception this cycle, independent of which one ends up
	// selected below.
	if res.Rx1.Status != link.RxNone {
		e.Stats.LastRxRSSI1, e.Stats.LastRxSNR1 = res.Rx1.RSSI, res.Rx1.SNR
	}
	if res.Rx2.Status != link.RxNone {
		e.Stats.LastRxRSSI2, e.Stats.LastRxSNR2 = res.Rx2.RSSI, res.Rx2.SNR
	}

	if res.FrameReceived {
		e.handleReceive(res)
	} else {
		e.Stats.ReceivedSeqNoLast = 0xFF
		e.Stats.ReceivedAckLast = false
	}

	e.TxStats.FhssCurrIndex = e.Link.Fhss.CurrIndex()
	e.TxStats.Rx1Valid = res.Rx1Valid
	e.TxStats.Rx2Valid = res.Rx2Valid

	e.Connect.Feed(res.ValidFrameReceived)

	if !e.Connect.Connected() {
		e.Stats.Clear()
	}

	e.TxStats.Next()
}

func (e *Engine) handleReceive(res link.PreTransmitResult) {
	rr := res.Rx1
	if res.SelectedAntenna == radio.Antenna2 {
		rr = res.Rx2
	}

	if rr.Status == link.RxValid {
		e.processReceivedFrame(rr)
		e.TxStats.DoValidFrameReceived()
		e.Stats.ReceivedSeqNoLast = rr.Frame.SeqNo
		e.Stats.ReceivedAckLast = rr.Frame.Ack
	} else {
		e.Stats.ReceivedSeqNoLast = 0xFF
		e.Stats.ReceivedAckLast = false
	}

	e.Stats.LastRxAntenna = res.SelectedAntenna
	e.TxStats.DoFrameReceived()
}

func (e *Engine) processReceivedFrame(rr link.ReceiveResult) {
	f := rr.Frame
	e.Stats.ReceivedAntenna = f.Antenna
	e.Stats.ReceivedTransmitAntenna = f.TransmitAntenna
	e.Stats.ReceivedRSSI = frame.RssiFromU7(f.RssiU7)
	e.Stats.ReceivedLQ = f.LQ
	e.Stats.ReceivedLQSerialData = f.LQSerialData

	if f.FrameType == frame.TypeRXNormal {
		for i := 0; i < int(f.PayloadLen) && i < len(f.Payload); i++ {
			e.SerialPort.WriteByte(f.Payload[i])
		}
		e.Stats.BytesReceived += uint32(f.PayloadLen)
		e.Stats.FreshSerialDataReceived++
		e.TxStats.AddBytesReceived(int(f.PayloadLen))
		return
	}

	e.Cmd.ProcessReceivedCmdFrame(f.Payload[:])
}

// RequestStoreParams forces the command channel to send STORE_RX_PARAMS on
// the next transmitted frame, matching handle_cmd_frame() setting
// transmit_frame_type directly. It separately arms the deferred-task
// runner for the unrelated WHILE_TASK_STORE_PARAMS action handle_tasks()
// performs once the while-transmit countdown elapses (persistParams,
// called from Step); that deferred action has no bearing on when the
// command frame itself goes out. Callers (a bridge command handler, a CLI)
// use this instead of Cmd.RequestStoreParams directly.
func (e *Engine) RequestStoreParams() {
	e.Cmd.RequestStoreParams()
	e.While.SetTask(whiletransmit.TaskStoreParams)
	e.While.Trigger()
}

// Loop calls Step once per advance() == true, forwarding every tick's LED
// output to onTick, until advance() returns false or a fatal condition is
// hit. When a FatalError occurs, haltOnFatal true switches to the matching
// fatal LED cadence and keeps calling advance()/onTick forever (matching
// the hardware binary's `while(1){ LED_TOGGLE; delay_ms(n); }`); false
// returns the error immediately without blinking, so a caller like the
// simulator can log it and move on.
func (e *Engine) Loop(haltOnFatal bool, advance func() bool, onTick func(led.Output)) error {
	for advance() {
		out, fatal := e.Step()
		if onTick != nil {
			onTick(out)
		}
		if fatal == nil {
			continue
		}
		if !haltOnFatal {
			return fatal
		}
		fc := led.NewCadence()
		fc.Set(fatal.Pattern)
		for advance() {
			if onTick != nil {
				onTick(fc.Tick())
			}
		}
		return fatal
	}
	return nil
}
