package radio

// Antenna identifies one of the (at most two) radio instances.
type Antenna uint8

const (
	Antenna1 Antenna = iota
	Antenna2
)

func (a Antenna) String() string {
	if a == Antenna1 {
		return "ANTENNA_1"
	}
	return "ANTENNA_2"
}

// DiversityMode selects which antenna(s) participate in a cycle. This
// replaces the compile-time USE_ANTENNA1/USE_ANTENNA2 macros with a
// runtime value.
type DiversityMode uint8

const (
	ModeAntenna1Only DiversityMode = iota
	ModeAntenna2Only
	ModeBoth
)

// UsesAntenna1 and UsesAntenna2 report whether the given antenna
// participates in this mode.
func (m DiversityMode) UsesAntenna1() bool { return m == ModeAntenna1Only || m == ModeBoth }
func (m DiversityMode) UsesAntenna2() bool { return m == ModeAntenna2Only || m == ModeBoth }

// Port wraps a Driver with the IRQ-status latching discipline the link
// engine depends on: a single status word, written only from the DIO
// interrupt path and normalized there so a wrong-syncword reception reads
// to the main loop exactly like no reception at all.
type Port struct {
	Driver   Driver
	IRQ      IRQStatus
	SyncWord uint16
}

// NewPort binds a Driver to a Port expecting frames prefixed with syncWord.
func NewPort(d Driver, syncWord uint16) *Port {
	return &Port{Driver: d, SyncWord: syncWord}
}

// SendFrame switches the PA to transmit and arms a timed send.
func (p *Port) SendFrame(buf []byte, tmoUS uint32) error {
	return p.Driver.SendFrame(buf, tmoUS)
}

// SetToRX switches the LNA to receive and arms a timed listen window.
func (p *Port) SetToRX(tmoUS uint32) error {
	return p.Driver.SetToRX(tmoUS)
}

// ReadFrame reads exactly len(buf) bytes from the receive buffer.
func (p *Port) ReadFrame(buf []byte) error {
	return p.Driver.ReadFrame(buf)
}

// GetPacketStatus returns RSSI/SNR for the last received packet, valid
// even when that packet failed CRC.
func (p *Port) GetPacketStatus() (rssi, snr int8) {
	return p.Driver.GetPacketStatus()
}

// ClearIRQ resets the latched status ahead of arming a new TX or RX,
// matching the main loop's "irq_status = 0" on entering TRANSMIT/RECEIVE.
func (p *Port) ClearIRQ() {
	p.IRQ.Clear()
}

// HandleDIOInterrupt is the DIO-pin interrupt handler. On hardware it runs
// with interrupts masked at high priority; in tests and the simulator it
// is called synchronously in place of a real interrupt. It performs the
// early syncword peek so a frame not addressed to this link normalizes to
// "no frame" before the main loop ever sees it.
func (p *Port) HandleDIOInterrupt() {
	status := p.Driver.GetAndClearIRQStatus(IRQAll)
	if status&IRQRxDone != 0 {
		var sw [2]byte
		if err := p.Driver.ReadBuffer(0, sw[:]); err != nil {
			status = 0
		} else if uint16(sw[0])|uint16(sw[1])<<8 != p.SyncWord {
			status = 0
		}
	}
	p.IRQ.Latch(status)
}
