package radio

import "errors"

// LoopbackDriver is an in-memory Driver test double. Two instances wired
// to each other via NewLoopbackPair let two link engines talk to each other without
// hardware — used by unit tests exercising LinkStateMachine end-to-end and
// by the host simulator (cmd/mlrs-tx-sim). TX and RX are synchronous: a
// SendFrame immediately makes the frame available to the peer's next
// SetToRX, so the calling test controls all timing explicitly.
type LoopbackDriver struct {
	peer       *LoopbackDriver
	ok         bool
	rxBuf      []byte
	irqPending uint16
	rssi, snr  int8
	freqHz     uint32
}

// NewLoopbackPair returns two drivers wired to each other.
func NewLoopbackPair() (a, b *LoopbackDriver) {
	a = &LoopbackDriver{ok: true}
	b = &LoopbackDriver{ok: true}
	a.peer = b
	b.peer = a
	return a, b
}

func (d *LoopbackDriver) Init() error     { d.ok = true; return nil }
func (d *LoopbackDriver) StartUp() error  { return nil }
func (d *LoopbackDriver) IsOK() bool      { return d.ok }
func (d *LoopbackDriver) SetRFFrequency(hz uint32) { d.freqHz = hz }
func (d *LoopbackDriver) Frequency() uint32        { return d.freqHz }

// SetOK lets fault-injection tests simulate a radio that never comes up.
func (d *LoopbackDriver) SetOK(ok bool) { d.ok = ok }

func (d *LoopbackDriver) SendFrame(buf []byte, tmoUS uint32) error {
	if d.peer != nil {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		d.peer.rxBuf = cp
	}
	d.irqPending |= IRQTxDone
	return nil
}

func (d *LoopbackDriver) SetToRX(tmoUS uint32) error {
	if d.rxBuf != nil {
		d.irqPending |= IRQRxDone
	}
	return nil
}

func (d *LoopbackDriver) ReadFrame(buf []byte) error {
	if d.rxBuf == nil {
		return errors.New("radio: no frame pending")
	}
	n := len(buf)
	if n > len(d.rxBuf) {
		n = len(d.rxBuf)
	}
	copy(buf, d.rxBuf[:n])
	return nil
}

func (d *LoopbackDriver) ReadBuffer(offset int, dst []byte) error {
	if d.rxBuf == nil || offset+len(dst) > len(d.rxBuf) {
		return errors.New("radio: read past pending buffer")
	}
	copy(dst, d.rxBuf[offset:offset+len(dst)])
	return nil
}

func (d *LoopbackDriver) GetPacketStatus() (rssi, snr int8) { return d.rssi, d.snr }

// SetPacketStatus lets tests script the RSSI/SNR the peer will observe on
// its next reception.
func (d *LoopbackDriver) SetPacketStatus(rssi, snr int8) { d.rssi, d.snr = rssi, snr }

func (d *LoopbackDriver) GetAndClearIRQStatus(mask uint16) uint16 {
	v := d.irqPending & mask
	d.irqPending = 0
	return v
}

// InjectTimeout forces the next IRQ read to report IRQTimeout, for
// scenario tests that exercise RadioTimeout handling.
func (d *LoopbackDriver) InjectTimeout() { d.irqPending |= IRQTimeout }

// CorruptPendingSyncWord flips the first two bytes of whatever frame is
// waiting to be received, so the peer's DIO handler normalizes the
// reception to "nothing happened" — scenario S3.
func (d *LoopbackDriver) CorruptPendingSyncWord() {
	if len(d.rxBuf) >= 2 {
		d.rxBuf[0] ^= 0xFF
		d.rxBuf[1] ^= 0xFF
	}
}

// DropPendingFrame discards whatever the peer last sent, simulating a
// missed reception (e.g. antenna timeout).
func (d *LoopbackDriver) DropPendingFrame() { d.rxBuf = nil }
