// Package serial abstracts the byte stream tunneled through the radio
// link's frame payload: a UART bridge port, a local loopback for testing,
// or MAVLink mediation supplied by an external collaborator. The link
// engine only ever talks to the Port interface, never a concrete
// transport, matching the way the source firmware routes bytes through a
// serialport pointer that is swapped per Setup.Rx.SerialLinkMode.
package serial

import "io"

// Destination selects which local sink/source the tunneled bytes bridge
// to, mirroring the config schema's tx.serial_destination.
type Destination uint8

const (
	DestinationNone Destination = iota
	DestinationBridge
	DestinationSerial
)

func (d Destination) String() string {
	switch d {
	case DestinationBridge:
		return "bridge"
	case DestinationSerial:
		return "serial"
	default:
		return "none"
	}
}

// LinkMode selects how the byte stream on the wire is framed before it
// reaches Port, mirroring Setup.Rx.SerialLinkMode. ModeMAVLink is not
// parsed by this package: callers that select it are expected to sit a
// MAVLink-aware collaborator (io.Reader/io.Writer implementing frame
// boundary detection) in front of Port, per the explicit non-goal of
// implementing MAVLink parsing here.
type LinkMode uint8

const (
	ModeTransparent LinkMode = iota
	ModeMAVLink
)

// Port is the minimal byte-stream contract the link engine needs from
// whatever the tunneled serial payload is bridged to.
type Port interface {
	Available() int
	ReadByte() (byte, error)
	WriteByte(b byte) error
	Flush() error
}

// Bridge adapts an io.ReadWriter into a Port with an internal read-ahead
// buffer, so Available() can answer without blocking. It is the
// destination behind DestinationBridge/DestinationSerial.
type Bridge struct {
	rw  io.ReadWriter
	buf []byte
}

// NewBridge wraps rw. bufSize bounds the read-ahead buffer, matching the
// frame's per-cycle payload cap so a single Fill never needs to read more
// than one frame's worth of data can carry.
func NewBridge(rw io.ReadWriter, bufSize int) *Bridge {
	return &Bridge{rw: rw, buf: make([]byte, 0, bufSize)}
}

// Filler is implemented by Port backends that read ahead into a buffer
// rather than satisfying Available()/ReadByte() directly from the
// transport. The main loop type-asserts for it once per Step so a Bridge's
// buffer gets topped up without every other Port implementation (Null,
// direct hardware FIFOs) needing a no-op Fill of their own.
type Filler interface {
	Fill()
}

// Fill attempts a single non-blocking-style read to top up the read-ahead
// buffer. Callers on hardware wire this to a UART whose Read never blocks
// past what's already in its hardware FIFO; the host simulator wires it to
// a pipe with a similar non-blocking reader.
func (b *Bridge) Fill() {
	free := cap(b.buf) - len(b.buf)
	if free <= 0 {
		return
	}
	chunk := make([]byte, free)
	n, err := b.rw.Read(chunk)
	if n > 0 {
		b.buf = append(b.buf, chunk[:n]...)
	}
	_ = err
}

// Available reports how many buffered bytes are ready to read.
func (b *Bridge) Available() int { return len(b.buf) }

// ReadByte consumes one buffered byte.
func (b *Bridge) ReadByte() (byte, error) {
	if len(b.buf) == 0 {
		return 0, io.EOF
	}
	c := b.buf[0]
	b.buf = b.buf[1:]
	return c, nil
}

// WriteByte writes one byte straight through to the underlying transport.
func (b *Bridge) WriteByte(c byte) error {
	_, err := b.rw.Write([]byte{c})
	return err
}

// Flush is a no-op for Bridge; writes are unbuffered.
func (b *Bridge) Flush() error { return nil }

// Null is a Port that discards writes and never has anything available,
// used for DestinationNone.
type Null struct{}

func (Null) Available() int         { return 0 }
func (Null) ReadByte() (byte, error) { return 0, io.EOF }
func (Null) WriteByte(byte) error   { return nil }
func (Null) Flush() error           { return nil }

// Select returns the Port implied by dest: bridge for DestinationBridge
// and DestinationSerial, and Null for DestinationNone or a nil bridge.
// It never returns nil.
func Select(dest Destination, bridge Port) Port {
	switch dest {
	case DestinationBridge, DestinationSerial:
		if bridge != nil {
			return bridge
		}
		return Null{}
	default:
		return Null{}
	}
}
