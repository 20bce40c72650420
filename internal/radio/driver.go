// Package radio defines the thin wrapper the link engine uses above a
// physical (or simulated) radio transceiver: a capability interface
// standing in for the C++ SxDriverBase inheritance hierarchy, plus the
// interrupt-status bookkeeping and diversity antenna selection.
package radio

// IRQ flags reported by GetAndClearIRQStatus, mirroring SX12xx_IRQ_*.
const (
	IRQTxDone  uint16 = 1 << 0
	IRQRxDone  uint16 = 1 << 1
	IRQTimeout uint16 = 1 << 2
	IRQAll     uint16 = IRQTxDone | IRQRxDone | IRQTimeout
)

// Driver is the register-level radio driver contract consumed by the link
// engine. One concrete implementation exists per chip family; the engine
// is generic over this interface rather than a base-class hierarchy.
type Driver interface {
	Init() error
	StartUp() error
	IsOK() bool
	SetRFFrequency(hz uint32)
	SendFrame(buf []byte, tmoUS uint32) error
	SetToRX(tmoUS uint32) error
	ReadFrame(buf []byte) error
	ReadBuffer(offset int, dst []byte) error
	GetPacketStatus() (rssi, snr int8)
	GetAndClearIRQStatus(mask uint16) uint16
}
