// Package board is the TinyGo hardware glue layer: it satisfies the
// radio.Driver, serial.Port and led.Output consumers the core engine
// depends on, using machine.SPI/UART/Pin and the tinygo.org/x/drivers
// SX127x LoRa transceiver driver. Nothing under internal/ other than
// cmd/mlrs-tx imports this package, and its types never leak back into
// core: the engine only ever sees the radio.Driver/serial.Port
// interfaces, the same separation the teacher firmware draws between
// main.go's machine.Pin wiring and the rest of its control code.
package board

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers/sx127x"

	"github.com/olliw-labs/mlrs-tx/internal/led"
	"github.com/olliw-labs/mlrs-tx/internal/radio"
	"github.com/olliw-labs/mlrs-tx/internal/serial"
)

// RadioConfig is the pin/SPI wiring for one SX127x module.
type RadioConfig struct {
	SPI   *machine.SPI
	CS    machine.Pin
	Reset machine.Pin
	DIO0  machine.Pin
}

// RadioDriver adapts an sx127x.Device to radio.Driver. It tracks the IRQ
// flags the chip latched since the last GetAndClearIRQStatus the same way
// the chip's own IRQ_FLAGS register does: sticky until explicitly
// cleared.
type RadioDriver struct {
	dev      *sx127x.Device
	dio0     machine.Pin
	ok       bool
	irqWord  uint16
}

// NewRadioDriver configures the SPI bus role and GPIO directions for one
// SX127x module and returns a Driver ready for radio.NewPort.
func NewRadioDriver(cfg RadioConfig) *RadioDriver {
	cfg.CS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	cfg.Reset.Configure(machine.PinConfig{Mode: machine.PinOutput})
	cfg.DIO0.Configure(machine.PinConfig{Mode: machine.PinInput})

	dev := sx127x.New(cfg.SPI, cfg.CS)
	dev.ResetPin = cfg.Reset

	d := &RadioDriver{dev: dev, dio0: cfg.DIO0}
	d.dio0.SetInterrupt(machine.PinRising, func(machine.Pin) {
		d.irqWord |= d.readAndClearChipIRQ()
	})
	return d
}

func (d *RadioDriver) readAndClearChipIRQ() uint16 {
	flags := d.dev.GetIrqFlags()
	d.dev.ClearIrqFlags(flags)

	var v uint16
	if flags&sx127x.IRQFlagTxDone != 0 {
		v |= radio.IRQTxDone
	}
	if flags&sx127x.IRQFlagRxDone != 0 {
		v |= radio.IRQRxDone
	}
	if flags&sx127x.IRQFlagRxTimeout != 0 {
		v |= radio.IRQTimeout
	}
	return v
}

// Init resets and probes the chip.
func (d *RadioDriver) Init() error {
	d.dev.Reset()
	d.ok = d.dev.DetectDevice()
	if !d.ok {
		return errors.New("board: sx127x not detected")
	}
	return nil
}

// StartUp brings the chip into standby mode ready for the main loop's
// first SetRFFrequency/SetToRX.
func (d *RadioDriver) StartUp() error {
	if !d.ok {
		return errors.New("board: radio not initialized")
	}
	d.dev.SetOpMode(sx127x.OpModeStandby)
	return nil
}

// IsOK reports whether Init succeeded.
func (d *RadioDriver) IsOK() bool { return d.ok }

// SetRFFrequency tunes to hz.
func (d *RadioDriver) SetRFFrequency(hz uint32) { d.dev.SetFrequency(hz) }

// SendFrame transmits buf and returns once the chip has accepted it into
// its FIFO; completion is reported asynchronously through the DIO0
// interrupt, consumed by GetAndClearIRQStatus.
func (d *RadioDriver) SendFrame(buf []byte, tmoUS uint32) error {
	d.dev.Send(buf)
	return nil
}

// SetToRX arms a receive window.
func (d *RadioDriver) SetToRX(tmoUS uint32) error {
	d.dev.SetOpMode(sx127x.OpModeRx)
	return nil
}

// ReadFrame drains the chip's FIFO into buf.
func (d *RadioDriver) ReadFrame(buf []byte) error {
	n, err := d.dev.ReadPacket(buf)
	if err != nil {
		return err
	}
	if n < len(buf) {
		return errors.New("board: short frame read")
	}
	return nil
}

// ReadBuffer reads a slice of the chip's receive FIFO starting at offset,
// used for the early syncword peek ahead of a full ReadFrame.
func (d *RadioDriver) ReadBuffer(offset int, dst []byte) error {
	buf := make([]byte, offset+len(dst))
	if err := d.ReadFrame(buf); err != nil {
		return err
	}
	copy(dst, buf[offset:])
	return nil
}

// GetPacketStatus returns the last packet's RSSI/SNR.
func (d *RadioDriver) GetPacketStatus() (rssi, snr int8) {
	return int8(d.dev.GetPacketRSSI()), int8(d.dev.GetPacketSNR())
}

// GetAndClearIRQStatus returns the masked bits the DIO0 interrupt handler
// accumulated since the last call, and clears the whole accumulated word.
func (d *RadioDriver) GetAndClearIRQStatus(mask uint16) uint16 {
	v := d.irqWord & mask
	d.irqWord = 0
	return v
}

// LEDPins drives a two-color status LED from a led.Output each systick,
// the Go analogue of the teacher firmware's ledState.update() toggling
// machine.Pin directly.
type LEDPins struct {
	Red, Green machine.Pin
}

// NewLEDPins configures both pins as outputs, initially off.
func NewLEDPins(red, green machine.Pin) *LEDPins {
	red.Configure(machine.PinConfig{Mode: machine.PinOutput})
	green.Configure(machine.PinConfig{Mode: machine.PinOutput})
	l := &LEDPins{Red: red, Green: green}
	l.Drive(led.Output{})
	return l
}

// Drive sets both pins to match out.
func (l *LEDPins) Drive(out led.Output) {
	l.Red.Set(out.Red)
	l.Green.Set(out.Green)
}

// NewSerialBridge configures uart for the tunneled byte stream and wraps
// it as a serial.Port, matching the teacher firmware's
// machine.DefaultUART.Configure(UARTConfig{...}) call in INITIALIZATION.
// bufSize should match frame.TxPayloadLen so a single Fill never needs
// more than one frame's worth of room.
func NewSerialBridge(uart *machine.UART, baudRate uint32, tx, rx machine.Pin, bufSize int) *serial.Bridge {
	uart.Configure(machine.UARTConfig{BaudRate: baudRate, TX: tx, RX: rx})
	return serial.NewBridge(uart, bufSize)
}

// Watchdog wraps machine.Watchdog with the timeout the hardware entry
// point arms before entering the main loop, matching WingFC's
// initialization-time watchdog setup.
type Watchdog struct{}

// Configure arms the watchdog for timeoutMS milliseconds.
func (Watchdog) Configure(timeoutMS uint32) error {
	return machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: timeoutMS})
}

// Start enables the watchdog countdown.
func (Watchdog) Start() error { return machine.Watchdog.Start() }

// Update must be called at least once per timeout window or the MCU
// resets.
func (Watchdog) Update() { machine.Watchdog.Update() }
