// mlrs-tx is the hardware entry point: it wires internal/board's SPI/UART
// glue to the core mainloop.Engine and drives it at the MCU's systick
// rate, matching WingFC's main_main()-style boot sequence and time.Ticker
// loop.
package main

import (
	"machine"
	"time"

	"github.com/olliw-labs/mlrs-tx/internal/board"
	"github.com/olliw-labs/mlrs-tx/internal/config"
	"github.com/olliw-labs/mlrs-tx/internal/frame"
	"github.com/olliw-labs/mlrs-tx/internal/ingest"
	"github.com/olliw-labs/mlrs-tx/internal/led"
	"github.com/olliw-labs/mlrs-tx/internal/mainloop"
	"github.com/olliw-labs/mlrs-tx/internal/radio"
	"github.com/olliw-labs/mlrs-tx/internal/serial"
)

const version = "0.1.0"

func main() {
	time.Sleep(2 * time.Second)
	println("mlrs-tx - Version", version)
	println("a frequency-hopping TX link engine")

	cfg := config.Default()

	leds := board.NewLEDPins(machine.LED_RED, machine.LED_GREEN)
	signOfLife(leds)

	d1 := board.NewRadioDriver(board.RadioConfig{
		SPI:   machine.SPI0,
		CS:    machine.D10,
		Reset: machine.D9,
		DIO0:  machine.D2,
	})
	if err := d1.Init(); err != nil {
		println("antenna 1 init:", err.Error())
	}
	port1 := radio.NewPort(d1, cfg.Frame.SyncWord)

	var port2 *radio.Port
	if cfg.DiversityMode() != radio.ModeAntenna1Only {
		d2 := board.NewRadioDriver(board.RadioConfig{
			SPI:   machine.SPI1,
			CS:    machine.D11,
			Reset: machine.D12,
			DIO0:  machine.D3,
		})
		if err := d2.Init(); err != nil {
			println("antenna 2 init:", err.Error())
		}
		port2 = radio.NewPort(d2, cfg.Frame.SyncWord)
	}

	serialPort := board.NewSerialBridge(machine.UART1, 57600, machine.UART1_TX_PIN, machine.UART1_RX_PIN, frame.TxPayloadLen)

	rcUART := board.NewSerialBridge(machine.UART2, 420000, machine.NoPin, machine.UART2_RX_PIN, frame.TxPayloadLen*2)
	channelSrc := newChannelSource(cfg, rcUART)

	engine := mainloop.New(cfg, port1, port2, channelSrc, serialPort)
	if fatal := engine.Boot(); fatal != nil {
		println("boot failed:", fatal.Error())
		haltBlinking(leds, fatal.Pattern)
	}

	wd := board.Watchdog{}
	if err := wd.Configure(2000); err != nil {
		println("watchdog configure:", err.Error())
	}
	if err := wd.Start(); err != nil {
		println("watchdog start:", err.Error())
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	advance := func() bool {
		<-ticker.C
		wd.Update()
		return true
	}

	err := engine.Loop(true, advance, leds.Drive)
	if err != nil {
		println("link engine halted:", err.Error())
	}
}

// signOfLife blinks red 7 times before anything else is touched, matching
// the source firmware's boot-time "LED_RED_OFF; for 7x { toggle; 50ms }".
func signOfLife(l *board.LEDPins) {
	c := led.NewCadence()
	c.Set(led.PatternBootSignOfLife)
	for !c.Done {
		l.Drive(c.Tick())
		time.Sleep(time.Millisecond)
	}
	l.Drive(led.Output{})
}

// newChannelSource picks the RC receiver protocol decoder matching the
// configured in_mode. Unknown or unsupported modes fall back to no
// ingest, leaving the engine to transmit whatever channel snapshot is
// already in place.
func newChannelSource(cfg config.Config, port *serial.Bridge) mainloop.ChannelSource {
	switch cfg.Tx.InMode {
	case "crsf":
		return ingest.NewCRSFSource(port)
	case "ibus":
		return ingest.NewIBusSource(port)
	default:
		return mainloop.NopChannelSource{}
	}
}

func haltBlinking(l *board.LEDPins, p led.Pattern) {
	c := led.NewCadence()
	c.Set(p)
	for {
		l.Drive(c.Tick())
		time.Sleep(time.Millisecond)
	}
}
