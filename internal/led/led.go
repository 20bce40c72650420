// Package led implements the LED status cadences as a pure tick-driven
// state machine, decoupled from the actual GPIO pins the way the source
// firmware's ledState toggles machine.Pin directly. The board adapter
// polls Tick() once per systick and drives its two LED pins from the
// returned Output.
package led

import "github.com/olliw-labs/mlrs-tx/internal/tick"

// Pattern is one of the fixed status cadences the link engine can ask the
// board to display.
type Pattern uint8

const (
	PatternOff Pattern = iota
	// PatternBootSignOfLife is the brief red toggle run once at boot,
	// before the radios have been brought up.
	PatternBootSignOfLife
	// PatternFatalAntenna1InitFail is the red toggle run forever when
	// antenna 1 fails to initialize.
	PatternFatalAntenna1InitFail
	// PatternFatalAntenna2InitFail is the green toggle run forever when
	// antenna 2 fails to initialize.
	PatternFatalAntenna2InitFail
	// PatternFatalImpossibleIrq is the rapid alternating red/green toggle
	// run forever after link.ErrImpossibleIRQ.
	PatternFatalImpossibleIrq
	// PatternConnected is the slow green blink shown while CONNECTED.
	PatternConnected
	// PatternDisconnected is the faster red blink shown otherwise.
	PatternDisconnected
)

func (p Pattern) String() string {
	switch p {
	case PatternOff:
		return "OFF"
	case PatternBootSignOfLife:
		return "BOOT_SIGN_OF_LIFE"
	case PatternFatalAntenna1InitFail:
		return "FATAL_ANTENNA1_INIT_FAIL"
	case PatternFatalAntenna2InitFail:
		return "FATAL_ANTENNA2_INIT_FAIL"
	case PatternFatalImpossibleIrq:
		return "FATAL_IMPOSSIBLE_IRQ"
	case PatternConnected:
		return "CONNECTED"
	case PatternDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// bootSignOfLifeToggles is 7 on/off blinks' worth of toggles.
const bootSignOfLifeToggles = 14

func halfPeriodSysticks(p Pattern) uint32 {
	switch p {
	case PatternBootSignOfLife:
		return 50
	case PatternFatalAntenna1InitFail, PatternFatalAntenna2InitFail, PatternFatalImpossibleIrq:
		return 25
	case PatternConnected:
		return 500
	case PatternDisconnected:
		return 200
	default:
		return 0
	}
}

// Output is which LEDs should be lit for the systick just processed.
type Output struct {
	Red, Green bool
}

// Cadence is a single LED status cadence, driven one systick at a time.
type Cadence struct {
	pattern    Pattern
	cd         tick.Countdown
	on         bool
	togglesLeft int
	Done       bool
}

// NewCadence returns a Cadence starting OFF.
func NewCadence() *Cadence {
	return &Cadence{}
}

// Set switches to a new pattern, restarting its cadence from the off
// phase. A no-op if p is already the active pattern, matching the source
// firmware's state-assignment-only ledState.setState.
func (c *Cadence) Set(p Pattern) {
	if c.pattern == p {
		return
	}
	c.pattern = p
	c.on = false
	c.Done = false
	c.togglesLeft = 0
	if p == PatternBootSignOfLife {
		c.togglesLeft = bootSignOfLifeToggles
	}
	c.cd.Arm(halfPeriodSysticks(p))
}

// Pattern reports the active pattern.
func (c *Cadence) Pattern() Pattern { return c.pattern }

// Tick advances the cadence by one systick and returns the LED state for
// that tick. Once a self-terminating pattern (PatternBootSignOfLife) runs
// out its toggles, Done is set and Tick keeps returning an OFF Output.
func (c *Cadence) Tick() Output {
	if c.pattern == PatternOff || c.Done {
		return Output{}
	}
	if c.cd.Tick() {
		c.on = !c.on
		if c.togglesLeft > 0 {
			c.togglesLeft--
			if c.togglesLeft == 0 {
				c.Done = true
				c.on = false
				return Output{}
			}
		}
		c.cd.Arm(halfPeriodSysticks(c.pattern))
	}
	return c.output()
}

func (c *Cadence) output() Output {
	switch c.pattern {
	case PatternBootSignOfLife, PatternFatalAntenna1InitFail, PatternDisconnected:
		return Output{Red: c.on}
	case PatternFatalAntenna2InitFail, PatternConnected:
		return Output{Green: c.on}
	case PatternFatalImpossibleIrq:
		return Output{Red: c.on, Green: !c.on}
	default:
		return Output{}
	}
}
