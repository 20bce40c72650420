// Package tick provides the fixed-cadence system tick that drives all
// timing in the link engine. On hardware this is fed by a SYSTICK
// interrupt at ~1kHz; in tests and the simulator it is fed synthetically.
package tick

// Source is a monotone counter of elapsed systicks, plus the derived
// "N systicks have elapsed" decrement helper the teacher firmware calls
// DECc (decrement-with-clamp, reload on reaching zero).
type Source struct {
	systicks uint32
}

// Advance moves the tick source forward by one systick. Called from the
// SYSTICK ISR on hardware, or once per simulated tick elsewhere.
func (s *Source) Advance() {
	s.systicks++
}

// Systicks returns the total number of systicks observed so far.
func (s *Source) Systicks() uint32 {
	return s.systicks
}

// Countdown is a reloadable down-counter driven by systicks, matching the
// DECc(var, reload) pattern used throughout mlrs-tx.cpp: decrement each
// systick, and when it reaches zero the caller is signalled and the
// countdown reloads on the next Arm call.
type Countdown struct {
	remaining uint32
}

// Arm (re)loads the countdown to n systicks.
func (c *Countdown) Arm(n uint32) {
	c.remaining = n
}

// Tick decrements the countdown by one systick if not already at zero, and
// reports whether it just reached zero on this call.
func (c *Countdown) Tick() (expired bool) {
	if c.remaining == 0 {
		return false
	}
	c.remaining--
	return c.remaining == 0
}

// Remaining reports the number of systicks left before expiry.
func (c *Countdown) Remaining() uint32 {
	return c.remaining
}

// Active reports whether the countdown has ticks left to run.
func (c *Countdown) Active() bool {
	return c.remaining > 0
}
