// Command mlrs-tx-sim is a host-only simulator for the TX link engine: it
// pairs two mainloop.Engine instances over an in-memory loopback radio so
// the link's connect/FHSS/diversity/command-channel behavior can be
// driven and inspected without hardware, including scripted fault
// injection against either antenna.
package main

import (
	"github.com/olliw-labs/mlrs-tx/internal/config"
	"github.com/olliw-labs/mlrs-tx/internal/led"
	"github.com/olliw-labs/mlrs-tx/internal/mainloop"
	"github.com/olliw-labs/mlrs-tx/internal/radio"
)

// Simulation owns two Engines — tx and peer — wired across one or two
// loopback antenna pairs depending on cfg's diversity mode.
type Simulation struct {
	cfg config.Config

	TX, Peer *mainloop.Engine

	txDriver1, peerDriver1 *radio.LoopbackDriver
	txDriver2, peerDriver2 *radio.LoopbackDriver

	ticks uint64
}

// NewSimulation builds a Simulation from cfg, running both ends with an
// identical configuration (the pair must agree on FHSS num/seed and sync
// word to talk to each other at all).
func NewSimulation(cfg config.Config) *Simulation {
	s := &Simulation{cfg: cfg}

	s.txDriver1, s.peerDriver1 = radio.NewLoopbackPair()
	txPort1 := radio.NewPort(s.txDriver1, cfg.Frame.SyncWord)
	peerPort1 := radio.NewPort(s.peerDriver1, cfg.Frame.SyncWord)

	var txPort2, peerPort2 *radio.Port
	if cfg.DiversityMode() != radio.ModeAntenna1Only {
		s.txDriver2, s.peerDriver2 = radio.NewLoopbackPair()
		txPort2 = radio.NewPort(s.txDriver2, cfg.Frame.SyncWord)
		peerPort2 = radio.NewPort(s.peerDriver2, cfg.Frame.SyncWord)
	}

	s.TX = mainloop.New(cfg, txPort1, txPort2, nil, nil)
	s.Peer = mainloop.New(cfg, peerPort1, peerPort2, nil, nil)
	return s
}

// Boot boots both engines, returning the first FatalError encountered (if
// any), tagged with which side produced it.
func (s *Simulation) Boot() (side string, fatal *mainloop.FatalError) {
	if f := s.TX.Boot(); f != nil {
		return "tx", f
	}
	if f := s.Peer.Boot(); f != nil {
		return "peer", f
	}
	return "", nil
}

// Step advances both engines by one systick and reports each side's LED
// output and any fatal condition.
func (s *Simulation) Step() (txOut, peerOut led.Output, txFatal, peerFatal *mainloop.FatalError) {
	s.ticks++
	txOut, txFatal = s.TX.Step()
	peerOut, peerFatal = s.Peer.Step()
	return
}

// Connected reports whether the TX engine's connect supervisor considers
// the link up.
func (s *Simulation) Connected() bool { return s.TX.Connect.Connected() }
