package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/shlex"

	"github.com/olliw-labs/mlrs-tx/internal/radio"
)

// parseLine tokenizes one console line the way a shell would (quoting,
// escapes), so fault-injection scripts can be written naturally.
func parseLine(line string) ([]string, error) {
	return shlex.Split(line)
}

// sideDriver resolves a "tx"/"peer" + antenna "1"/"2" pair to the matching
// LoopbackDriver, or an error naming what was wrong with the selector.
func sideDriver(sim *Simulation, side, antenna string) (*radio.LoopbackDriver, error) {
	var d *radio.LoopbackDriver
	switch side {
	case "tx":
		switch antenna {
		case "1":
			d = sim.txDriver1
		case "2":
			d = sim.txDriver2
		}
	case "peer":
		switch antenna {
		case "1":
			d = sim.peerDriver1
		case "2":
			d = sim.peerDriver2
		}
	default:
		return nil, fmt.Errorf("unknown side %q, want tx or peer", side)
	}
	if d == nil {
		return nil, fmt.Errorf("no driver for side=%s antenna=%s (antenna 2 may be disabled)", side, antenna)
	}
	return d, nil
}

// dispatch runs one parsed console command against sim, logging its
// effect through logger. args[0] is the command name.
func dispatch(sim *Simulation, logger *log.Logger, args []string) error {
	if len(args) == 0 {
		return nil
	}

	switch args[0] {
	case "status":
		logger.Info("status",
			"ticks", sim.ticks,
			"tx_link_state", sim.TX.Link.State(),
			"tx_connect_state", sim.TX.Connect.State(),
			"tx_cmd_frame_type", sim.TX.Cmd.FrameType(),
			"peer_link_state", sim.Peer.Link.State(),
			"peer_connect_state", sim.Peer.Connect.State())
		return nil

	case "run":
		n, err := parseTickCount(args)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			_, _, txFatal, peerFatal := sim.Step()
			if txFatal != nil {
				return fmt.Errorf("tx fatal: %w", txFatal)
			}
			if peerFatal != nil {
				return fmt.Errorf("peer fatal: %w", peerFatal)
			}
		}
		logger.Info("ran", "ticks", n, "connected", sim.Connected())
		return nil

	case "inject":
		return dispatchInject(sim, logger, args[1:])

	case "store-params":
		if len(args) < 2 {
			return fmt.Errorf("usage: store-params <tx|peer>")
		}
		switch args[1] {
		case "tx":
			sim.TX.RequestStoreParams()
		case "peer":
			sim.Peer.RequestStoreParams()
		default:
			return fmt.Errorf("unknown side %q", args[1])
		}
		logger.Info("store-params requested", "side", args[1])
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func parseTickCount(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: run <ticks>")
	}
	var n int
	if _, err := fmt.Sscanf(args[1], "%d", &n); err != nil || n < 0 {
		return 0, fmt.Errorf("invalid tick count %q", args[1])
	}
	return n, nil
}

func dispatchInject(sim *Simulation, logger *log.Logger, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: inject <timeout|drop|corrupt|fail> <tx|peer> <1|2>")
	}
	kind, side, antenna := args[0], args[1], args[2]

	d, err := sideDriver(sim, side, antenna)
	if err != nil {
		return err
	}

	switch kind {
	case "timeout":
		d.InjectTimeout()
	case "drop":
		d.DropPendingFrame()
	case "corrupt":
		d.CorruptPendingSyncWord()
	case "fail":
		d.SetOK(false)
	default:
		return fmt.Errorf("unknown inject kind %q", kind)
	}
	logger.Warn("fault injected", "kind", kind, "side", side, "antenna", antenna)
	return nil
}
