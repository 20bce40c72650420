// Command mlrs-tx-sim drives a pair of mainloop.Engine instances over an
// in-memory loopback radio from the host, either for a fixed number of
// ticks or interactively from a console, so the link state machine and its
// fault paths can be exercised without TX/RX hardware.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/olliw-labs/mlrs-tx/internal/config"
)

func main() {
	var (
		configPath  = pflag.StringP("config", "c", "", "YAML config file (defaults built in if omitted)")
		ticks       = pflag.IntP("ticks", "t", 0, "run this many systicks non-interactively, then exit")
		interactive = pflag.BoolP("interactive", "i", false, "read fault-injection commands from stdin")
		verbose     = pflag.BoolP("verbose", "v", false, "enable debug-level logging")
	)
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg := config.Default()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			logger.Fatal("open config", "err", err)
		}
		cfg, err = config.Load(f)
		f.Close()
		if err != nil {
			logger.Fatal("load config", "err", err)
		}
	}

	sim := NewSimulation(cfg)
	if side, fatal := sim.Boot(); fatal != nil {
		logger.Fatal("boot failed", "side", side, "pattern", fatal.Pattern, "err", fatal.Err)
	}
	logger.Info("booted", "fhss_channels", cfg.Fhss.Num, "rate_ms", cfg.Frame.RateMs)

	if *ticks > 0 {
		runFixed(sim, logger, *ticks)
	}

	if *interactive {
		runInteractive(sim, logger)
	}
}

func runFixed(sim *Simulation, logger *log.Logger, n int) {
	for i := 0; i < n; i++ {
		_, _, txFatal, peerFatal := sim.Step()
		if txFatal != nil {
			logger.Fatal("tx fatal", "tick", i, "pattern", txFatal.Pattern, "err", txFatal.Err)
		}
		if peerFatal != nil {
			logger.Fatal("peer fatal", "tick", i, "pattern", peerFatal.Pattern, "err", peerFatal.Err)
		}
	}
	logger.Info("run complete", "ticks", n, "connected", sim.Connected())
}

func runInteractive(sim *Simulation, logger *log.Logger) {
	logger.Info("interactive mode: status | run <n> | inject <timeout|drop|corrupt|fail> <tx|peer> <1|2> | store-params <tx|peer> | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		args, err := parseLine(line)
		if err != nil {
			logger.Error("parse", "err", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		if err := dispatch(sim, logger, args); err != nil {
			logger.Error("command failed", "err", err)
		}
	}
}
