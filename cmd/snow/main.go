// Command snow runs the Mac Plus emulator core against a configuration
// file, optionally dropping into an interactive debug console.
package main

import (
	"fmt"
	"os"

	"github.com/grimdork/climate"
	"github.com/sirupsen/logrus"

	"github.com/twvd-go/snow68k/internal/mac"
)

// Args is the command-line surface, parsed by climate's struct-tag
// convention.
type Args struct {
	Config string `opt:"config,c" label:"Path to machine configuration YAML"`
	Debug  bool   `opt:"debug,d" label:"Drop into the interactive debug console instead of running free"`
	Cycles int    `opt:"cycles" label:"Number of CPU cycles to run before exiting (0 = run forever)"`
}

func main() {
	var args Args
	cl := climate.New("snow", "Mac Plus emulator core")
	cl.Register(&args)
	if err := cl.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "snow:", err)
		os.Exit(2)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if args.Config == "" {
		log.Fatal("snow: -config is required")
	}

	if err := run(args, log); err != nil {
		log.WithError(err).Error("snow: fatal error")
		os.Exit(1)
	}
}

func run(args Args, log *logrus.Logger) error {
	cfg, err := mac.LoadConfig(args.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rom, err := os.ReadFile(cfg.ROM)
	if err != nil {
		return fmt.Errorf("reading rom: %w", err)
	}

	machine, err := mac.New(cfg, rom, log)
	if err != nil {
		return fmt.Errorf("building machine: %w", err)
	}

	if args.Debug {
		runConsole(machine, log)
		return nil
	}

	if args.Cycles <= 0 {
		for {
			machine.Run(1_000_000)
		}
	}
	machine.Run(args.Cycles)
	return nil
}
