package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"

	"github.com/twvd-go/snow68k/internal/mac"
)

// runConsole is a liner-backed debug REPL, grounded on the console
// reader pattern other retrieval-pack emulators use for their
// interactive monitors.
func runConsole(m *mac.Machine, log *logrus.Logger) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(s string) []string {
		return completeCommand(s)
	})

	for {
		cmd, err := line.Prompt("snow> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			log.WithError(err).Error("console: read failed")
			return
		}

		line.AppendHistory(cmd)
		quit, err := processCommand(strings.TrimSpace(cmd), m)
		if err != nil {
			fmt.Println("error:", err)
		}
		if quit {
			return
		}
	}
}

var consoleCommands = []string{"step", "run", "regs", "reset", "quit"}

func completeCommand(s string) []string {
	var out []string
	for _, c := range consoleCommands {
		if strings.HasPrefix(c, s) {
			out = append(out, c)
		}
	}
	return out
}

func processCommand(cmd string, m *mac.Machine) (bool, error) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "quit", "exit":
		return true, nil

	case "reset":
		m.Reset()
		return false, nil

	case "regs":
		printRegisters(m)
		return false, nil

	case "step":
		n := 1
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return false, fmt.Errorf("step: %w", err)
			}
			n = v
		}
		for i := 0; i < n; i++ {
			m.CPU.Step()
		}
		printRegisters(m)
		return false, nil

	case "run":
		cycles := 1_000_000
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil {
				return false, fmt.Errorf("run: %w", err)
			}
			cycles = v
		}
		m.Run(cycles)
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}

func printRegisters(m *mac.Machine) {
	r := m.CPU.Registers()
	for i, d := range r.D {
		fmt.Printf("D%d=%08X ", i, d)
	}
	fmt.Println()
	for i, a := range r.A {
		fmt.Printf("A%d=%08X ", i, a)
	}
	fmt.Println()
	fmt.Printf("PC=%08X SR=%04X\n", r.PC, r.SR)
}
