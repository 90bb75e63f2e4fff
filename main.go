package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kapitanov/chip8emu/internal/chip8"
	"github.com/kapitanov/chip8emu/internal/hal"
)

func main() {
	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run the CHIP-8 emulator",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
	}

	verbose := cmd.Flags().BoolP("verbose", "v", false, "enable verbose logging")
	frequency := cmd.Flags().IntP("frequency", "f", chip8.DefaultFrequency, "instruction frequency in Hz")
	scale := cmd.Flags().Int("scale", 16, "window scale factor")
	noDrawGate := cmd.Flags().Bool("no-draw-gate", false, "disable the vertical-blank draw gate")
	statePath := cmd.Flags().String("state", "", "save state file path (F5 saves, F7 loads; defaults to ROM path + .state8)")

	cmd.RunE = func(_ *cobra.Command, args []string) error {
		loggerOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		if *verbose {
			loggerOpts.Level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, loggerOpts)))

		path := args[0]
		rom, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("unable to load file %q: %w", path, err)
		}

		if *statePath == "" {
			*statePath = strings.TrimSuffix(path, filepath.Ext(path)) + ".state8"
		}

		h, err := hal.New(*scale)
		if err != nil {
			return fmt.Errorf("unable to initialize hal: %w", err)
		}
		defer h.Shutdown()

		machine := chip8.New(h, h, h, h)
		if err := machine.SetFrequency(*frequency); err != nil {
			return err
		}
		machine.SetDrawGate(!*noDrawGate)
		if err := machine.LoadProgram(rom); err != nil {
			return err
		}

		return drive(machine, h, *statePath)
	}

	cmd.SetArgs(os.Args[1:])
	if err := cmd.Execute(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

// drive runs the machine at the 60Hz display cadence, feeding it
// measured elapsed time so the core never touches a wall clock itself.
func drive(machine *chip8.Machine, h *hal.HAL, statePath string) error {
	const framePeriod = time.Second / 60

	press := func(key uint8) {
		if err := machine.KeyPressed(key); err != nil {
			slog.Error("key press rejected", "key", key, "err", err)
		}
	}
	release := func(key uint8) {
		if err := machine.KeyReleased(key); err != nil {
			slog.Error("key release rejected", "key", key, "err", err)
		}
	}

	crashed := false
	prev := time.Now()

	for {
		frameStart := time.Now()

		if err := h.PollEvents(press, release); err != nil {
			switch {
			case errors.Is(err, hal.ErrQuit):
				return nil
			case errors.Is(err, hal.ErrSaveState):
				saveState(machine, statePath)
			case errors.Is(err, hal.ErrLoadState):
				if loadState(machine, statePath) {
					crashed = machine.Crashed()
				}
			default:
				return err
			}
		}

		now := time.Now()
		elapsed := now.Sub(prev)
		prev = now

		if !crashed {
			if err := machine.Run(elapsed); err != nil {
				var fault *chip8.Fault
				if !errors.As(err, &fault) {
					return err
				}
				// The fault is latched; keep the window alive so the
				// final screen stays visible.
				crashed = true
			}
		}

		if h.ConsumeRedraw() {
			if err := h.Render(machine.ScreenRows()); err != nil {
				return err
			}
		}

		if sleep := framePeriod - time.Since(frameStart); sleep > 0 {
			time.Sleep(sleep)
		}
	}
}

func saveState(machine *chip8.Machine, path string) {
	data, err := machine.Capture().MarshalBinary()
	if err != nil {
		slog.Error("unable to encode state", "err", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Error("unable to save state", "path", path, "err", err)
		return
	}
	slog.Info("state saved", "path", path, "n", len(data))
}

func loadState(machine *chip8.Machine, path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("unable to load state", "path", path, "err", err)
		return false
	}
	var st chip8.SaveState
	if err := st.UnmarshalBinary(data); err != nil {
		slog.Error("unable to decode state", "path", path, "err", err)
		return false
	}
	machine.Restore(&st)
	slog.Info("state loaded", "path", path)
	return true
}
