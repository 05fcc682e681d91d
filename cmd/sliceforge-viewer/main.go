// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

// sliceforge-viewer is the interactive terminal UI for slicing. It
// decodes the given image, slices it in the background, and lets the
// user review the slices, toggle which ones to keep, and export the
// selection as a ZIP archive or PDF document without leaving the
// terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sliceforge/sliceforge/lib/artifact"
	"github.com/sliceforge/sliceforge/lib/config"
	"github.com/sliceforge/sliceforge/lib/session"
	"github.com/sliceforge/sliceforge/lib/settings"
	"github.com/sliceforge/sliceforge/lib/sliceui"
	"github.com/sliceforge/sliceforge/lib/slicer"
	"github.com/sliceforge/sliceforge/lib/version"
)

func main() {
	if err := run(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var height int
	var output string
	var configPath string

	flagSet := pflag.NewFlagSet("sliceforge-viewer", pflag.ContinueOnError)
	flagSet.IntVar(&height, "height", 0, "slice height in pixels (default: persisted settings)")
	flagSet.StringVar(&output, "output", "", "export base name (default: persisted settings)")
	flagSet.StringVar(&configPath, "config", "", "path to sliceforge.yaml (default: SLICEFORGE_CONFIG)")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("sliceforge-viewer")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) != 1 {
		printHelp(flagSet)
		return fmt.Errorf("expected exactly one image path")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	prefs := loadSettings()
	if height == 0 {
		height = prefs.SliceHeight
	}
	if output == "" {
		output = prefs.FileName
	}

	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	// The alt screen owns the terminal; keep background logging quiet
	// so it cannot corrupt the display.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Slice payloads and display files live in a per-run scratch
	// directory; the session releases the files, this removes the dir.
	scratch, err := os.MkdirTemp("", "sliceforge-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(scratch)
	factory, err := artifact.NewFileHandleFactory(filepath.Join(scratch, "slices"))
	if err != nil {
		return err
	}

	events := make(chan session.Event, 256)
	controller := session.NewController(
		factory,
		session.WithLogger(logger),
		session.WithStoreOptions(artifact.WithSpill(filepath.Join(scratch, "spill"), 1<<20)),
		session.WithObserver(func(e session.Event) {
			select {
			case events <- e:
			default:
			}
		}),
		session.WithSlicingOptions(slicer.Options{
			Format:  cfg.Format(),
			Quality: cfg.Encode.JPEGQuality,
			Logger:  logger,
		}),
	)

	if err := controller.StartSessionReader(context.Background(), file, height); err != nil {
		return err
	}

	model := sliceui.NewModel(controller, events, cfg.Output.Dir, output)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("SLICEFORGE_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

func loadSettings() settings.Settings {
	path, err := settings.DefaultPath()
	if err != nil {
		return settings.Default()
	}
	prefs, err := settings.Load(path)
	if err != nil {
		return settings.Default()
	}
	return prefs
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Sliceforge viewer — interactive terminal UI for slicing tall images.

Decodes the given image, slices it at the configured height, and
shows the slices as they are produced. Toggle slices with space,
then export the selection as a ZIP (z) or PDF (p).

Usage:
  sliceforge-viewer [flags] <image>

Examples:
  # Slice with persisted defaults
  sliceforge-viewer scroll.png

  # 800px slices, custom output name
  sliceforge-viewer --height 800 --output chapters scroll.png

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
