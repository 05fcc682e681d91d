// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/sliceforge/sliceforge/cmd/sliceforge/cli"
	"github.com/sliceforge/sliceforge/lib/artifact"
	"github.com/sliceforge/sliceforge/lib/config"
	"github.com/sliceforge/sliceforge/lib/export"
	"github.com/sliceforge/sliceforge/lib/retry"
	"github.com/sliceforge/sliceforge/lib/session"
	"github.com/sliceforge/sliceforge/lib/settings"
	"github.com/sliceforge/sliceforge/lib/slicer"
)

type sliceFlags struct {
	height     int
	exportAs   string
	output     string
	selection  string
	configPath string
}

func sliceCommand() *cli.Command {
	flags := &sliceFlags{}
	return &cli.Command{
		Name:    "slice",
		Summary: "slice an image and export the result",
		Usage:   "sliceforge slice [flags] <image-path-or-url>",
		Examples: []cli.Example{
			{Description: "slice into 1000px chunks and write a ZIP", Command: "sliceforge slice scroll.png"},
			{Description: "800px slices, PDF output, only slices 0 and 2", Command: "sliceforge slice --height 800 --export pdf --select 0,2 scroll.png"},
		},
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("slice", pflag.ContinueOnError)
			fs.IntVar(&flags.height, "height", 0, "slice height in pixels (default: persisted settings)")
			fs.StringVar(&flags.exportAs, "export", "zip", "export container: zip or pdf")
			fs.StringVar(&flags.output, "output", "", "output base name (default: persisted settings)")
			fs.StringVar(&flags.selection, "select", "", "comma-separated slice indices to export (default: all)")
			fs.StringVar(&flags.configPath, "config", "", "path to sliceforge.yaml (default: SLICEFORGE_CONFIG)")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one image path, got %d arguments", len(args))
			}
			return runSlice(flags, args[0])
		},
	}
}

func runSlice(flags *sliceFlags, source string) error {
	logger := cli.NewCommandLogger().With("command", "slice")
	ctx := context.Background()

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}

	prefs, err := settings.Load(mustSettingsPath())
	if err != nil {
		logger.Warn("settings unreadable, using defaults", "error", err)
	}
	height := flags.height
	if height == 0 {
		height = prefs.SliceHeight
	}
	output := flags.output
	if output == "" {
		output = prefs.FileName
	}

	var format export.Format
	switch flags.exportAs {
	case "zip":
		format = export.Archive
	case "pdf":
		format = export.Document
	default:
		return fmt.Errorf("unknown export container %q (want zip or pdf)", flags.exportAs)
	}

	picked, err := parseSelection(flags.selection)
	if err != nil {
		return err
	}

	body, err := fetchSource(ctx, logger, source)
	if err != nil {
		return err
	}

	events := make(chan session.Event, 64)
	controller := session.NewController(
		artifact.NewMemoryHandleFactory(),
		session.WithLogger(logger),
		session.WithObserver(func(e session.Event) { events <- e }),
		session.WithSlicingOptions(slicer.Options{
			Format:  cfg.Format(),
			Quality: cfg.Encode.JPEGQuality,
			Logger:  logger,
		}),
	)
	defer controller.Reset()

	if err := controller.StartSessionReader(ctx, bytes.NewReader(body), height); err != nil {
		return err
	}
	for {
		e := <-events
		if e.State == session.StateReady {
			break
		}
		if e.State == session.StateIdle {
			return e.Err
		}
	}

	if picked != nil {
		controller.DeselectAll()
		for _, index := range picked {
			controller.Toggle(index)
		}
	}

	result, err := controller.Export(ctx, format, output)
	if err != nil {
		return err
	}

	path := filepath.Join(cfg.Output.Dir, result.Name)
	if err := os.WriteFile(path, result.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("wrote %s (%d slices, %d skipped)\n", path, result.Entries, len(result.Skipped))
	return nil
}

// fetchSource reads the image bytes from a local path or, for
// http(s) URLs, over the network with retries.
func fetchSource(ctx context.Context, logger *slog.Logger, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", source, err)
		}
		return data, nil
	}

	executor := retry.NewExecutor(retry.WithLogger(logger))
	policy := retry.DefaultPolicy()
	policy.Timeout = 30 * time.Second
	policy.OnRetry = func(attempt int, err error) {
		logger.Warn("download failed, retrying", "attempt", attempt, "error", err)
	}
	return retry.Do(ctx, executor, "download "+source, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, retry.WithKind(
				fmt.Errorf("GET %s: %s", source, resp.Status),
				retry.KindFromHTTPStatus(resp.StatusCode),
			)
		}
		return io.ReadAll(resp.Body)
	}, policy)
}

func parseSelection(spec string) ([]uint32, error) {
	if spec == "" {
		return nil, nil
	}
	parts := strings.Split(spec, ",")
	out := make([]uint32, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad slice index %q: %w", part, err)
		}
		out = append(out, uint32(n))
	}
	return out, nil
}

// loadConfig resolves the tool config: explicit flag, then
// SLICEFORGE_CONFIG, then built-in defaults when neither is set.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("SLICEFORGE_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

func mustSettingsPath() string {
	path, err := settings.DefaultPath()
	if err != nil {
		return ""
	}
	return path
}
