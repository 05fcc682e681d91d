// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/sliceforge/sliceforge/cmd/sliceforge/cli"
	"github.com/sliceforge/sliceforge/lib/raster"
	"github.com/sliceforge/sliceforge/lib/settings"
)

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:    "settings",
		Summary: "inspect or change persisted slicing defaults",
		Subcommands: []*cli.Command{
			settingsShowCommand(),
			settingsSetCommand(),
		},
	}
}

func settingsShowCommand() *cli.Command {
	return &cli.Command{
		Name:    "show",
		Summary: "print the current settings as JSON",
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			path, err := settings.DefaultPath()
			if err != nil {
				return err
			}
			prefs, err := settings.Load(path)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(prefs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func settingsSetCommand() *cli.Command {
	var sliceHeight int
	var fileName, language string
	return &cli.Command{
		Name:    "set",
		Summary: "change one or more settings",
		Usage:   "sliceforge settings set [flags]",
		Examples: []cli.Example{
			{Description: "default to 800px slices named \"pages\"", Command: "sliceforge settings set --slice-height 800 --file-name pages"},
		},
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("set", pflag.ContinueOnError)
			fs.IntVar(&sliceHeight, "slice-height", 0, "default slice height in pixels")
			fs.StringVar(&fileName, "file-name", "", "default export base name")
			fs.StringVar(&language, "language", "", "UI language tag")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if sliceHeight == 0 && fileName == "" && language == "" {
				return fmt.Errorf("nothing to change; pass at least one of --slice-height, --file-name, --language")
			}

			path, err := settings.DefaultPath()
			if err != nil {
				return err
			}
			prefs, err := settings.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v; starting from defaults\n", err)
			}
			if sliceHeight != 0 {
				if err := raster.ValidateSliceHeight(sliceHeight); err != nil {
					return err
				}
				prefs.SliceHeight = sliceHeight
			}
			if fileName != "" {
				prefs.FileName = fileName
			}
			if language != "" {
				prefs.Language = language
			}
			if err := settings.Save(path, prefs); err != nil {
				return err
			}
			fmt.Printf("settings saved to %s\n", path)
			return nil
		},
	}
}
