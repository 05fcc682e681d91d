// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/sliceforge/sliceforge/cmd/sliceforge/cli"
	"github.com/sliceforge/sliceforge/lib/version"
)

func versionCommand() *cli.Command {
	var full bool
	return &cli.Command{
		Name:    "version",
		Summary: "print version information",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("version", pflag.ContinueOnError)
			fs.BoolVar(&full, "full", false, "include Go and platform details")
			return fs
		},
		Run: func(args []string) error {
			if full {
				fmt.Println(version.Full())
				return nil
			}
			version.Print("sliceforge")
			return nil
		},
	}
}
