// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the sliceforge CLI command tree.
package commands

import (
	"github.com/sliceforge/sliceforge/cmd/sliceforge/cli"
)

// Root returns the top-level sliceforge command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "sliceforge",
		Summary: "slice long raster images into exportable chunks",
		Description: "sliceforge cuts a tall image into horizontal slices and packages\n" +
			"the result as a ZIP archive or a PDF document.",
		Subcommands: []*cli.Command{
			sliceCommand(),
			settingsCommand(),
			versionCommand(),
		},
	}
}
