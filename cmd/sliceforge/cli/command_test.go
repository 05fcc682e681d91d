// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesToSubcommand(t *testing.T) {
	var got []string
	root := &Command{
		Name: "tool",
		Subcommands: []*Command{
			{
				Name: "run",
				Run: func(args []string) error {
					got = args
					return nil
				},
			},
		},
	}
	if err := root.Execute([]string{"run", "a", "b"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("args = %v", got)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	root := &Command{
		Name:        "tool",
		Subcommands: []*Command{{Name: "run", Run: func([]string) error { return nil }}},
	}
	err := root.Execute([]string{"rnu"})
	if err == nil || !strings.Contains(err.Error(), `unknown command "rnu"`) {
		t.Fatalf("error = %v", err)
	}
}

func TestExecuteParsesFlags(t *testing.T) {
	var height int
	cmd := &Command{
		Name: "slice",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("slice", pflag.ContinueOnError)
			fs.IntVar(&height, "height", 1000, "slice height")
			return fs
		},
		Run: func(args []string) error { return nil },
	}
	if err := cmd.Execute([]string{"--height", "500", "input.png"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if height != 500 {
		t.Fatalf("height = %d", height)
	}
}

func TestPrintHelpListsSubcommands(t *testing.T) {
	root := &Command{
		Name:    "tool",
		Summary: "does things",
		Subcommands: []*Command{
			{Name: "run", Summary: "runs it"},
			{Name: "version", Summary: "prints the version"},
		},
	}
	var buf strings.Builder
	root.PrintHelp(&buf)
	out := buf.String()
	for _, want := range []string{"does things", "run", "runs it", "version"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q:\n%s", want, out)
		}
	}
}
