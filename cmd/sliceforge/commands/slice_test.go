// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import "testing"

func TestParseSelection(t *testing.T) {
	got, err := parseSelection("0, 2,5")
	if err != nil {
		t.Fatalf("parseSelection: %v", err)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 2 || got[2] != 5 {
		t.Fatalf("indices = %v", got)
	}

	if got, err := parseSelection(""); err != nil || got != nil {
		t.Fatalf("empty spec = %v, %v", got, err)
	}

	if _, err := parseSelection("1,x"); err == nil {
		t.Fatal("garbage index accepted")
	}
	if _, err := parseSelection("-1"); err == nil {
		t.Fatal("negative index accepted")
	}
}

func TestLoadConfigDefaultsWithoutEnv(t *testing.T) {
	t.Setenv("SLICEFORGE_CONFIG", "")
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
