// Copyright 2026 The Sliceforge Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings persists the user's slicing defaults. The file is
// JSON on disk but reads tolerate comments and trailing commas, so a
// hand-edited file keeps working. Writes go through a temp file and
// rename so a crash mid-write never corrupts the previous settings.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/sliceforge/sliceforge/lib/raster"
)

// Settings is the persisted user-preference blob.
type Settings struct {
	// SliceHeight is the default slice height in pixels.
	SliceHeight int `json:"slice_height"`

	// FileName is the default export base name, extension excluded.
	FileName string `json:"file_name"`

	// Language is a BCP 47 UI language tag.
	Language string `json:"language"`
}

// Default returns the settings used when nothing is persisted.
func Default() Settings {
	return Settings{
		SliceHeight: 1000,
		FileName:    "slices",
		Language:    "en",
	}
}

// normalize replaces out-of-range or empty fields with their defaults.
// A stale file from an older build must never produce an unusable
// slice height.
func (s Settings) normalize() Settings {
	def := Default()
	if raster.ValidateSliceHeight(s.SliceHeight) != nil {
		s.SliceHeight = def.SliceHeight
	}
	if s.FileName == "" {
		s.FileName = def.FileName
	}
	if s.Language == "" {
		s.Language = def.Language
	}
	return s
}

// DefaultPath returns the per-user settings file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(dir, "sliceforge", "settings.json"), nil
}

// Load reads the settings at path. A missing file yields the defaults
// with no error; an unreadable or unparsable file yields the defaults
// and the error.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("reading settings: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(jsonc.ToJSON(raw), &s); err != nil {
		return Default(), fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return s.normalize(), nil
}

// Save writes s to path atomically, creating parent directories as
// needed. The temp file lives in the target directory so the rename
// stays on one filesystem.
func Save(path string, s Settings) error {
	s = s.normalize()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("creating temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing settings: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("installing settings: %w", err)
	}
	return nil
}
