// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the one genuinely ambient setting a Repository
// needs that isn't already stored in the repository itself: where its
// stores live on disk, and whether the block cache is disabled. The
// listen and peer keys are decoded into File but are not applied by
// Options or by cmd/blend. cmd/blend is the only caller; the core
// packages always take an already-resolved repo.Options and never read a
// file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/blendvc/blendvc/pkg/blend/repo"
)

// File is the decoded shape of blend.toml.
type File struct {
	Dir          string `toml:"dir"`
	DisableCache bool   `toml:"disable_cache"`
	Listen       string `toml:"listen,omitempty"`
	Peer         string `toml:"peer,omitempty"`
}

// Load reads and decodes path into a File, defaulting Dir to the current
// directory when the file omits it.
func Load(path string) (*File, error) {
	f := &File{Dir: "."}
	if _, err := toml.DecodeFile(path, f); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if f.Dir == "" {
		f.Dir = "."
	}
	return f, nil
}

// Options resolves f into the repo.Options the core packages expect.
func (f *File) Options() repo.Options {
	return repo.Options{
		Dir:          f.Dir,
		DisableCache: f.DisableCache,
		Now:          time.Now,
	}
}

// Exists reports whether path names a readable file, letting cmd/blend
// fall back to built-in defaults when no blend.toml is present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
