// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package devtools contains common functionality for development tools.
package devtools

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.astrophena.name/base/unwrap"
	"go.astrophena.name/writeups/internal/config"
)

// EnsureRoot checks that the current working directory is at the repository
// root and panics if it doesn't.
func EnsureRoot() {
	wd := unwrap.Value(os.Getwd())
	if _, err := os.Stat(filepath.Join(wd, "go.mod")); os.IsNotExist(err) {
		panic("Are you at repo root?")
	} else if err != nil {
		panic(err)
	}
}

// ConfigFiles are the names of configuration files looked up in the current
// directory, in order.
var ConfigFiles = []string{"site.yaml", "site.yml", "site.toml", "site.json"}

// LoadConfig loads the site configuration from path. If path is empty, the
// first of ConfigFiles that exists is used, and the built-in configuration
// if there is none.
func LoadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	for _, name := range ConfigFiles {
		if _, err := os.Stat(name); errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, err
		}
		return config.Load(name)
	}
	return config.Default(), nil
}
