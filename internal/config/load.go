// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads the configuration file at path and validates it. The file format
// is chosen by extension: .yaml, .yml, .toml or .json.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	o, err := Parse(filepath.Ext(path), b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c, err := o.Validate()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes options from b. ext is the file extension that determines the
// format. Unknown keys are rejected.
func Parse(ext string, b []byte) (Options, error) {
	var (
		o       Options
		generic any
	)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &generic); err != nil {
			return o, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &generic); err != nil {
			return o, err
		}
	case ".json":
		generic = json.RawMessage(b)
	default:
		return o, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	// Everything goes through JSON, so there's one set of struct tags and one
	// implementation of the integration entry syntax.
	j, err := json.Marshal(generic)
	if err != nil {
		return o, err
	}
	dec := json.NewDecoder(bytes.NewReader(j))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return o, err
	}
	return o, nil
}
