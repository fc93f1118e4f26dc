// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package config

import (
	"errors"
	"fmt"
)

// Possible validation errors. Every error returned by [Options.Validate] is an
// [*Error] wrapping one of these.
var (
	ErrUnsupportedMode      = errors.New("unsupported output mode")
	ErrInvalidOrigin        = errors.New("site must be an absolute http(s) URL")
	ErrInvalidBase          = errors.New("base must be a URL path")
	ErrInvalidOption        = errors.New("invalid value")
	ErrUnknownIntegration   = errors.New("unknown integration")
	ErrDuplicateIntegration = errors.New("integration listed more than once")
	ErrInvalidIntegration   = errors.New("invalid integration options")
	ErrUnknownTheme         = errors.New("unknown highlight theme")
	ErrUnsupportedFormat    = errors.New("unsupported config file format")
)

// Error is a configuration validation error. It names the offending option and
// the value that was rejected.
type Error struct {
	Option string // e.g. "output", "integrations[1]"
	Value  string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s %q: %v", e.Option, e.Value, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
