// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package config

import "strings"

// OutputMode selects how pages are produced.
type OutputMode string

// Available output modes.
const (
	// Every page is rendered at build time.
	Static = OutputMode("static")
	// Pages are rendered on request unless they opt in to prerendering.
	Server = OutputMode("server")
	// Pages are rendered at build time unless they opt out of prerendering.
	Hybrid = OutputMode("hybrid")
)

// Prerender reports whether a page is rendered at build time in this mode.
// pageOpt is the page's own prerender setting, nil if it has none.
func (m OutputMode) Prerender(pageOpt *bool) bool {
	if pageOpt != nil && m != Static {
		return *pageOpt
	}
	return m != Server
}

// TrailingSlash controls whether generated page URLs end with a slash.
type TrailingSlash string

// Trailing slash policies.
const (
	TrailingSlashIgnore = TrailingSlash("ignore")
	TrailingSlashAlways = TrailingSlash("always")
	TrailingSlashNever  = TrailingSlash("never")
)

// BuildFormat controls the file layout of built pages.
type BuildFormat string

// Build formats.
const (
	// /foo is written to foo/index.html.
	FormatDirectory = BuildFormat("directory")
	// /foo is written to foo.html.
	FormatFile = BuildFormat("file")
)

func parseOutputMode(s OutputMode) (OutputMode, error) {
	switch m := OutputMode(strings.ToLower(string(s))); m {
	case "":
		return Static, nil
	case Static, Server, Hybrid:
		return m, nil
	}
	return "", &Error{Option: "output", Value: string(s), Err: ErrUnsupportedMode}
}

func parseTrailingSlash(s TrailingSlash) (TrailingSlash, error) {
	switch s {
	case "":
		return TrailingSlashIgnore, nil
	case TrailingSlashIgnore, TrailingSlashAlways, TrailingSlashNever:
		return s, nil
	}
	return "", &Error{Option: "trailing_slash", Value: string(s), Err: ErrInvalidOption}
}

func parseBuildFormat(s BuildFormat) (BuildFormat, error) {
	switch s {
	case "":
		return FormatDirectory, nil
	case FormatDirectory, FormatFile:
		return s, nil
	}
	return "", &Error{Option: "build.format", Value: string(s), Err: ErrInvalidOption}
}
