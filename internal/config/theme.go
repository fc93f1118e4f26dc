// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package config

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultHighlightTheme is used when the markdown options don't name one.
const DefaultHighlightTheme = "github-dark"

// shikiThemes maps Shiki theme names that chroma doesn't ship under the same
// name to the closest chroma styles, most similar first.
var shikiThemes = map[string][]string{
	"github-dark":                {"github-dark", "monokai"},
	"github-dark-default":        {"github-dark", "monokai"},
	"github-dark-dimmed":         {"github-dark", "monokai"},
	"github-dark-high-contrast":  {"github-dark", "monokai"},
	"github-light":               {"github"},
	"github-light-default":       {"github"},
	"github-light-high-contrast": {"github"},
	"one-dark-pro":               {"onedark", "monokai"},
	"min-light":                  {"github"},
	"material-theme":             {"material", "monokai"},
	"solarized-dark":             {"solarized-dark"},
	"solarized-light":            {"solarized-light"},
	"vitesse-dark":               {"monokai"},
	"vitesse-light":              {"github"},
}

// resolveTheme returns the name of the chroma style used for theme name.
func resolveTheme(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if _, ok := styles.Registry[n]; ok {
		return n, true
	}
	for _, candidate := range shikiThemes[n] {
		if _, ok := styles.Registry[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

// Markdown holds the options applied when rendering content to HTML.
type Markdown struct {
	// HighlightTheme is the theme name as configured.
	HighlightTheme string
	// Style is the chroma style HighlightTheme resolved to.
	Style string
	// SyntaxHighlight enables highlighting of fenced code blocks.
	SyntaxHighlight bool
	// GFM enables GitHub Flavored Markdown extensions.
	GFM bool
	// SmartyPants converts quotes and dashes to typographic ones.
	SmartyPants bool
}

// ChromaStyle returns the chroma style for code blocks.
func (m Markdown) ChromaStyle() *chroma.Style {
	return styles.Get(m.Style)
}
