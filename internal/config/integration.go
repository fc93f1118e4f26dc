// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"slices"
	"strings"
)

// Capability is a kind of behavior an integration adds to the build.
type Capability string

// Capabilities.
const (
	CapabilityContent = Capability("content")
	CapabilitySitemap = Capability("sitemap")
	CapabilityStyling = Capability("styling")
)

// Integration is an activated build capability. The concrete types are
// [ContentFormat], [Sitemap] and [Styling].
type Integration interface {
	// Name returns the integration name as it appears in the config file.
	Name() string
	// Capability returns the capability the integration provides.
	Capability() Capability

	validate() error
}

// Format is a page source format.
type Format string

// Page source formats.
const (
	FormatHTML     = Format("html")
	FormatMarkdown = Format("markdown")
	FormatMDX      = Format("mdx")
)

// ContentFormat handles page sources with the listed file extensions.
type ContentFormat struct {
	Format     Format
	Extensions []string
}

func (c ContentFormat) Name() string           { return string(c.Format) }
func (c ContentFormat) Capability() Capability { return CapabilityContent }

func (c ContentFormat) validate() error {
	if len(c.Extensions) == 0 {
		return fmt.Errorf("%w: no extensions", ErrInvalidIntegration)
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 || strings.ContainsAny(ext, "/\\ ") {
			return fmt.Errorf("%w: extension %q must look like \".md\"", ErrInvalidIntegration, ext)
		}
	}
	return nil
}

// Handles reports whether the format handles files with extension ext.
func (c ContentFormat) Handles(ext string) bool {
	return slices.Contains(c.Extensions, strings.ToLower(ext))
}

// builtinFormats handle extensions no integration claimed.
var builtinFormats = []ContentFormat{
	{Format: FormatHTML, Extensions: []string{".html"}},
	{Format: FormatMarkdown, Extensions: []string{".md"}},
}

// DefaultEntryLimit is the maximum number of URLs in one sitemap file.
const DefaultEntryLimit = 45000

var changeFreqs = []string{"always", "hourly", "daily", "weekly", "monthly", "yearly", "never"}

// Sitemap writes sitemap-index.xml and the sitemap files it points to.
type Sitemap struct {
	// Filter lists path.Match patterns of permalinks to leave out.
	Filter     []string `json:"filter,omitempty"`
	ChangeFreq string   `json:"changefreq,omitempty"`
	Priority   *float64 `json:"priority,omitempty"`
	EntryLimit int      `json:"entry_limit,omitempty"`
}

func (s Sitemap) Name() string           { return "sitemap" }
func (s Sitemap) Capability() Capability { return CapabilitySitemap }

func (s Sitemap) validate() error {
	for _, f := range s.Filter {
		if _, err := path.Match(f, ""); err != nil {
			return fmt.Errorf("%w: filter %q: %v", ErrInvalidIntegration, f, err)
		}
	}
	if s.ChangeFreq != "" && !slices.Contains(changeFreqs, s.ChangeFreq) {
		return fmt.Errorf("%w: changefreq %q", ErrInvalidIntegration, s.ChangeFreq)
	}
	if s.Priority != nil && (*s.Priority < 0 || *s.Priority > 1) {
		return fmt.Errorf("%w: priority %v not in [0, 1]", ErrInvalidIntegration, *s.Priority)
	}
	if s.EntryLimit < 0 {
		return fmt.Errorf("%w: entry_limit %d", ErrInvalidIntegration, s.EntryLimit)
	}
	return nil
}

// Excluded reports whether permalink p matches one of the filters. A trailing
// slash on p is ignored, so "/drafts/*" matches "/drafts/x/" as well.
func (s Sitemap) Excluded(p string) bool {
	trimmed := p
	if p != "/" {
		trimmed = strings.TrimSuffix(p, "/")
	}
	for _, f := range s.Filter {
		if ok, _ := path.Match(f, p); ok {
			return true
		}
		if ok, _ := path.Match(f, trimmed); ok {
			return true
		}
	}
	return false
}

// Styling runs the utility CSS pipeline over the entry stylesheet.
type Styling struct {
	// Entry is the stylesheet path, relative to the source directory.
	Entry string
	// Purge drops rules whose class selectors no built page uses.
	Purge bool
	// ApplyBaseStyles prepends the built-in base styles.
	ApplyBaseStyles bool
}

func (s Styling) Name() string           { return "tailwind" }
func (s Styling) Capability() Capability { return CapabilityStyling }

func (s Styling) validate() error {
	if path.Ext(s.Entry) != ".css" {
		return fmt.Errorf("%w: entry %q must be a .css file", ErrInvalidIntegration, s.Entry)
	}
	if path.IsAbs(s.Entry) || strings.HasPrefix(path.Clean(s.Entry), "..") {
		return fmt.Errorf("%w: entry %q must be inside the source directory", ErrInvalidIntegration, s.Entry)
	}
	return nil
}

// IntegrationEntry is an integration as written in a config file: either a
// bare name or a single-key object mapping the name to its options.
type IntegrationEntry struct {
	Name    string
	Options json.RawMessage
}

func (e *IntegrationEntry) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		e.Name, e.Options = name, nil
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil || len(m) != 1 {
		return fmt.Errorf("integration must be a name or an object with a single key, got %s", b)
	}
	for k, v := range m {
		e.Name, e.Options = k, v
	}
	return nil
}

var aliases = map[string]string{
	"@astrojs/mdx":      "mdx",
	"@astrojs/markdown": "markdown",
	"@astrojs/sitemap":  "sitemap",
	"@astrojs/tailwind": "tailwind",
}

type factory func(opts json.RawMessage) (Integration, error)

var factories = map[string]factory{
	"markdown": contentFactory(FormatMarkdown, ".md", ".markdown"),
	"mdx":      contentFactory(FormatMDX, ".mdx"),
	"sitemap":  newSitemap,
	"tailwind": newStyling,
}

func contentFactory(f Format, exts ...string) factory {
	return func(opts json.RawMessage) (Integration, error) {
		var o struct {
			Extensions []string `json:"extensions"`
		}
		if err := decodeStrict(opts, &o); err != nil {
			return nil, err
		}
		c := ContentFormat{Format: f, Extensions: slices.Clone(exts)}
		if o.Extensions != nil {
			c.Extensions = make([]string, 0, len(o.Extensions))
			for _, ext := range o.Extensions {
				c.Extensions = append(c.Extensions, strings.ToLower(ext))
			}
		}
		return c, nil
	}
}

func newSitemap(opts json.RawMessage) (Integration, error) {
	var s Sitemap
	if err := decodeStrict(opts, &s); err != nil {
		return nil, err
	}
	if s.EntryLimit == 0 {
		s.EntryLimit = DefaultEntryLimit
	}
	s.Filter = slices.Clone(s.Filter)
	return s, nil
}

func newStyling(opts json.RawMessage) (Integration, error) {
	var o struct {
		Entry           string `json:"entry"`
		Purge           *bool  `json:"purge"`
		ApplyBaseStyles *bool  `json:"apply_base_styles"`
	}
	if err := decodeStrict(opts, &o); err != nil {
		return nil, err
	}
	s := Styling{
		Entry:           "styles/global.css",
		Purge:           true,
		ApplyBaseStyles: true,
	}
	if o.Entry != "" {
		s.Entry = o.Entry
	}
	if o.Purge != nil {
		s.Purge = *o.Purge
	}
	if o.ApplyBaseStyles != nil {
		s.ApplyBaseStyles = *o.ApplyBaseStyles
	}
	return s, nil
}

func decodeStrict(b json.RawMessage, v any) error {
	if len(bytes.TrimSpace(b)) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIntegration, err)
	}
	return nil
}

// resolveIntegrations turns config file entries into validated integrations,
// keeping their order.
func resolveIntegrations(entries []IntegrationEntry) ([]Integration, error) {
	var (
		out  []Integration
		seen = make(map[string]bool)
	)
	for i, e := range entries {
		option := fmt.Sprintf("integrations[%d]", i)
		name := strings.TrimSpace(e.Name)
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		f, ok := factories[name]
		if !ok {
			return nil, &Error{Option: option, Value: e.Name, Err: ErrUnknownIntegration}
		}
		if seen[name] {
			return nil, &Error{Option: option, Value: e.Name, Err: ErrDuplicateIntegration}
		}
		seen[name] = true

		in, err := f(e.Options)
		if err != nil {
			return nil, &Error{Option: option, Value: e.Name, Err: err}
		}
		if err := in.validate(); err != nil {
			return nil, &Error{Option: option, Value: e.Name, Err: err}
		}
		out = append(out, in)
	}
	return out, nil
}

// contentHandlers maps each extension to the format that handles it. Content
// integrations claim extensions in declaration order, and the first claim
// wins. Built-in formats only take what is left.
func contentHandlers(integrations []Integration) map[string]ContentFormat {
	handlers := make(map[string]ContentFormat)
	claim := func(c ContentFormat) {
		for _, ext := range c.Extensions {
			if _, taken := handlers[ext]; !taken {
				handlers[ext] = c
			}
		}
	}
	for _, in := range integrations {
		if c, ok := in.(ContentFormat); ok {
			claim(c)
		}
	}
	for _, c := range builtinFormats {
		claim(c)
	}
	return handlers
}
