// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package config defines the site build configuration.

A configuration is written as [Options], usually decoded from a file with
[Load], and validated once with [Options.Validate]. Validation either rejects
the options with an [*Error] naming the offending option or returns a [Config]
that can't be changed afterwards. The builder only accepts a [Config], so no
build starts from unvalidated options.

# File Format

YAML, TOML and JSON are supported. In YAML:

	title: Writeups
	output: static
	site: https://lain-team.github.io/
	base: writeups
	integrations:
	  - mdx
	  - sitemap: {changefreq: weekly}
	  - tailwind
	markdown:
	  highlight_theme: github-dark-high-contrast

# Integrations

Integrations are applied in the order they're listed. Content integrations
(markdown, mdx) claim file extensions in that order: the first one listing an
extension handles it. HTML and .md files not claimed by any integration are
handled by the built-in formats. Sitemap and styling integrations run after
every page is rendered, so they always see the final page HTML.
*/
package config

import (
	"net/url"
	"slices"
	"sort"
	"strings"
)

// Options is a build configuration as written by the user.
type Options struct {
	// Title is the title of the site.
	Title string `json:"title,omitempty"`
	// Author is the name of the author of the site.
	Author string `json:"author,omitempty"`
	// Output is the output mode. Defaults to static.
	Output OutputMode `json:"output,omitempty"`
	// Site is the absolute URL of the deployed site.
	Site string `json:"site"`
	// Base is the path prefix the site is served under.
	Base string `json:"base,omitempty"`
	// TrailingSlash sets whether page URLs end with a slash.
	TrailingSlash TrailingSlash `json:"trailing_slash,omitempty"`
	// SrcDir is the directory to read the site from. Defaults to ".".
	SrcDir string `json:"src_dir,omitempty"`
	// OutDir is the directory to write the site to. Defaults to "build".
	OutDir string `json:"out_dir,omitempty"`
	// Build holds output layout options.
	Build BuildOptions `json:"build,omitempty"`
	// Integrations lists activated integrations in order.
	Integrations []IntegrationEntry `json:"integrations,omitempty"`
	// Markdown holds content rendering options.
	Markdown MarkdownOptions `json:"markdown,omitempty"`
}

// BuildOptions control the layout of the output tree.
type BuildOptions struct {
	Format BuildFormat `json:"format,omitempty"`
}

// MarkdownOptions control content rendering. Unset booleans default to true.
type MarkdownOptions struct {
	HighlightTheme  string `json:"highlight_theme,omitempty"`
	SyntaxHighlight *bool  `json:"syntax_highlight,omitempty"`
	GFM             *bool  `json:"gfm,omitempty"`
	SmartyPants     *bool  `json:"smartypants,omitempty"`
}

// Config is a validated build configuration. The zero value is not usable;
// obtain one from [Options.Validate], [Load] or [Default].
type Config struct {
	title         string
	author        string
	output        OutputMode
	site          *url.URL
	base          string
	trailingSlash TrailingSlash
	format        BuildFormat
	srcDir        string
	outDir        string
	integrations  []Integration
	markdown      Markdown
	handlers      map[string]ContentFormat
}

// Validate checks the options and returns the resulting configuration. Options
// are checked in a fixed order and the first problem is returned, so the same
// invalid options always fail with the same error.
func (o Options) Validate() (*Config, error) {
	c := &Config{
		title:  o.Title,
		author: o.Author,
		srcDir: o.SrcDir,
		outDir: o.OutDir,
	}
	if c.srcDir == "" {
		c.srcDir = "."
	}
	if c.outDir == "" {
		c.outDir = "build"
	}

	var err error
	if c.output, err = parseOutputMode(o.Output); err != nil {
		return nil, err
	}
	if c.site, err = parseSite(o.Site); err != nil {
		return nil, err
	}
	if c.base, err = parseBase(o.Base); err != nil {
		return nil, err
	}
	if c.trailingSlash, err = parseTrailingSlash(o.TrailingSlash); err != nil {
		return nil, err
	}
	if c.format, err = parseBuildFormat(o.Build.Format); err != nil {
		return nil, err
	}
	if c.integrations, err = resolveIntegrations(o.Integrations); err != nil {
		return nil, err
	}
	c.handlers = contentHandlers(c.integrations)

	theme := o.Markdown.HighlightTheme
	if theme == "" {
		theme = DefaultHighlightTheme
	}
	style, ok := resolveTheme(theme)
	if !ok {
		return nil, &Error{Option: "markdown.highlight_theme", Value: theme, Err: ErrUnknownTheme}
	}
	c.markdown = Markdown{
		HighlightTheme:  theme,
		Style:           style,
		SyntaxHighlight: boolOr(o.Markdown.SyntaxHighlight, true),
		GFM:             boolOr(o.Markdown.GFM, true),
		SmartyPants:     boolOr(o.Markdown.SmartyPants, true),
	}

	return c, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func parseSite(s string) (*url.URL, error) {
	invalid := func(err error) error {
		return &Error{Option: "site", Value: s, Err: err}
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, invalid(ErrInvalidOrigin)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, invalid(ErrInvalidOrigin)
	}
	if u.Host == "" || u.Opaque != "" || u.User != nil || u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return nil, invalid(ErrInvalidOrigin)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u, nil
}

func parseBase(s string) (string, error) {
	invalid := &Error{Option: "base", Value: s, Err: ErrInvalidBase}
	if strings.ContainsAny(s, "?#\\ \t\r\n") || strings.HasPrefix(s, "//") {
		return "", invalid
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return "", invalid
	}
	var segs []string
	for _, seg := range strings.Split(s, "/") {
		switch seg {
		case "":
			continue
		case ".", "..":
			return "", invalid
		}
		segs = append(segs, seg)
	}
	return "/" + strings.Join(segs, "/"), nil
}

// Title returns the site title.
func (c *Config) Title() string { return c.title }

// Author returns the site author.
func (c *Config) Author() string { return c.author }

// Output returns the output mode.
func (c *Config) Output() OutputMode { return c.output }

// Site returns a copy of the site origin.
func (c *Config) Site() *url.URL {
	u := *c.site
	return &u
}

// Base returns the normalized base path. It always starts with a slash and
// never ends with one, except for the root path "/".
func (c *Config) Base() string { return c.base }

// TrailingSlash returns the trailing slash policy.
func (c *Config) TrailingSlash() TrailingSlash { return c.trailingSlash }

// Format returns the build format.
func (c *Config) Format() BuildFormat { return c.format }

// SrcDir returns the source directory.
func (c *Config) SrcDir() string { return c.srcDir }

// OutDir returns the output directory.
func (c *Config) OutDir() string { return c.outDir }

// Markdown returns the markdown rendering options.
func (c *Config) Markdown() Markdown { return c.markdown }

// Integrations returns the activated integrations in declaration order.
func (c *Config) Integrations() []Integration {
	out := make([]Integration, 0, len(c.integrations))
	for _, in := range c.integrations {
		switch v := in.(type) {
		case ContentFormat:
			v.Extensions = slices.Clone(v.Extensions)
			in = v
		case Sitemap:
			v.Filter = slices.Clone(v.Filter)
			in = v
		}
		out = append(out, in)
	}
	return out
}

// Capabilities returns the sorted set of capabilities the integrations
// activate. It doesn't depend on the order of the integrations.
func (c *Config) Capabilities() []Capability {
	var caps []Capability
	for _, in := range c.integrations {
		if !slices.Contains(caps, in.Capability()) {
			caps = append(caps, in.Capability())
		}
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// ContentFormat returns the format that handles page sources with extension
// ext.
func (c *Config) ContentFormat(ext string) (ContentFormat, bool) {
	f, ok := c.handlers[strings.ToLower(ext)]
	if !ok {
		return ContentFormat{}, false
	}
	f.Extensions = slices.Clone(f.Extensions)
	return f, true
}

// Root returns the unescaped path of the site root: the origin path followed
// by the base path, ending with a slash.
func (c *Config) Root() string { return c.root() }

func (c *Config) root() string {
	return strings.TrimSuffix(c.site.Path, "/") + strings.TrimSuffix(c.base, "/") + "/"
}

func (c *Config) origin() string {
	return c.site.Scheme + "://" + c.site.Host
}

// Prefix returns the absolute URL of the site root, ending with a slash.
func (c *Config) Prefix() string {
	return c.origin() + (&url.URL{Path: c.root()}).EscapedPath()
}

// Path returns the root-relative, base-prefixed path for the site path p. Full
// URLs are returned unchanged.
func (c *Config) Path(p string) string {
	if isFullURL(p) {
		return p
	}
	rel := strings.TrimPrefix(p, "/")
	var suffix string
	if i := strings.IndexAny(rel, "?#"); i != -1 {
		rel, suffix = rel[:i], rel[i:]
	}
	escaped := (&url.URL{Path: c.root() + rel}).EscapedPath()
	return c.applyTrailingSlash(escaped) + suffix
}

// URL returns the absolute URL for the site path p. Full URLs are returned
// unchanged.
func (c *Config) URL(p string) string {
	if isFullURL(p) {
		return p
	}
	return c.origin() + c.Path(p)
}

func (c *Config) applyTrailingSlash(p string) string {
	// Files keep their names.
	if strings.Contains(p[strings.LastIndex(p, "/")+1:], ".") {
		return p
	}
	switch c.trailingSlash {
	case TrailingSlashAlways:
		if !strings.HasSuffix(p, "/") {
			return p + "/"
		}
	case TrailingSlashNever:
		if p != "/" {
			return strings.TrimSuffix(p, "/")
		}
	}
	return p
}

func isFullURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// Default returns the configuration of the writeups site.
func Default() *Config {
	c, err := Options{
		Title:  "Writeups",
		Author: "lain",
		Output: Static,
		Site:   "https://lain-team.github.io/",
		Base:   "writeups",
		Integrations: []IntegrationEntry{
			{Name: "mdx"},
			{Name: "sitemap"},
			{Name: "tailwind"},
		},
		Markdown: MarkdownOptions{
			HighlightTheme: "github-dark-high-contrast",
		},
	}.Validate()
	if err != nil {
		panic(err)
	}
	return c
}
