// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package config

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.astrophena.name/base/testutil"
)

func writeups() Options {
	return Options{
		Output: Static,
		Site:   "https://lain-team.github.io/",
		Base:   "writeups",
		Integrations: []IntegrationEntry{
			{Name: "mdx"},
			{Name: "sitemap"},
			{Name: "tailwind"},
		},
		Markdown: MarkdownOptions{HighlightTheme: "github-dark-high-contrast"},
	}
}

func TestWriteupsConfig(t *testing.T) {
	c, err := writeups().Validate()
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, c.Output(), Static)
	testutil.AssertEqual(t, c.Base(), "/writeups")
	testutil.AssertEqual(t, c.Prefix(), "https://lain-team.github.io/writeups/")
	testutil.AssertEqual(t, c.URL("p"), "https://lain-team.github.io/writeups/p")
	testutil.AssertEqual(t, c.URL("/p"), "https://lain-team.github.io/writeups/p")
	testutil.AssertEqual(t, c.Path("/p"), "/writeups/p")

	var names []string
	for _, in := range c.Integrations() {
		names = append(names, in.Name())
	}
	testutil.AssertEqual(t, names, []string{"mdx", "sitemap", "tailwind"})
	testutil.AssertEqual(t, c.Capabilities(), []Capability{CapabilityContent, CapabilitySitemap, CapabilityStyling})
}

func TestDefault(t *testing.T) {
	c := Default()
	testutil.AssertEqual(t, c.Prefix(), "https://lain-team.github.io/writeups/")
	testutil.AssertEqual(t, c.Markdown().HighlightTheme, "github-dark-high-contrast")
	if c.Markdown().ChromaStyle() == nil {
		t.Fatal("no chroma style")
	}

	// Each call gets its own value.
	u := c.Site()
	u.Host = "example.com"
	testutil.AssertEqual(t, Default().Site().Host, "lain-team.github.io")
	testutil.AssertEqual(t, c.Site().Host, "lain-team.github.io")
}

func TestValidateErrors(t *testing.T) {
	cases := map[string]struct {
		modify     func(*Options)
		wantErr    error
		wantOption string
	}{
		"not a URL": {
			modify:     func(o *Options) { o.Site = "not-a-url" },
			wantErr:    ErrInvalidOrigin,
			wantOption: "site",
		},
		"empty site": {
			modify:     func(o *Options) { o.Site = "" },
			wantErr:    ErrInvalidOrigin,
			wantOption: "site",
		},
		"ftp site": {
			modify:     func(o *Options) { o.Site = "ftp://example.com" },
			wantErr:    ErrInvalidOrigin,
			wantOption: "site",
		},
		"site with query": {
			modify:     func(o *Options) { o.Site = "https://example.com/?a=b" },
			wantErr:    ErrInvalidOrigin,
			wantOption: "site",
		},
		"bogus mode": {
			modify:     func(o *Options) { o.Output = "bogus" },
			wantErr:    ErrUnsupportedMode,
			wantOption: "output",
		},
		"base with host": {
			modify:     func(o *Options) { o.Base = "https://example.com/writeups" },
			wantErr:    ErrInvalidBase,
			wantOption: "base",
		},
		"base with protocol-relative host": {
			modify:     func(o *Options) { o.Base = "//example.com/writeups" },
			wantErr:    ErrInvalidBase,
			wantOption: "base",
		},
		"base with dot dot": {
			modify:     func(o *Options) { o.Base = "writeups/../admin" },
			wantErr:    ErrInvalidBase,
			wantOption: "base",
		},
		"base with query": {
			modify:     func(o *Options) { o.Base = "writeups?x" },
			wantErr:    ErrInvalidBase,
			wantOption: "base",
		},
		"unknown integration": {
			modify: func(o *Options) {
				o.Integrations = append(o.Integrations, IntegrationEntry{Name: "partytown"})
			},
			wantErr:    ErrUnknownIntegration,
			wantOption: "integrations[3]",
		},
		"duplicate integration": {
			modify: func(o *Options) {
				o.Integrations = append(o.Integrations, IntegrationEntry{Name: "@astrojs/sitemap"})
			},
			wantErr:    ErrDuplicateIntegration,
			wantOption: "integrations[3]",
		},
		"unknown integration option": {
			modify: func(o *Options) {
				o.Integrations[1].Options = []byte(`{"changefrequency": "daily"}`)
			},
			wantErr:    ErrInvalidIntegration,
			wantOption: "integrations[1]",
		},
		"bad changefreq": {
			modify: func(o *Options) {
				o.Integrations[1].Options = []byte(`{"changefreq": "fortnightly"}`)
			},
			wantErr:    ErrInvalidIntegration,
			wantOption: "integrations[1]",
		},
		"bad extension": {
			modify: func(o *Options) {
				o.Integrations[0].Options = []byte(`{"extensions": ["mdx"]}`)
			},
			wantErr:    ErrInvalidIntegration,
			wantOption: "integrations[0]",
		},
		"styling entry outside source": {
			modify: func(o *Options) {
				o.Integrations[2].Options = []byte(`{"entry": "../global.css"}`)
			},
			wantErr:    ErrInvalidIntegration,
			wantOption: "integrations[2]",
		},
		"unknown theme": {
			modify:     func(o *Options) { o.Markdown.HighlightTheme = "eye-of-sauron" },
			wantErr:    ErrUnknownTheme,
			wantOption: "markdown.highlight_theme",
		},
		"bad trailing slash": {
			modify:     func(o *Options) { o.TrailingSlash = "sometimes" },
			wantErr:    ErrInvalidOption,
			wantOption: "trailing_slash",
		},
		"bad build format": {
			modify:     func(o *Options) { o.Build.Format = "zip" },
			wantErr:    ErrInvalidOption,
			wantOption: "build.format",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			o := writeups()
			tc.modify(&o)

			c, err := o.Validate()
			if err == nil {
				t.Fatalf("must fail with error: %v", tc.wantErr)
			}
			if c != nil {
				t.Fatal("got a config together with an error")
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got error: %v, want %v", err, tc.wantErr)
			}
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("error %v is not a *config.Error", err)
			}
			testutil.AssertEqual(t, cerr.Option, tc.wantOption)
			if !strings.Contains(err.Error(), tc.wantOption) {
				t.Fatalf("error %q doesn't name option %q", err, tc.wantOption)
			}
		})
	}
}

func TestUnknownIntegrationNamed(t *testing.T) {
	o := writeups()
	o.Integrations = []IntegrationEntry{{Name: "sitemap"}, {Name: "svelte"}, {Name: "react"}}
	_, err := o.Validate()
	if !errors.Is(err, ErrUnknownIntegration) {
		t.Fatalf("got error: %v", err)
	}
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error %v is not a *config.Error", err)
	}
	testutil.AssertEqual(t, cerr.Value, "svelte")
}

func TestModeCheckedFirst(t *testing.T) {
	o := writeups()
	o.Output = "bogus"
	o.Site = "not-a-url"
	o.Integrations = append(o.Integrations, IntegrationEntry{Name: "nope"})
	for range 3 {
		_, err := o.Validate()
		if !errors.Is(err, ErrUnsupportedMode) {
			t.Fatalf("got error: %v, want %v", err, ErrUnsupportedMode)
		}
	}
}

func TestBase(t *testing.T) {
	cases := map[string]struct {
		base       string
		wantBase   string
		wantPrefix string
	}{
		"empty":          {"", "/", "https://lain-team.github.io/"},
		"slash":          {"/", "/", "https://lain-team.github.io/"},
		"bare":           {"writeups", "/writeups", "https://lain-team.github.io/writeups/"},
		"leading slash":  {"/writeups", "/writeups", "https://lain-team.github.io/writeups/"},
		"trailing slash": {"writeups/", "/writeups", "https://lain-team.github.io/writeups/"},
		"nested":         {"/a//b/", "/a/b", "https://lain-team.github.io/a/b/"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			o := writeups()
			o.Base = tc.base
			c, err := o.Validate()
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, c.Base(), tc.wantBase)
			testutil.AssertEqual(t, c.Prefix(), tc.wantPrefix)
		})
	}
}

func TestSiteWithPath(t *testing.T) {
	o := writeups()
	o.Site = "https://example.com/team/"
	c, err := o.Validate()
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, c.URL("p"), "https://example.com/team/writeups/p")
	testutil.AssertEqual(t, c.Path("p"), "/team/writeups/p")
}

func TestTrailingSlash(t *testing.T) {
	cases := map[string]struct {
		policy TrailingSlash
		in     string
		want   string
	}{
		"ignore keeps missing":   {TrailingSlashIgnore, "/p", "/writeups/p"},
		"ignore keeps present":   {TrailingSlashIgnore, "/p/", "/writeups/p/"},
		"always adds":            {TrailingSlashAlways, "/p", "/writeups/p/"},
		"always keeps files":     {TrailingSlashAlways, "/feed.xml", "/writeups/feed.xml"},
		"never trims":            {TrailingSlashNever, "/p/", "/writeups/p"},
		"never trims root":       {TrailingSlashNever, "/", "/writeups"},
		"fragment is kept":       {TrailingSlashAlways, "/p#top", "/writeups/p/#top"},
		"full URL passes":        {TrailingSlashAlways, "https://example.com/x", "https://example.com/x"},
		"spaces are escaped":     {TrailingSlashIgnore, "/a b", "/writeups/a%20b"},
		"ignore with empty path": {TrailingSlashIgnore, "", "/writeups/"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			o := writeups()
			o.TrailingSlash = tc.policy
			c, err := o.Validate()
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, c.Path(tc.in), tc.want)
		})
	}
}

func TestContentFormatPrecedence(t *testing.T) {
	cases := map[string]struct {
		integrations []IntegrationEntry
		ext          string
		want         Format
	}{
		"built-in markdown": {
			integrations: nil,
			ext:          ".md",
			want:         FormatMarkdown,
		},
		"built-in html": {
			integrations: []IntegrationEntry{{Name: "mdx"}},
			ext:          ".html",
			want:         FormatHTML,
		},
		"mdx handles mdx": {
			integrations: []IntegrationEntry{{Name: "mdx"}},
			ext:          ".mdx",
			want:         FormatMDX,
		},
		"integration beats built-in": {
			integrations: []IntegrationEntry{{Name: "mdx", Options: []byte(`{"extensions": [".mdx", ".md"]}`)}},
			ext:          ".md",
			want:         FormatMDX,
		},
		"first integration wins": {
			integrations: []IntegrationEntry{
				{Name: "markdown", Options: []byte(`{"extensions": [".md", ".txt"]}`)},
				{Name: "mdx", Options: []byte(`{"extensions": [".mdx", ".txt"]}`)},
			},
			ext:  ".txt",
			want: FormatMarkdown,
		},
		"first integration wins (swapped)": {
			integrations: []IntegrationEntry{
				{Name: "mdx", Options: []byte(`{"extensions": [".mdx", ".txt"]}`)},
				{Name: "markdown", Options: []byte(`{"extensions": [".md", ".txt"]}`)},
			},
			ext:  ".txt",
			want: FormatMDX,
		},
		"extension case": {
			integrations: []IntegrationEntry{{Name: "mdx"}},
			ext:          ".MDX",
			want:         FormatMDX,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			o := writeups()
			o.Integrations = tc.integrations
			c, err := o.Validate()
			if err != nil {
				t.Fatal(err)
			}
			f, ok := c.ContentFormat(tc.ext)
			if !ok {
				t.Fatalf("no handler for %q", tc.ext)
			}
			testutil.AssertEqual(t, f.Format, tc.want)
		})
	}

	c, err := writeups().Validate()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.ContentFormat(".rst"); ok {
		t.Fatal(".rst must not be handled")
	}
}

func TestIntegrationDefaults(t *testing.T) {
	c, err := writeups().Validate()
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range c.Integrations() {
		switch v := in.(type) {
		case ContentFormat:
			testutil.AssertEqual(t, v.Extensions, []string{".mdx"})
		case Sitemap:
			testutil.AssertEqual(t, v.EntryLimit, DefaultEntryLimit)
			testutil.AssertEqual(t, v.Excluded("/anything"), false)
		case Styling:
			testutil.AssertEqual(t, v, Styling{Entry: "styles/global.css", Purge: true, ApplyBaseStyles: true})
		default:
			t.Fatalf("unexpected integration %T", in)
		}
	}
}

func TestIntegrationsCopied(t *testing.T) {
	c, err := writeups().Validate()
	if err != nil {
		t.Fatal(err)
	}
	in := c.Integrations()
	mdx := in[0].(ContentFormat)
	mdx.Extensions[0] = ".txt"
	in[1] = Styling{}

	again := c.Integrations()
	testutil.AssertEqual(t, again[0].(ContentFormat).Extensions, []string{".mdx"})
	testutil.AssertEqual(t, again[1].Name(), "sitemap")
}

func TestSitemapExcluded(t *testing.T) {
	s := Sitemap{Filter: []string{"/drafts/*", "/secret"}}
	testutil.AssertEqual(t, s.Excluded("/drafts/x"), true)
	testutil.AssertEqual(t, s.Excluded("/drafts/x/"), true)
	testutil.AssertEqual(t, s.Excluded("/secret"), true)
	testutil.AssertEqual(t, s.Excluded("/secret/"), true)
	testutil.AssertEqual(t, s.Excluded("/posts/x"), false)
	testutil.AssertEqual(t, s.Excluded("/drafts/x/y/"), false)
	testutil.AssertEqual(t, Sitemap{Filter: []string{"/"}}.Excluded("/"), true)
}

func TestPrerender(t *testing.T) {
	yes, no := true, false
	cases := map[string]struct {
		mode OutputMode
		opt  *bool
		want bool
	}{
		"static default":  {Static, nil, true},
		"static opt out":  {Static, &no, true},
		"server default":  {Server, nil, false},
		"server opt in":   {Server, &yes, true},
		"hybrid default":  {Hybrid, nil, true},
		"hybrid opt out":  {Hybrid, &no, false},
		"hybrid explicit": {Hybrid, &yes, true},
		"server explicit": {Server, &no, false},
		"static explicit": {Static, &yes, true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, tc.mode.Prerender(tc.opt), tc.want)
		})
	}
}

func TestOutputModeCase(t *testing.T) {
	o := writeups()
	o.Output = "HYBRID"
	c, err := o.Validate()
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, c.Output(), Hybrid)
}

func TestLoad(t *testing.T) {
	files := map[string]string{
		"site.yaml": `
title: Writeups
output: static
site: https://lain-team.github.io/
base: writeups
integrations:
  - mdx
  - sitemap: {changefreq: weekly, priority: 0.5}
  - tailwind:
      purge: false
markdown:
  highlight_theme: github-dark-high-contrast
`,
		"site.toml": `
title = "Writeups"
output = "static"
site = "https://lain-team.github.io/"
base = "writeups"
integrations = ["mdx", { sitemap = { changefreq = "weekly", priority = 0.5 } }, { tailwind = { purge = false } }]

[markdown]
highlight_theme = "github-dark-high-contrast"
`,
		"site.json": `{
  "title": "Writeups",
  "output": "static",
  "site": "https://lain-team.github.io/",
  "base": "writeups",
  "integrations": ["mdx", {"sitemap": {"changefreq": "weekly", "priority": 0.5}}, {"tailwind": {"purge": false}}],
  "markdown": {"highlight_theme": "github-dark-high-contrast"}
}`,
	}

	var loaded []*Config
	dir := t.TempDir()
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(dir, name)
			if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			c, err := Load(p)
			if err != nil {
				t.Fatal(err)
			}
			testutil.AssertEqual(t, c.Title(), "Writeups")
			testutil.AssertEqual(t, c.URL("p"), "https://lain-team.github.io/writeups/p")

			in := c.Integrations()
			if len(in) != 3 {
				t.Fatalf("got %d integrations, want 3", len(in))
			}
			sm := in[1].(Sitemap)
			testutil.AssertEqual(t, sm.ChangeFreq, "weekly")
			testutil.AssertEqual(t, *sm.Priority, 0.5)
			testutil.AssertEqual(t, in[2].(Styling).Purge, false)
			loaded = append(loaded, c)
		})
	}

	for i := 1; i < len(loaded); i++ {
		if !reflect.DeepEqual(loaded[0].Integrations(), loaded[i].Integrations()) {
			t.Fatalf("formats disagree on integrations: %+v vs %+v", loaded[0].Integrations(), loaded[i].Integrations())
		}
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		name, content string
		wantErr       error
	}{
		"unknown format": {
			name:    "site.ini",
			content: "site=https://example.com",
			wantErr: ErrUnsupportedFormat,
		},
		"bogus mode": {
			name:    "site.yaml",
			content: "output: bogus\nsite: https://example.com\n",
			wantErr: ErrUnsupportedMode,
		},
		"bad site": {
			name:    "site.yaml",
			content: "site: not-a-url\n",
			wantErr: ErrInvalidOrigin,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(t.TempDir(), tc.name)
			if err := os.WriteFile(p, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(p)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got error: %v, want %v", err, tc.wantErr)
			}
			if !strings.Contains(err.Error(), p) {
				t.Fatalf("error %q doesn't mention the file", err)
			}
		})
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(".yaml", []byte("site: https://example.com\nsitemap: true\n"))
	if err == nil {
		t.Fatal("must fail on unknown key")
	}
}

func TestIntegrationEntrySyntax(t *testing.T) {
	_, err := Parse(".yaml", []byte("site: https://example.com\nintegrations:\n  - {mdx: {}, sitemap: {}}\n"))
	if err == nil {
		t.Fatal("must fail on a multi-key integration entry")
	}
}

func TestURLParses(t *testing.T) {
	c, err := writeups().Validate()
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(c.URL("posts/hello world"))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, u.Path, "/writeups/posts/hello world")
}
