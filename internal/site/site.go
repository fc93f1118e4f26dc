// © 2022 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Package site builds https://lain-team.github.io/writeups.

# Directory Structure

Site has the following directories:

	build      This is where the generated site will be placed by default.
	pages      All content for the site lives inside this directory. HTML,
	           Markdown and MDX formats can be used, depending on the
	           configured integrations.
	static     Files in this directory will be copied verbatim to the
	           generated site. A sitemap link is appended to
	           robots.txt when the sitemap integration is enabled.
	styles     Stylesheets processed by the tailwind integration.
	templates  These are the templates that wrap pages. Templates are
	           chosen on a page-by-page basis in the front matter.
	           They must have the '.html' extension. If the directory
	           doesn't exist, the default layout is used.

# Page Layout

Each page must be of a supported format and have JSON front matter in the
beginning:

	{
	  "title": "Hello, world!",
	  "template": "layout",
	  "permalink": "/hello-world"
	}

See Page for all available front matter fields.

# Template Functions

In templates, the following functions can be used:

	{{ content page }}         Returns the page content.
	{{ time format date }}     Formats the date as a <date> element.
	{{ image path caption }}   Returns a figure with an image.
	{{ pages type }}           Returns pages of type, or all pages.
	{{ url path }}             Returns a link to path, prefixed with the
	                           base path (and the origin in production).
	{{ canonical page }}       Returns the absolute URL of the page.
	{{ static path }}          Like url, but for fingerprinted static files.
	{{ site }}                 Returns the site configuration.
*/
package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.astrophena.name/base/logger"
	"go.astrophena.name/writeups/internal/config"
	"go.astrophena.name/writeups/templates"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	mjson "github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/xml"
	"github.com/yuin/goldmark"
	"rsc.io/markdown"
)

// Possible errors, used in tests.
var (
	errFrontmatterSplit        = errors.New("failed to split frontmatter and contents")
	errFrontmatterParse        = errors.New("failed to parse frontmatter")
	errFrontmatterMissing      = errors.New("missing frontmatter")
	errFrontmatterMissingParam = errors.New("missing required frontmatter parameter (title, template, permalink)")
	errFormatUnsupported       = errors.New("format unsupported")
	errPermalinkInvalid        = errors.New("invalid permalink")
	errPermalinkDuplicate      = errors.New("permalink used by more than one page")
	errPrerenderStatic         = errors.New("page opts out of prerendering, but the output mode is static")
)

// Config represents a build configuration.
type Config struct {
	// Site is the validated site configuration. If nil, config.Default is
	// used.
	Site *config.Config
	// Src is the directory where to read files from. If empty, uses the source
	// directory of Site.
	Src string
	// Dst is the directory where to write files. If empty, uses the output
	// directory of Site.
	Dst string
	// Prod determines if the site should be built in a production mode. This
	// means that drafts are excluded and links are absolute URLs derived from
	// the site origin.
	Prod bool
	// SkipFeed determines if the feed for site shouldn't be built.
	SkipFeed bool

	feedCreated time.Time // used in tests
}

func (c *Config) setDefaults() {
	if c.Site == nil {
		c.Site = config.Default()
	}

	if c.Src == "" {
		c.Src = c.Site.SrcDir()
	}

	if c.Dst == "" {
		c.Dst = c.Site.OutDir()
	}
}

// Build builds a site based on the provided [Config].
//
// The site is rendered into a staging directory next to Dst, which replaces
// Dst only after everything succeeded. A failed build leaves Dst as it was.
func Build(ctx context.Context, c *Config) error {
	_, err := build(ctx, c)
	return err
}

func build(ctx context.Context, c *Config) (*buildContext, error) {
	c.setDefaults()
	b := newBuildContext(c)

	// Parse templates and pages.
	if err := b.parseTemplates(); err != nil {
		return nil, err
	}
	if err := filepath.WalkDir(filepath.Join(b.c.Src, "pages"), b.parsePages); err != nil {
		return nil, err
	}
	// Hash static files.
	if err := walkIfExists(filepath.Join(b.c.Src, "static"), b.hashStatic); err != nil {
		return nil, err
	}

	// Sort pages by date. Pages without date are pushed to the end.
	sort.SliceStable(b.pages, func(i, j int) bool {
		if b.pages[i].Date == nil || b.pages[j].Date == nil {
			return b.pages[j].Date == nil && b.pages[i].Date != nil
		}
		return !b.pages[i].Date.Time.Before(b.pages[j].Date.Time)
	})

	// Render pages that are built ahead of time.
	for _, p := range b.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !p.prerender {
			b.onDemand[routeKey(p.Permalink)] = p
			continue
		}
		out, err := b.render(p)
		if err != nil {
			return nil, err
		}
		b.outputs = append(b.outputs, &output{page: p, html: out})
	}

	// Integrations that work on rendered pages run after all of them are
	// rendered, in the order they're configured.
	for _, in := range b.site.Integrations() {
		var err error
		switch in := in.(type) {
		case config.Sitemap:
			err = b.buildSitemap(in)
		case config.Styling:
			err = b.buildStyles(in)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", in.Name(), err)
		}
	}

	if err := b.writeStaged(); err != nil {
		return nil, err
	}

	logger.Info(ctx, "built site",
		slog.String("dst", b.c.Dst),
		slog.String("prefix", b.site.Prefix()),
		slog.Int("pages", len(b.outputs)),
		slog.Int("on_demand", len(b.onDemand)),
	)
	return b, nil
}

// writeStaged writes the site into a fresh directory and swaps it with Dst.
func (b *buildContext) writeStaged() error {
	dst := filepath.Clean(b.c.Dst)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	staging, err := os.MkdirTemp(filepath.Dir(dst), "."+filepath.Base(dst)+"-*")
	if err != nil {
		return err
	}
	done := false
	defer func() {
		if !done {
			os.RemoveAll(staging)
		}
	}()
	if err := os.Chmod(staging, 0o755); err != nil {
		return err
	}

	if err := b.write(staging); err != nil {
		return err
	}

	// Clean up after previous build.
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := os.Rename(staging, dst); err != nil {
		return err
	}
	done = true
	return nil
}

func (b *buildContext) write(dst string) error {
	// Static files go first, so that generated files win on conflicts.
	if err := walkIfExists(filepath.Join(b.c.Src, "static"), b.copyStatic(dst)); err != nil {
		return err
	}

	for _, o := range b.outputs {
		minified, err := b.min.Bytes("text/html", o.html)
		if err != nil {
			return fmt.Errorf("%s: %w", o.page.path, err)
		}
		if err := writeFile(filepath.Join(dst, filepath.FromSlash(o.page.dstPath)), minified); err != nil {
			return err
		}
	}
	for name, data := range b.files {
		if err := writeFile(filepath.Join(dst, filepath.FromSlash(name)), data); err != nil {
			return err
		}
	}
	if !b.c.SkipFeed {
		if err := b.buildFeed(dst); err != nil {
			return err
		}
	}

	robots, err := b.robots()
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dst, "robots.txt"), robots); err != nil {
		return err
	}

	return b.writeRoutes(dst)
}

const robotsTxt = `User-agent: *
`

// robots returns the contents of robots.txt: static/robots.txt if the site
// has one, or the default that allows everything. The sitemap, if built, is
// appended.
func (b *buildContext) robots() ([]byte, error) {
	robots, err := os.ReadFile(filepath.Join(b.c.Src, "static", "robots.txt"))
	if errors.Is(err, fs.ErrNotExist) {
		robots, err = []byte(robotsTxt), nil
	}
	if err != nil {
		return nil, err
	}
	if b.sitemapURL == "" {
		return robots, nil
	}
	if len(robots) > 0 && robots[len(robots)-1] != '\n' {
		robots = append(robots, '\n')
	}
	return append(robots, "\nSitemap: "+b.sitemapURL+"\n"...), nil
}

// route describes a page rendered on request.
type route struct {
	Route    string `json:"route"`
	Source   string `json:"source"`
	Template string `json:"template"`
}

// writeRoutes writes the manifest of on-demand pages for server and hybrid
// output.
func (b *buildContext) writeRoutes(dst string) error {
	if len(b.onDemand) == 0 {
		return nil
	}
	var routes []route
	for _, p := range b.onDemand {
		src, err := filepath.Rel(b.c.Src, p.path)
		if err != nil {
			return err
		}
		routes = append(routes, route{
			Route:    b.site.Path(p.Permalink),
			Source:   filepath.ToSlash(src),
			Template: p.Template,
		})
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Route < routes[j].Route })
	out, err := json.MarshalIndent(routes, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dst, "_server", "routes.json"), out)
}

func writeFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}

func walkIfExists(dir string, fn fs.WalkDirFunc) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(dir, fn)
}

type min struct {
	m *minify.M
}

func newMin() *min {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.Add("text/html", &html.Minifier{
		KeepDocumentTags:    true,
		KeepDefaultAttrVals: true,
		KeepEndTags:         true,
	})
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", mjson.Minify)
	m.AddFunc("text/xml", xml.Minify)

	return &min{m: m}
}

func (m *min) Bytes(mediaType string, b []byte) ([]byte, error) {
	return m.m.Bytes(mediaType, b)
}

type buildContext struct {
	c          *Config
	site       *config.Config
	md         *markdown.Parser
	mdx        goldmark.Markdown
	funcs      template.FuncMap
	pages      []*Page
	templates  map[string]*template.Template
	static     map[string]string // path -> hashed path (e.g. /css/main.css -> /css/main-[hash].css)
	min        *min
	outputs    []*output
	files      map[string][]byte // generated files by slash-separated path
	onDemand   map[string]*Page  // route key -> page
	permalinks map[string]string // route key -> page source
	sitemapURL string
	styleLink  string // <link> to the processed stylesheet, if any
}

// output is a prerendered page.
type output struct {
	page *Page
	html []byte
}

func newBuildContext(c *Config) *buildContext {
	b := &buildContext{
		c:          c,
		site:       c.Site,
		md:         newMarkdownParser(c.Site.Markdown()),
		mdx:        newMDX(c.Site.Markdown()),
		templates:  make(map[string]*template.Template),
		static:     make(map[string]string),
		min:        newMin(),
		files:      make(map[string][]byte),
		onDemand:   make(map[string]*Page),
		permalinks: make(map[string]string),
	}

	b.funcs = template.FuncMap{
		"content":   func(p *Page) template.HTML { return template.HTML(p.contents) },
		"time":      b.time,
		"image":     b.image,
		"pages":     b.pagesByType,
		"url":       b.url,
		"canonical": func(p *Page) string { return b.site.URL(p.Permalink) },
		"static":    b.getStatic,
		"site":      func() *config.Config { return b.site },
	}

	return b
}

func (b *buildContext) image(path, caption string) template.HTML {
	const tmpl = `<figure>
  <img alt="%[2]s" src="%[1]s" loading="lazy"/>
  <figcaption>%[2]s</figcaption>
</figure>`
	s := fmt.Sprintf(tmpl, b.getStatic(path), template.HTMLEscapeString(caption))
	return template.HTML(s)
}

func (b *buildContext) pagesByType(typ string) []*Page {
	if typ == "" {
		return b.pages
	}
	var pages []*Page
	for _, p := range b.pages {
		if p.Type == typ {
			pages = append(pages, p)
		}
	}
	return pages
}

func (b *buildContext) time(format string, d *date) template.HTML {
	return template.HTML(fmt.Sprintf(`<date datetime="%s">%s</date>`,
		d.Format(time.RFC3339),
		d.Format(format),
	))
}

// url returns the link to the site path base. Links always carry the base
// path; in production they're also absolute.
func (b *buildContext) url(base string) string {
	if b.c.Prod {
		return b.site.URL(base)
	}
	return b.site.Path(base)
}

func (b *buildContext) getStatic(base string) string {
	hashed, ok := b.static[base]
	if !ok {
		return b.url(base)
	}
	return b.url(hashed)
}

func (b *buildContext) parseTemplates() error {
	dir := filepath.Join(b.c.Src, "templates")
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		var err error
		b.templates["layout"], err = template.New("layout").Funcs(b.funcs).Parse(string(templates.Layout))
		return err
	}
	return filepath.WalkDir(dir, b.parseTemplate)
}

func (b *buildContext) parseTemplate(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}

	if d.IsDir() {
		return nil
	}

	if filepath.Ext(path) != ".html" {
		return nil
	}

	name, err := filepath.Rel(filepath.Join(b.c.Src, "templates"), path)
	if err != nil {
		return err
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	// Ensure that we have slash-separated path everywhere.
	name = filepath.ToSlash(name)

	bb, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	b.templates[name], err = template.New(name).Funcs(b.funcs).Parse(string(bb))
	if err != nil {
		return err
	}

	return nil
}

func (b *buildContext) parsePages(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}

	if d.IsDir() || isIgnorable(path) {
		return nil
	}

	p, err := b.loadPage(path)
	if err != nil {
		return err
	}
	if p.Draft && b.c.Prod {
		return nil
	}

	key := routeKey(p.Permalink)
	if other, ok := b.permalinks[key]; ok {
		return fmt.Errorf("%s: %w: %q is also used by %s", path, errPermalinkDuplicate, p.Permalink, other)
	}
	b.permalinks[key] = path
	b.pages = append(b.pages, p)

	return nil
}

// loadPage reads and parses the page source at path.
func (b *buildContext) loadPage(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := &Page{path: path}
	if err := p.parse(b.site, f); err != nil {
		return nil, err
	}
	if _, ok := b.templates[p.Template]; !ok {
		return nil, fmt.Errorf("%s: no such template %q", p.path, p.Template)
	}
	return p, nil
}

// render builds the page and returns its HTML, before minification.
func (b *buildContext) render(p *Page) ([]byte, error) {
	tpl, ok := b.templates[p.Template]
	if !ok {
		return nil, fmt.Errorf("%s: no such template %q", p.path, p.Template)
	}
	var buf strings.Builder
	if err := p.build(b, tpl, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// routeKey normalizes a permalink or request path for route lookups.
func routeKey(p string) string {
	p = path.Clean("/" + p)
	p = strings.TrimSuffix(p, ".html")
	if p == "/index" {
		return "/"
	}
	return strings.TrimSuffix(p, "/index")
}

var skipHashing = []string{
	"robots.txt",
}

func (b *buildContext) hashStatic(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}

	if d.IsDir() || isIgnorable(path) {
		return nil
	}

	for _, skip := range skipHashing {
		if strings.Contains(path, skip) {
			return nil
		}
	}

	rel, err := filepath.Rel(filepath.Join(b.c.Src, "static"), path)
	if err != nil {
		return err
	}
	rel = filepath.ToSlash(rel)

	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	b.static["/"+rel] = "/" + formatStaticName(rel, hashHex(buf))

	return nil
}

// formatStaticName returns a hash name that inserts hash before the filename's
// extension. If no extension exists on filename then the hash is appended.
// Returns blank string the original filename if hash is blank. Returns a blank
// string if the filename is blank.
func formatStaticName(filename, hash string) string {
	if filename == "" {
		return ""
	} else if hash == "" {
		return filename
	}

	dir, base := path.Split(filename)
	if i := strings.Index(base, "."); i != -1 {
		return path.Join(dir, fmt.Sprintf("%s-%s%s", base[:i], hash, base[i:]))
	}
	return path.Join(dir, fmt.Sprintf("%s-%s", base, hash))
}

func (b *buildContext) copyStatic(dst string) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || isIgnorable(path) {
			return nil
		}

		rel, err := filepath.Rel(filepath.Join(b.c.Src, "static"), path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		hashed, ok := b.static["/"+rel]
		if !ok {
			hashed = "/" + rel
		}

		buf, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var mediaType string
		switch filepath.Ext(path) {
		case ".css":
			mediaType = "text/css"
		case ".js":
			mediaType = "application/javascript"
		case ".json":
			mediaType = "application/json"
		}
		if mediaType != "" {
			minified, err := b.min.Bytes(mediaType, buf)
			if err != nil {
				return err
			}
			buf = minified
		}

		return writeFile(filepath.Join(dst, filepath.FromSlash(hashed)), buf)
	}
}

func isIgnorable(path string) bool {
	// Ignore files that look like Vim backups.
	if strings.HasSuffix(path, "~") {
		return true
	}

	// Ignore .gitignore files.
	if strings.Contains(path, ".gitignore") {
		return true
	}

	return false
}
