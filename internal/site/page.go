// © 2022 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	ttemplate "text/template"
	"time"

	"go.astrophena.name/writeups/internal/config"
)

// Page represents a site page. The exported fields is the front matter fields.
type Page struct {
	Title       string            `json:"title"`                 // title: Page title, required.
	Permalink   string            `json:"permalink"`             // permalink: Output path for the page, required.
	Template    string            `json:"template"`              // template: Template that should be used for rendering this page, required.
	Date        *date             `json:"date,omitempty"`        // date: Publication date in the 'year-month-day' format, e.g. 2006-01-02, optional.
	Draft       bool              `json:"draft,omitempty"`       // draft: Determines whether this page should be not included in production builds, false by default.
	MetaTags    map[string]string `json:"meta_tags,omitempty"`   // meta_tags: Determines additional HTML meta tags that will be added to this page, optional.
	Summary     string            `json:"summary,omitempty"`     // summary: Page summary, used in Atom feed, optional.
	Description string            `json:"description,omitempty"` // description: Page description for the meta description tag, optional.
	Type        string            `json:"type,omitempty"`        // type: Used to distinguish different kinds of pages, page by default.
	CSS         []string          `json:"css,omitempty"`         // css: Additional CSS files that should be loaded, optional.
	JS          []string          `json:"js,omitempty"`          // js: Additional JavaScript files that should be loaded, optional.
	Prerender   *bool             `json:"prerender,omitempty"`   // prerender: Whether the page is built ahead of time; the default depends on the output mode.

	path      string        // path to the page source
	format    config.Format // source format
	dstPath   string        // where to write the built page
	prerender bool          // built ahead of time
	contents  []byte        // page contents without front matter
}

type date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d *date) UnmarshalJSON(p []byte) error {
	s := strings.Trim(string(p), "\"")
	if s == "null" {
		d.Time = time.Time{}
		return nil
	}

	dt, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = dt

	return nil
}

func (p *Page) parse(site *config.Config, r io.Reader) error {
	// Check that format of the page is supported.
	f, ok := site.ContentFormat(filepath.Ext(p.path))
	if !ok {
		return fmt.Errorf("%s: %w", p.path, errFormatUnsupported)
	}
	p.format = f.Format

	const (
		leftDelim  = "{\n"
		rightDelim = "}\n"
	)

	// Split the front matter and contents.
	scanner := bufio.NewScanner(r)
	var (
		frontmatter, contents []byte
		reachedFrontmatter    bool
		reachedContents       bool
	)
	for scanner.Scan() {
		line := scanner.Text() + "\n"

		if !reachedContents {
			if line == leftDelim {
				reachedFrontmatter = true
			}

			if line == rightDelim {
				reachedFrontmatter = false
				frontmatter = append(frontmatter, line...)
				reachedContents = true
				continue
			}
		}

		if reachedFrontmatter {
			frontmatter = append(frontmatter, line...)
			continue
		}

		if reachedContents {
			contents = append(contents, line...)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %w: %v", p.path, errFrontmatterSplit, err)
	}
	if len(frontmatter) == 0 {
		return fmt.Errorf("%s: %w", p.path, errFrontmatterMissing)
	}
	p.contents = contents

	// Parse the front matter.
	if err := json.Unmarshal(frontmatter, p); err != nil {
		return fmt.Errorf("%s: %w: %v", p.path, errFrontmatterParse, err)
	}
	// Set the default page type.
	if p.Type == "" {
		p.Type = "page"
	}

	// Check front matter fields.
	if p.Title == "" || p.Template == "" || p.Permalink == "" {
		return fmt.Errorf("%s: %w", p.path, errFrontmatterMissingParam)
	}
	if _, err := url.ParseRequestURI(p.Permalink); err != nil {
		return fmt.Errorf("%s: %w: %v", p.path, errPermalinkInvalid, err)
	}
	if strings.Contains(p.Permalink, "..") {
		return fmt.Errorf("%s: %w: %q escapes the site root", p.path, errPermalinkInvalid, p.Permalink)
	}

	if site.Output() == config.Static && p.Prerender != nil && !*p.Prerender {
		return fmt.Errorf("%s: %w", p.path, errPrerenderStatic)
	}
	p.prerender = site.Output().Prerender(p.Prerender)
	p.dstPath = dstPath(p.Permalink, site.Format())

	return nil
}

// dstPath returns where the page with permalink is written in the output
// tree.
func dstPath(permalink string, format config.BuildFormat) string {
	p := permalink
	switch {
	case strings.HasSuffix(p, ".html"):
	case p == "/":
		p = "/index.html"
	case routeKey(p) == "/404":
		// Servers look for 404.html, whatever the format.
		p = "/404.html"
	case format == config.FormatFile:
		p = strings.TrimSuffix(p, "/") + ".html"
	default:
		p = strings.TrimSuffix(p, "/") + "/index.html"
	}
	return path.Clean(p)
}

var htmlCommentRe = regexp.MustCompile("<!--(.*?)-->")

func (p *Page) build(b *buildContext, tpl *template.Template, w io.Writer) error {
	// We use here text/template, but not html/template because we don't want to
	// escape any HTML on the Markdown source.
	ptpl, err := ttemplate.New(p.path).Funcs(ttemplate.FuncMap(b.funcs)).Parse(string(p.contents))
	if err != nil {
		return err
	}
	var pbuf bytes.Buffer
	if err = ptpl.Execute(&pbuf, p); err != nil {
		return fmt.Errorf("%s: failed to execute page template: %w", p.path, err)
	}
	p.contents = pbuf.Bytes()

	p.contents, err = b.renderContent(p.format, p.contents)
	if err != nil {
		return fmt.Errorf("%s: failed to render %s: %w", p.path, p.format, err)
	}

	if b.site.Markdown().SyntaxHighlight && p.format != config.FormatHTML {
		p.contents, err = b.highlight(p.contents)
		if err != nil {
			return fmt.Errorf("%s: failed to highlight code: %w", p.path, err)
		}
	}

	p.contents = htmlCommentRe.ReplaceAll(p.contents, []byte{})

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, p); err != nil {
		return fmt.Errorf("%s: failed to execute template %q: %w", p.path, p.Template, err)
	}

	_, err = w.Write(buf.Bytes())
	return err
}
