// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"go.astrophena.name/writeups/internal/config"

	"github.com/PuerkitoBio/goquery"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

//go:embed base.css
var baseCSS []byte

// buildStyles processes the entry stylesheet, writes it fingerprinted and
// links it from every page.
func (b *buildContext) buildStyles(s config.Styling) error {
	src, err := os.ReadFile(filepath.Join(b.c.Src, filepath.FromSlash(s.Entry)))
	if err != nil {
		return err
	}

	var stylesheet []byte
	if s.ApplyBaseStyles {
		stylesheet = append(stylesheet, baseCSS...)
		stylesheet = append(stylesheet, '\n')
	}
	stylesheet = append(stylesheet, src...)

	if s.Purge {
		used, err := b.usedClasses()
		if err != nil {
			return err
		}
		stylesheet, err = purgeCSS(stylesheet, used)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Entry, err)
		}
	}

	minified, err := b.min.Bytes("text/css", stylesheet)
	if err != nil {
		return err
	}
	name := "/_styles/" + formatStaticName(path.Base(s.Entry), hashHex(minified))
	b.files[name] = minified

	b.styleLink = fmt.Sprintf(`<link rel="stylesheet" href="%s">`, b.url(name))
	for _, o := range b.outputs {
		o.html = injectHead(o.html, b.styleLink)
	}
	return nil
}

func hashHex(b []byte) string {
	hash := sha256.Sum256(b)
	return hex.EncodeToString(hash[:])
}

// injectHead inserts tag at the end of the document head. Documents without a
// head are returned unchanged.
func injectHead(doc []byte, tag string) []byte {
	i := indexHeadEnd(doc)
	if i == -1 {
		return doc
	}
	out := make([]byte, 0, len(doc)+len(tag))
	out = append(out, doc[:i]...)
	out = append(out, tag...)
	return append(out, doc[i:]...)
}

// indexHeadEnd returns the offset of the first "</head>" in doc, matched
// case-insensitively over ASCII only, or -1.
func indexHeadEnd(doc []byte) int {
	const end = "</head>"
	for i := 0; i+len(end) <= len(doc); {
		j := bytes.Index(doc[i:], []byte("</"))
		if j == -1 || i+j+len(end) > len(doc) {
			return -1
		}
		i += j
		if bytes.EqualFold(doc[i:i+len(end)], []byte(end)) {
			return i
		}
		i += 2
	}
	return -1
}

// usedClasses returns the set of class names used by the site's pages.
// Pages rendered on demand are rendered once here, so that their classes
// survive purging too.
func (b *buildContext) usedClasses() (map[string]bool, error) {
	used := make(map[string]bool)
	collect := func(p *Page, html []byte) error {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
		if err != nil {
			return fmt.Errorf("%s: %w", p.path, err)
		}
		doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
			class, _ := s.Attr("class")
			for _, c := range strings.Fields(class) {
				used[c] = true
			}
		})
		return nil
	}
	for _, o := range b.outputs {
		if err := collect(o.page, o.html); err != nil {
			return nil, err
		}
	}
	for _, p := range b.onDemand {
		out, err := b.render(p)
		if err != nil {
			return nil, err
		}
		if err := collect(p, out); err != nil {
			return nil, err
		}
	}
	return used, nil
}

var cssEscapeRe = regexp.MustCompile(`\\(.)`)

// atRule is an at-rule block that is open while purging.
type atRule struct {
	start  int  // output offset of the at-rule
	body   int  // output offset just past its opening brace
	purged bool // whether a rule inside it was dropped
}

// purgeCSS drops style rules with class selectors that aren't used. A rule
// with several selectors is kept with the selectors that still match
// something. At-rule blocks left empty by purging are dropped as well.
//
// The result is compacted but not minified.
func purgeCSS(src []byte, used map[string]bool) ([]byte, error) {
	var (
		out   bytes.Buffer
		open  []*atRule
		skip  bool
		p     = css.NewParser(parse.NewInput(bytes.NewReader(src)), false)
		write = func(tokens []css.Token) {
			for _, t := range tokens {
				out.Write(t.Data)
			}
		}
	)
	for {
		gt, _, data := p.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != io.EOF {
				return nil, err
			}
			return out.Bytes(), nil
		case css.CommentGrammar:
			// Comments are dropped.
		case css.AtRuleGrammar:
			if !skip {
				out.Write(data)
				write(p.Values())
				out.WriteByte(';')
			}
		case css.BeginAtRuleGrammar:
			r := &atRule{start: out.Len()}
			out.Write(data)
			write(p.Values())
			out.WriteByte('{')
			r.body = out.Len()
			open = append(open, r)
		case css.EndAtRuleGrammar:
			if len(open) == 0 {
				continue
			}
			r := open[len(open)-1]
			open = open[:len(open)-1]
			if r.purged && out.Len() == r.body {
				out.Truncate(r.start)
				if len(open) > 0 {
					open[len(open)-1].purged = true
				}
				continue
			}
			out.WriteByte('}')
		case css.BeginRulesetGrammar:
			sel := usedSelectors(p.Values(), used)
			if sel == "" {
				skip = true
				if len(open) > 0 {
					open[len(open)-1].purged = true
				}
				continue
			}
			out.WriteString(sel)
			out.WriteByte('{')
		case css.EndRulesetGrammar:
			if skip {
				skip = false
				continue
			}
			out.WriteByte('}')
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			if skip {
				continue
			}
			out.Write(data)
			out.WriteByte(':')
			write(p.Values())
			out.WriteByte(';')
		case css.TokenGrammar:
			if !skip {
				out.Write(data)
			}
		}
	}
}

// usedSelectors returns the selectors of the list whose classes are all used,
// joined with commas. Classes inside attribute selectors and functional
// pseudo-classes such as :not() don't count.
func usedSelectors(tokens []css.Token, used map[string]bool) string {
	var (
		kept  []string
		sel   strings.Builder
		keep  = true
		depth int
	)
	flush := func() {
		if keep && sel.Len() > 0 {
			kept = append(kept, sel.String())
		}
		sel.Reset()
		keep = true
	}
	for i, t := range tokens {
		switch t.TokenType {
		case css.LeftBracketToken, css.LeftParenthesisToken, css.FunctionToken:
			depth++
		case css.RightBracketToken, css.RightParenthesisToken:
			depth--
		case css.CommaToken:
			if depth == 0 {
				flush()
				continue
			}
		case css.DelimToken:
			if depth == 0 && string(t.Data) == "." && i+1 < len(tokens) && tokens[i+1].TokenType == css.IdentToken {
				class := cssEscapeRe.ReplaceAllString(string(tokens[i+1].Data), "$1")
				if !used[class] {
					keep = false
				}
			}
		}
		sel.Write(t.Data)
	}
	flush()
	return strings.Join(kept, ",")
}
