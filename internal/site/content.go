// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"bufio"
	"bytes"
	"strings"

	"go.astrophena.name/writeups/internal/config"

	"github.com/PuerkitoBio/goquery"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"rsc.io/markdown"
)

func newMarkdownParser(m config.Markdown) *markdown.Parser {
	return &markdown.Parser{
		HeadingID:          true,
		Strikethrough:      m.GFM,
		TaskList:           m.GFM,
		AutoLinkText:       m.GFM,
		AutoLinkAssumeHTTP: m.GFM,
		Table:              m.GFM,
		Emoji:              true,
		SmartDot:           m.SmartyPants,
		SmartDash:          m.SmartyPants,
		SmartQuote:         m.SmartyPants,
		Footnote:           true,
	}
}

// newMDX returns the renderer for MDX pages. Raw HTML (and so components
// written as plain HTML elements) is passed through.
func newMDX(m config.Markdown) goldmark.Markdown {
	exts := []goldmark.Extender{extension.Footnote}
	if m.GFM {
		exts = append(exts, extension.GFM)
	}
	if m.SmartyPants {
		exts = append(exts, extension.Typographer)
	}
	return goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
}

// renderContent converts page contents in format f to HTML.
func (b *buildContext) renderContent(f config.Format, src []byte) ([]byte, error) {
	switch f {
	case config.FormatMarkdown:
		doc := b.md.Parse(string(src))
		return []byte(markdown.ToHTML(doc)), nil
	case config.FormatMDX:
		var buf bytes.Buffer
		if err := b.mdx.Convert(stripESM(src), &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return src, nil
}

// stripESM drops the import and export statements MDX allows at the top of a
// document. They have no meaning outside a JavaScript bundler.
func stripESM(src []byte) []byte {
	var (
		out     bytes.Buffer
		inBody  bool
		scanner = bufio.NewScanner(bytes.NewReader(src))
	)
	for scanner.Scan() {
		line := scanner.Text()
		if !inBody {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "export ") {
				continue
			}
			inBody = true
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// highlight replaces fenced code blocks in the HTML fragment src with
// highlighted ones, using the configured theme.
func (b *buildContext) highlight(src []byte) ([]byte, error) {
	if !bytes.Contains(src, []byte("<pre")) {
		return src, nil
	}
	// The content ends up in the page body, so it's parsed in that context.
	// Parsing it as a whole document would move leading <meta>, <style> and
	// similar elements into the head and lose them.
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(src), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	doc := goquery.NewDocumentFromNode(body)

	style := b.site.Markdown().ChromaStyle()
	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4))

	var herr error
	doc.Find("pre > code").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		lexer := lexerFor(codeLanguage(s))
		it, err := lexer.Tokenise(nil, s.Text())
		if err != nil {
			herr = err
			return false
		}
		var buf bytes.Buffer
		if err := formatter.Format(&buf, style, it); err != nil {
			herr = err
			return false
		}
		s.Parent().ReplaceWithHtml(buf.String())
		return true
	})
	if herr != nil {
		return nil, herr
	}

	var out bytes.Buffer
	for n := body.FirstChild; n != nil; n = n.NextSibling {
		if err := html.Render(&out, n); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

func lexerFor(lang string) chroma.Lexer {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

// codeLanguage returns the language of a code element marked up as
// class="language-go".
func codeLanguage(s *goquery.Selection) string {
	class, _ := s.Attr("class")
	for _, c := range strings.Fields(class) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return lang
		}
	}
	return ""
}
