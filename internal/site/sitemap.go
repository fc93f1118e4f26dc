// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.astrophena.name/writeups/internal/config"

	"github.com/PuerkitoBio/goquery"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	NS      string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	NS       string       `xml:"xmlns,attr"`
	Sitemaps []sitemapRef `xml:"sitemap"`
}

type sitemapRef struct {
	Loc string `xml:"loc"`
}

// buildSitemap writes sitemap-index.xml and sitemap-N.xml files listing the
// absolute URLs of prerendered pages.
func (b *buildContext) buildSitemap(s config.Sitemap) error {
	var urls []sitemapURL
	for _, o := range b.outputs {
		if routeKey(o.page.Permalink) == "/404" || s.Excluded(o.page.Permalink) {
			continue
		}
		noindex, err := isNoindex(o.html)
		if err != nil {
			return fmt.Errorf("%s: %w", o.page.path, err)
		}
		if noindex {
			continue
		}

		u := sitemapURL{
			Loc:        b.site.URL(o.page.Permalink),
			ChangeFreq: s.ChangeFreq,
		}
		if o.page.Date != nil {
			u.LastMod = o.page.Date.Format(dateLayout)
		}
		if s.Priority != nil {
			u.Priority = strconv.FormatFloat(*s.Priority, 'f', 1, 64)
		}
		urls = append(urls, u)
	}
	sort.Slice(urls, func(i, j int) bool { return urls[i].Loc < urls[j].Loc })

	limit := s.EntryLimit
	if limit <= 0 {
		limit = config.DefaultEntryLimit
	}
	index := sitemapIndex{NS: sitemapNS}
	for n, i := 0, 0; i < len(urls) || n == 0; n, i = n+1, i+limit {
		end := i + limit
		if end > len(urls) {
			end = len(urls)
		}
		chunk := urls[i:end]
		name := fmt.Sprintf("/sitemap-%d.xml", n)
		data, err := marshalXML(urlset{NS: sitemapNS, URLs: chunk})
		if err != nil {
			return err
		}
		b.files[name] = data
		index.Sitemaps = append(index.Sitemaps, sitemapRef{Loc: b.site.URL(name)})
	}

	data, err := marshalXML(index)
	if err != nil {
		return err
	}
	b.files["/sitemap-index.xml"] = data
	b.sitemapURL = b.site.URL("/sitemap-index.xml")
	return nil
}

func marshalXML(v any) ([]byte, error) {
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(data, '\n')...), nil
}

// isNoindex reports whether the page asks search engines not to index it.
func isNoindex(page []byte) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return false, err
	}
	var noindex bool
	doc.Find(`meta[name="robots"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content, _ := s.Attr("content")
		noindex = strings.Contains(strings.ToLower(content), "noindex")
		return !noindex
	})
	return noindex, nil
}
