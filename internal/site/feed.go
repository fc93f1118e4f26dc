// © 2022 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"path/filepath"
	"time"

	"github.com/gorilla/feeds"
)

// buildFeed writes an Atom feed of prerendered posts to dst.
func (b *buildContext) buildFeed(dst string) error {
	feed := &feeds.Feed{
		Title:   b.site.Title(),
		Link:    &feeds.Link{Href: b.site.Prefix()},
		Author:  &feeds.Author{Name: b.site.Author()},
		Created: time.Now(),
	}

	if !b.c.feedCreated.IsZero() {
		feed.Created = b.c.feedCreated
	}

	for _, o := range b.outputs {
		p := o.page
		if p.Type != "post" {
			continue
		}

		item := &feeds.Item{
			Title:       p.Title,
			Link:        &feeds.Link{Href: b.site.URL(p.Permalink)},
			Author:      feed.Author,
			Description: p.Summary,
			Content:     string(p.contents),
		}
		if p.Date != nil {
			item.Created = p.Date.Time
		}
		feed.Items = append(feed.Items, item)
	}

	bf, err := feed.ToAtom()
	if err != nil {
		return err
	}
	minified, err := b.min.Bytes("text/xml", []byte(bf))
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dst, "feed.xml"), minified)
}
