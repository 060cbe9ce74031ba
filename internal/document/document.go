// Package document parses fetched HTML and yields its outbound links.
package document

import (
	"bytes"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed page. Its link sequence may be consumed once.
type Document struct {
	url  string
	base *url.URL
	dom  *goquery.Document
	used atomic.Bool
}

// Parse reads an HTML body fetched from pageURL. Relative links resolve
// against <base href> when present, otherwise against pageURL.
func Parse(pageURL string, body []byte) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url %q: %w", pageURL, err)
	}
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", pageURL, err)
	}
	if href, ok := dom.Find("base[href]").First().Attr("href"); ok {
		if ref, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = ref
		}
	}
	return &Document{url: pageURL, base: base, dom: dom}, nil
}

// Empty returns a document for pageURL with no links, used for non-HTML
// responses.
func Empty(pageURL string) *Document {
	return &Document{url: pageURL}
}

// URL is the address the document was fetched from.
func (d *Document) URL() string {
	return d.url
}

// Links yields absolute http(s) links in document order, resolving each
// anchor only as the consumer pulls it. Duplicates are not removed. A second
// iteration yields nothing.
func (d *Document) Links() iter.Seq[string] {
	return func(yield func(string) bool) {
		if d.dom == nil || !d.used.CompareAndSwap(false, true) {
			return
		}
		d.dom.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			link, ok := d.resolve(href)
			if !ok {
				return true
			}
			return yield(link)
		})
	}
}

func (d *Document) resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := d.base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}
	return abs.String(), true
}
