package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseResult holds what the crawler needs from one HTML page.
type ParseResult struct {
	// Hrefs are the raw href attributes of a and area elements in
	// document order. They are classified by the caller.
	Hrefs []string

	// ImageURLs are the absolute img src URLs, first occurrence only.
	ImageURLs []string
}

// Parse extracts anchors and images from body. Image sources are resolved
// against pageURL; data: URIs are skipped.
func Parse(body []byte, pageURL string) (*ParseResult, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	result := &ParseResult{}

	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		result.Hrefs = append(result.Hrefs, href)
	})

	seen := make(map[string]bool)
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
			return
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		result.ImageURLs = append(result.ImageURLs, abs)
	})

	return result, nil
}
