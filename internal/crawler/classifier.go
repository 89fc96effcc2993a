package crawler

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/domaincrawl/internal/domain"
	"github.com/nao1215/domaincrawl/internal/model"
)

// documentExtensions are the file types handed to the document extractor.
var documentExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

// deniedExtensions are file types that are never fetched.
var deniedExtensions = func() map[string]bool {
	exts := []string{
		// images
		"mng", "pct", "bmp", "gif", "jpg", "jpeg", "png", "pst", "psp", "tif",
		"tiff", "ai", "drw", "dxf", "eps", "ps", "svg", "cdr", "ico", "webp",
		// audio
		"mp3", "wma", "ogg", "wav", "ra", "aac", "mid", "au", "aiff",
		// video
		"3gp", "asf", "asx", "avi", "mov", "mp4", "mpg", "qt", "rm", "swf",
		"wmv", "m4a", "m4v", "flv", "webm",
		// office formats other than doc and docx
		"xls", "xlsx", "ppt", "pptx", "pps", "odt", "ods", "odg", "odp",
		// archives
		"7z", "7zip", "bz2", "rar", "tar", "tgz", "gz", "xz", "zip",
		// stylesheets and fonts
		"css", "woff", "woff2", "ttf", "otf", "eot",
		// other
		"exe", "bin", "rss", "dmg", "iso", "apk", "msi", "deb", "rpm",
	}
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m["."+e] = true
	}
	return m
}()

// rejectedSchemes are href prefixes that never lead to a crawlable page.
var rejectedSchemes = []string{"mailto:", "tel:", "data:"}

// Classifier sorts raw hrefs for one crawl. The allowed domain is fixed at
// construction. A Classifier is safe for concurrent use.
type Classifier struct {
	domain string
	filter patternFilter
	logger *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithIgnorePatterns rejects links whose path matches any glob.
func WithIgnorePatterns(patterns []string) ClassifierOption {
	return func(c *Classifier) { c.filter.ignore = patterns }
}

// WithFollowPatterns accepts only links whose path matches one of the globs.
func WithFollowPatterns(patterns []string) ClassifierOption {
	return func(c *Classifier) { c.filter.follow = patterns }
}

// WithClassifierLogger sets the logger rejections are reported to.
func WithClassifierLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) { c.logger = logger }
}

// NewClassifier returns a Classifier that keeps links on allowedDomain.
func NewClassifier(allowedDomain string, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		domain: strings.ToLower(allowedDomain),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Domain returns the allowed registrable domain.
func (c *Classifier) Domain() string {
	return c.domain
}

// Classify resolves rawHref against sourceURL and decides what it is.
// depth is the depth of the source page.
func (c *Classifier) Classify(rawHref, sourceURL string, depth int) Link {
	link := Link{SourceURL: sourceURL, Depth: depth + 1}
	href := strings.TrimSpace(rawHref)
	lower := strings.ToLower(href)

	if strings.HasPrefix(lower, "javascript:") {
		link.URL = href
		link.Kind = KindScript
		return link
	}
	if href == "#" {
		return c.reject(link, href, model.ReasonScheme, nil)
	}
	for _, scheme := range rejectedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return c.reject(link, href, model.ReasonScheme, nil)
		}
	}

	resolved, err := resolve(sourceURL, href)
	if err != nil {
		return c.reject(link, href, model.ReasonMalformed, err)
	}
	link.URL = resolved.String()

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return c.reject(link, href, model.ReasonScheme, nil)
	}

	d, err := domain.Resolve(link.URL)
	if err != nil {
		return c.reject(link, href, model.ReasonMalformed, err)
	}
	if d != c.domain {
		return c.reject(link, href, model.ReasonOutOfScope, fmt.Errorf("%w: %s", ErrOutOfScope, d))
	}

	ext := strings.ToLower(path.Ext(resolved.Path))
	if deniedExtensions[ext] {
		return c.reject(link, href, model.ReasonDeniedExtension, nil)
	}
	if !c.filter.allows(resolved.Path) {
		return c.reject(link, href, model.ReasonPattern, nil)
	}

	if documentExtensions[ext] {
		link.Kind = KindDocument
	} else {
		link.Kind = KindPage
	}
	return link
}

func (c *Classifier) reject(link Link, href string, reason model.RejectReason, err error) Link {
	link.Kind = KindRejected
	link.Reason = reason
	link.Err = err
	if link.URL == "" {
		link.URL = href
	}
	c.logger.Debug("link rejected", "href", href, "source", link.SourceURL, "reason", string(reason))
	return link
}

// resolve makes href absolute against base and drops the fragment.
func resolve(base, href string) (*url.URL, error) {
	b, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%w: source %q: %v", domain.ErrMalformedURL, base, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", domain.ErrMalformedURL, href, err)
	}

	u := b.ResolveReference(ref)
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u, nil
}
