package crawler

import "github.com/nao1215/domaincrawl/internal/model"

// Kind is what a classified link points to.
type Kind int

const (
	// KindRejected links are dropped. Link.Reason says why.
	KindRejected Kind = iota
	// KindPage links are HTML pages that enter the frontier.
	KindPage
	// KindDocument links are PDF or Word files handed to the extractor.
	KindDocument
	// KindScript links are javascript: hrefs, reachable only by clicking.
	KindScript
)

// String returns the lowercase name of k.
func (k Kind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindPage:
		return "page"
	case KindDocument:
		return "document"
	case KindScript:
		return "script"
	default:
		return "unknown"
	}
}

// Link is a classified href.
type Link struct {
	// URL is the absolute URL without fragment. For script links it is the
	// raw href.
	URL string

	// SourceURL is the page the href was found on.
	SourceURL string

	// Depth is the source page's depth plus one.
	Depth int

	Kind Kind

	// Reason is set when Kind is KindRejected.
	Reason model.RejectReason

	// Err is the cause of a rejection, when there is one.
	Err error

	// Fingerprint identifies the anchor element of a script link so it can
	// be found again after the DOM changes. Set by the browser session.
	Fingerprint string
}

// Followable reports whether l may enter the frontier.
func (l Link) Followable() bool {
	return l.Kind == KindPage
}
