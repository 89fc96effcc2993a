package crawler

import "sync"

// VisitedSet is an insert-only set of normalized URLs.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Add inserts pageURL and reports whether it was new.
// The check and the insert happen under one lock.
func (v *VisitedSet) Add(pageURL string) bool {
	key := NormalizeURL(pageURL)

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.urls[key]; ok {
		return false
	}
	v.urls[key] = struct{}{}
	return true
}

// Frontier is the FIFO of pages still to visit.
//
// A link enters the queue at most once. Offer marks it visited and
// enqueues it in one step. It refuses links that are not pages, are too
// deep, are over the page budget or were already visited. MarkVisited claims a URL without queueing it, which
// is how redirect targets and browser-discovered locations are recorded.
// Every method is safe for concurrent use.
type Frontier struct {
	visited *VisitedSet
	// maxDepth refuses links with a larger Depth. Negative disables it.
	maxDepth int
	// maxPages caps the number of accepted links. Zero or negative
	// disables it.
	maxPages int

	mu    sync.Mutex
	queue []Link
	// accepted counts links ever pushed, so popping does not free budget.
	accepted int
}

// FrontierOption configures a Frontier.
type FrontierOption func(*Frontier)

// WithDepthLimit refuses links deeper than n. Negative n means no limit.
func WithDepthLimit(n int) FrontierOption {
	return func(f *Frontier) { f.maxDepth = n }
}

// WithMaxPages stops accepting links after n have been accepted.
// Zero or negative n means no limit.
func WithMaxPages(n int) FrontierOption {
	return func(f *Frontier) { f.maxPages = n }
}

// NewFrontier returns an empty Frontier with its own VisitedSet.
func NewFrontier(opts ...FrontierOption) *Frontier {
	f := &Frontier{
		visited:  NewVisitedSet(),
		maxDepth: -1,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Offer enqueues link if it is a page, within the limits and not yet visited.
// A refused link leaves the Frontier unchanged.
func (f *Frontier) Offer(link Link) bool {
	if !link.Followable() {
		return false
	}
	if f.maxDepth >= 0 && link.Depth > f.maxDepth {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.maxPages > 0 && f.accepted >= f.maxPages {
		return false
	}
	if !f.visited.Add(link.URL) {
		return false
	}
	f.accepted++
	f.queue = append(f.queue, link)
	return true
}

// Next dequeues the oldest link. It returns false when the queue is empty.
func (f *Frontier) Next() (Link, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return Link{}, false
	}
	link := f.queue[0]
	f.queue[0] = Link{}
	f.queue = f.queue[1:]
	return link, true
}

// MarkVisited records pageURL without queueing it, typically the target
// of a redirect. It reports whether pageURL was new, so concurrent callers
// can agree on a single owner.
func (f *Frontier) MarkVisited(pageURL string) bool {
	return f.visited.Add(pageURL)
}
