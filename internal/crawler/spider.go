package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/domaincrawl/internal/domain"
	"github.com/nao1215/domaincrawl/internal/fetch"
	"github.com/nao1215/domaincrawl/internal/model"
	"github.com/nao1215/domaincrawl/internal/record"
	"github.com/nao1215/domaincrawl/internal/textnorm"
)

const (
	// DefaultConcurrency is the number of pages fetched at once per seed.
	DefaultConcurrency = 8

	// DefaultMaxDepth is the deepest link hop followed from the seed.
	DefaultMaxDepth = 10
)

// Fetcher downloads a URL. *fetch.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Spider crawls one seed at a time in event-driven mode.
//
// Crawl starts a coordinator and up to concurrency workers. The coordinator
// owns the queue of the Frontier: it pops links, hands them to idle workers
// and enqueues the page links the workers report back. Workers own
// everything about a single page: the fetch, text normalization, link
// classification, record building and the emit. Redirect targets are
// claimed by the worker that follows them, through Frontier.MarkVisited,
// so two redirects to one page fetch it once.
//
// A single Spider may run several crawls concurrently; all per-crawl state
// lives in Crawl. The fields are read-only after NewSpider.
type Spider struct {
	fetcher    Fetcher
	extractor  record.DocumentExtractor
	normalizer *textnorm.Normalizer
	logger     *slog.Logger

	// ignore and follow are the site's link patterns. A link matching
	// ignore is rejected unless it also matches follow.
	ignore []string
	follow []string

	// concurrency is the number of workers per crawl.
	concurrency int
	// maxDepth and maxPages bound the Frontier. Negative means unbounded.
	maxDepth int
	maxPages int
	// docsInFlight caps concurrent document extractions for one page.
	docsInFlight int
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithConcurrency sets how many pages of one seed are fetched at once.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) { s.concurrency = n }
}

// WithMaxDepth sets the deepest link hop to follow. 0 crawls the seed only;
// a negative value removes the limit.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) { s.maxDepth = depth }
}

// WithSpiderMaxPages caps the number of pages fetched per seed. 0 means no cap.
func WithSpiderMaxPages(n int) SpiderOption {
	return func(s *Spider) { s.maxPages = n }
}

// WithSitePatterns sets the ignore and follow path globs.
func WithSitePatterns(ignore, follow []string) SpiderOption {
	return func(s *Spider) {
		s.ignore = ignore
		s.follow = follow
	}
}

// WithDocumentExtractor sets the extractor for linked documents.
// Without one, document links are recorded with empty texts.
func WithDocumentExtractor(e record.DocumentExtractor) SpiderOption {
	return func(s *Spider) { s.extractor = e }
}

// WithMaxDocumentsInFlight caps concurrent document extractions per page.
func WithMaxDocumentsInFlight(n int) SpiderOption {
	return func(s *Spider) { s.docsInFlight = n }
}

// WithNormalizer replaces the default text normalizer.
func WithNormalizer(n *textnorm.Normalizer) SpiderOption {
	return func(s *Spider) { s.normalizer = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) { s.logger = logger }
}

// NewSpider creates a Spider that fetches through fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:      fetcher,
		normalizer:   textnorm.New(),
		logger:       slog.Default(),
		concurrency:  DefaultConcurrency,
		maxDepth:     DefaultMaxDepth,
		docsInFlight: record.DefaultMaxInFlight,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

// SeedLink returns the depth 0 page link for a seed URL.
func SeedLink(rawURL string) (Link, error) {
	u, err := resolve(rawURL, "")
	if err != nil {
		return Link{}, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Link{}, fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidSeed, rawURL)
	}
	return Link{URL: u.String(), Kind: KindPage}, nil
}

// pageResult is what a worker reports back to the coordinator.
type pageResult struct {
	link  Link
	links []Link
}

var (
	errRedirectVisited   = errors.New("target already visited")
	errRedirectOffDomain = errors.New("target outside the allowed domain")
)

// Crawl visits every in-scope page reachable from run.Seed and emits one
// record per page through run. It returns when the frontier is exhausted
// and no page is in flight, or ctx is done. Page level failures are counted
// in run.Stats and do not stop the crawl.
func (s *Spider) Crawl(ctx context.Context, run *model.CrawlRun) error {
	allowed := run.Seed.Domain
	if allowed == "" {
		d, err := domain.Resolve(run.Seed.URL)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSeed, err)
		}
		allowed = d
	}

	classifier := NewClassifier(allowed,
		WithIgnorePatterns(s.ignore),
		WithFollowPatterns(s.follow),
		WithClassifierLogger(s.logger),
	)
	frontier := NewFrontier(WithDepthLimit(s.maxDepth), WithMaxPages(s.maxPages))

	seed, err := SeedLink(run.Seed.URL)
	if err != nil {
		return err
	}
	frontier.Offer(seed)

	builder := record.NewBuilder(s.extractor,
		record.WithStats(run.Stats),
		record.WithMaxInFlight(s.docsInFlight),
		record.WithLogger(s.logger),
	)
	w := &worker{
		spider:     s,
		run:        run,
		classifier: classifier,
		builder:    builder,
		allowed:    allowed,
		claim:      frontier.MarkVisited,
	}

	results := make(chan pageResult)
	inFlight := 0
	for {
		for inFlight < s.concurrency && ctx.Err() == nil {
			link, ok := frontier.Next()
			if !ok {
				break
			}
			inFlight++
			go func() {
				results <- w.visit(ctx, link)
			}()
		}
		if inFlight == 0 {
			break
		}

		res := <-results
		inFlight--

		for _, l := range res.links {
			if frontier.Offer(l) {
				run.Stats.HTMLLinksFollowed.Add(1)
			}
		}
	}

	s.logger.Info("crawl finished",
		"entity", run.Seed.EntityID,
		"domain", allowed,
		"pages", run.Stats.PagesEmitted.Load(),
	)
	return ctx.Err()
}

// worker holds the per-crawl collaborators a fetch goroutine needs.
// It only adds redirect targets to the visited set; queueing stays with
// the coordinator.
type worker struct {
	spider     *Spider
	run        *model.CrawlRun
	classifier *Classifier
	builder    *record.Builder
	allowed    string

	// claim inserts a URL into the visited set and reports whether it was
	// new. Exactly one caller wins a given URL.
	claim func(pageURL string) bool
}

// redirectCheck refuses redirects that leave the allowed domain or land on
// a URL another fetch already owns. Targets claimed during this visit stay
// allowed so a retried request can follow them again.
func (w *worker) redirectCheck(link Link) fetch.RedirectCheck {
	origin := NormalizeURL(link.URL)
	owned := map[string]bool{}
	return func(target string) error {
		d, err := domain.Resolve(target)
		if err != nil || d != w.allowed {
			return errRedirectOffDomain
		}
		key := NormalizeURL(target)
		if key == origin || owned[key] {
			return nil
		}
		if !w.claim(target) {
			return errRedirectVisited
		}
		owned[key] = true
		return nil
	}
}

func (w *worker) visit(ctx context.Context, link Link) pageResult {
	res := pageResult{link: link}
	logger := w.spider.logger
	stats := w.run.Stats

	resp, err := w.spider.fetcher.Fetch(fetch.WithRedirectCheck(ctx, w.redirectCheck(link)), link.URL)
	switch {
	case errors.Is(err, errRedirectOffDomain):
		stats.PagesDropped.Add(1)
		logger.Debug("redirect left the allowed domain", "url", link.URL, "error", err)
		return res
	case errors.Is(err, errRedirectVisited):
		stats.PagesSkipped.Add(1)
		logger.Debug("redirect target already visited", "url", link.URL, "error", err)
		return res
	case err != nil:
		if ctx.Err() == nil {
			stats.PagesFailed.Add(1)
			logger.Warn("page fetch failed", "url", link.URL, "error", err)
		}
		return res
	}

	if !resp.IsHTML() {
		stats.PagesSkipped.Add(1)
		logger.Debug("skipping non-HTML response", "url", resp.FinalURL, "type", resp.MediaType())
		return res
	}

	parsed, err := Parse(resp.Body, resp.FinalURL)
	if err != nil {
		stats.PagesFailed.Add(1)
		logger.Warn("page parse failed", "url", resp.FinalURL, "error", err)
		return res
	}

	var documents []string
	for _, href := range parsed.Hrefs {
		l := w.classifier.Classify(href, resp.FinalURL, link.Depth)
		switch l.Kind {
		case KindPage:
			stats.HTMLLinksFound.Add(1)
			res.links = append(res.links, l)
		case KindDocument:
			stats.HTMLLinksFound.Add(1)
			stats.DocumentLinksFound.Add(1)
			documents = append(documents, l.URL)
		case KindScript:
			stats.ScriptLinksFound.Add(1)
		case KindRejected:
			stats.HTMLLinksFound.Add(1)
			stats.Reject(l.Reason)
		}
	}

	rec, err := w.builder.Build(ctx, record.Input{
		URL:          resp.FinalURL,
		EntityID:     w.run.Seed.EntityID,
		Depth:        link.Depth,
		Text:         w.spider.normalizer.Normalize(resp.Body),
		ImageURLs:    parsed.ImageURLs,
		DocumentURLs: documents,
	})
	if err != nil {
		stats.PagesDropped.Add(1)
		logger.Warn("page record dropped", "url", resp.FinalURL, "error", err)
		return res
	}

	if err := w.run.Emit(ctx, rec); err != nil {
		if !errors.Is(err, model.ErrRunClosed) {
			stats.PagesFailed.Add(1)
		}
		logger.Warn("failed to emit page record", "url", resp.FinalURL, "error", err)
	}
	return res
}
