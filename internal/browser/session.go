package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/domaincrawl/internal/crawler"
	"github.com/nao1215/domaincrawl/internal/domain"
	"github.com/nao1215/domaincrawl/internal/model"
	"github.com/nao1215/domaincrawl/internal/record"
	"github.com/nao1215/domaincrawl/internal/textnorm"
)

// Session crawls seeds one link at a time in a real browser.
type Session struct {
	launcher     Launcher
	extractor    record.DocumentExtractor
	normalizer   *textnorm.Normalizer
	logger       *slog.Logger
	ignore       []string
	follow       []string
	maxDepth     int
	maxPages     int
	docsInFlight int
}

// Option configures a Session.
type Option func(*Session)

// WithMaxDepth sets the deepest link hop to follow. Negative means no limit.
func WithMaxDepth(depth int) Option {
	return func(s *Session) { s.maxDepth = depth }
}

// WithMaxPages caps the pages visited per seed. 0 means no cap.
func WithMaxPages(n int) Option {
	return func(s *Session) { s.maxPages = n }
}

// WithSitePatterns sets the ignore and follow path globs.
func WithSitePatterns(ignore, follow []string) Option {
	return func(s *Session) {
		s.ignore = ignore
		s.follow = follow
	}
}

// WithDocumentExtractor sets the extractor for linked documents.
func WithDocumentExtractor(e record.DocumentExtractor) Option {
	return func(s *Session) { s.extractor = e }
}

// WithMaxDocumentsInFlight caps concurrent document extractions per page.
func WithMaxDocumentsInFlight(n int) Option {
	return func(s *Session) { s.docsInFlight = n }
}

// WithNormalizer replaces the default text normalizer.
func WithNormalizer(n *textnorm.Normalizer) Option {
	return func(s *Session) { s.normalizer = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// NewSession returns a Session that opens one browser per seed via launcher.
func NewSession(launcher Launcher, opts ...Option) *Session {
	s := &Session{
		launcher:     launcher,
		normalizer:   textnorm.New(),
		logger:       slog.Default(),
		maxDepth:     crawler.DefaultMaxDepth,
		docsInFlight: record.DefaultMaxInFlight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// scriptLink is a javascript: anchor waiting to be clicked on its source page.
type scriptLink struct {
	fp      Fingerprint
	source  string
	depth   int
	ordinal int
}

// crawl is the state of one Session.Crawl call.
type crawl struct {
	*Session
	run        *model.CrawlRun
	driver     Driver
	classifier *crawler.Classifier
	frontier   *crawler.Frontier
	builder    *record.Builder
	allowed    string
}

// Crawl visits every in-scope page reachable from run.Seed, clicking script
// links on the way. Per-link failures are counted in run.Stats. The
// returned error is non-nil only when the browser was lost, the seed is
// invalid or ctx is done; the browser is released in every case.
func (s *Session) Crawl(ctx context.Context, run *model.CrawlRun) error {
	allowed := run.Seed.Domain
	if allowed == "" {
		d, err := domain.Resolve(run.Seed.URL)
		if err != nil {
			return fmt.Errorf("%w: %w", crawler.ErrInvalidSeed, err)
		}
		allowed = d
	}
	seed, err := crawler.SeedLink(run.Seed.URL)
	if err != nil {
		return err
	}

	driver, err := s.launcher.Launch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrSessionLost) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrSessionLost, err)
	}
	defer func() {
		if cerr := driver.Close(); cerr != nil {
			s.logger.Warn("failed to close browser", "entity", run.Seed.EntityID, "error", cerr)
		}
	}()

	c := &crawl{
		Session: s,
		run:     run,
		driver:  driver,
		classifier: crawler.NewClassifier(allowed,
			crawler.WithIgnorePatterns(s.ignore),
			crawler.WithFollowPatterns(s.follow),
			crawler.WithClassifierLogger(s.logger),
		),
		frontier: crawler.NewFrontier(crawler.WithDepthLimit(s.maxDepth), crawler.WithMaxPages(s.maxPages)),
		builder: record.NewBuilder(s.extractor,
			record.WithStats(run.Stats),
			record.WithMaxInFlight(s.docsInFlight),
			record.WithLogger(s.logger),
		),
		allowed: allowed,
	}
	c.frontier.Offer(seed)

	for ctx.Err() == nil {
		link, ok := c.frontier.Next()
		if !ok {
			break
		}
		if err := c.visit(ctx, link); err != nil {
			return err
		}
	}

	s.logger.Info("browser crawl finished",
		"entity", run.Seed.EntityID,
		"domain", allowed,
		"pages", run.Stats.PagesEmitted.Load(),
		"clicked", run.Stats.ScriptLinksClicked.Load(),
	)
	return ctx.Err()
}

// visit navigates to a page link, records it and clicks its script links.
// Only a lost session or a canceled ctx is returned as an error.
func (c *crawl) visit(ctx context.Context, link crawler.Link) error {
	stats := c.run.Stats

	if err := c.driver.Navigate(ctx, link.URL); err != nil {
		return c.pageFailure(ctx, link.URL, err)
	}
	loc, err := c.driver.Location(ctx)
	if err != nil {
		return c.pageFailure(ctx, link.URL, err)
	}

	if crawler.NormalizeURL(loc) != crawler.NormalizeURL(link.URL) {
		d, err := domain.Resolve(loc)
		if err != nil || d != c.allowed {
			stats.PagesDropped.Add(1)
			c.logger.Debug("navigation left the allowed domain", "url", link.URL, "final", loc)
			return nil
		}
		if !c.frontier.MarkVisited(loc) {
			stats.PagesSkipped.Add(1)
			c.logger.Debug("redirect target already visited", "url", link.URL, "final", loc)
			return nil
		}
	}

	scripts, err := c.capture(ctx, loc, link.URL, link.Depth, true)
	if err != nil {
		return err
	}

	for _, sl := range scripts {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.activate(ctx, sl); err != nil {
			return err
		}
	}
	return nil
}

// capture records the current document as recordURL at depth and offers
// its page links. With collectScripts it returns the script links found.
func (c *crawl) capture(ctx context.Context, pageURL, recordURL string, depth int, collectScripts bool) ([]scriptLink, error) {
	stats := c.run.Stats

	html, err := c.driver.HTML(ctx)
	if err != nil {
		return nil, c.pageFailure(ctx, pageURL, err)
	}
	anchors, err := c.driver.Anchors(ctx)
	if err != nil {
		return nil, c.pageFailure(ctx, pageURL, err)
	}

	body := []byte(html)
	parsed, err := crawler.Parse(body, pageURL)
	if err != nil {
		stats.PagesFailed.Add(1)
		c.logger.Warn("page parse failed", "url", pageURL, "error", err)
		return nil, nil
	}

	var (
		documents []string
		scripts   []scriptLink
	)
	for i, fp := range Fingerprints(anchors) {
		l := c.classifier.Classify(anchors[i].Href, pageURL, depth)
		switch l.Kind {
		case crawler.KindPage:
			stats.HTMLLinksFound.Add(1)
			if c.frontier.Offer(l) {
				stats.HTMLLinksFollowed.Add(1)
			}
		case crawler.KindDocument:
			stats.HTMLLinksFound.Add(1)
			stats.DocumentLinksFound.Add(1)
			documents = append(documents, l.URL)
		case crawler.KindScript:
			stats.ScriptLinksFound.Add(1)
			if collectScripts && (c.maxDepth < 0 || l.Depth <= c.maxDepth) {
				scripts = append(scripts, scriptLink{
					fp:      fp,
					source:  pageURL,
					depth:   l.Depth,
					ordinal: len(scripts),
				})
			}
		case crawler.KindRejected:
			stats.HTMLLinksFound.Add(1)
			stats.Reject(l.Reason)
		}
	}

	rec, err := c.builder.Build(ctx, record.Input{
		URL:          recordURL,
		EntityID:     c.run.Seed.EntityID,
		Depth:        depth,
		Text:         c.normalizer.Normalize(body),
		ImageURLs:    parsed.ImageURLs,
		DocumentURLs: documents,
	})
	if err != nil {
		stats.PagesDropped.Add(1)
		c.logger.Warn("page record dropped", "url", recordURL, "error", err)
		return scripts, nil
	}
	if err := c.run.Emit(ctx, rec); err != nil {
		if !errors.Is(err, model.ErrRunClosed) {
			stats.PagesFailed.Add(1)
		}
		c.logger.Warn("failed to emit page record", "url", recordURL, "error", err)
	}
	return scripts, nil
}

// activate returns to the script link's source page and clicks it. A click
// that leads to a new in-domain URL is recorded as that page. A click that
// only changes the current document is recorded under the source URL with
// a #script-N fragment.
func (c *crawl) activate(ctx context.Context, sl scriptLink) error {
	stats := c.run.Stats
	logger := c.logger.With("source", sl.source, "anchor", sl.fp.Key())

	if err := c.driver.Navigate(ctx, sl.source); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrSessionLost) {
			return err
		}
		stats.ScriptClickFailures.Add(1)
		logger.Warn("failed to reload source page for click", "error", err)
		return nil
	}

	if err := c.click(ctx, sl.fp); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrSessionLost) {
			return err
		}
		stats.ScriptClickFailures.Add(1)
		logger.Warn("script link left unclicked", "error", err)
		return nil
	}
	stats.ScriptLinksClicked.Add(1)

	loc, err := c.driver.Location(ctx)
	if err != nil {
		return c.pageFailure(ctx, sl.source, err)
	}

	recordURL := loc
	if crawler.NormalizeURL(loc) == crawler.NormalizeURL(sl.source) {
		recordURL = fmt.Sprintf("%s#script-%d", crawler.NormalizeURL(sl.source), sl.ordinal)
	} else {
		d, err := domain.Resolve(loc)
		if err != nil || d != c.allowed {
			stats.PagesDropped.Add(1)
			logger.Debug("click left the allowed domain", "final", loc)
			return nil
		}
		if !c.frontier.MarkVisited(loc) {
			stats.PagesSkipped.Add(1)
			logger.Debug("click target already visited", "final", loc)
			return nil
		}
	}
	_, err = c.capture(ctx, loc, recordURL, sl.depth, false)
	return err
}

// click tries the native click and, once, the alternate strategy.
func (c *crawl) click(ctx context.Context, fp Fingerprint) error {
	err := c.driver.Click(ctx, fp)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSessionLost) || ctx.Err() != nil {
		return err
	}
	c.logger.Debug("native click failed, trying alternate", "anchor", fp.Key(), "error", err)

	altErr := c.driver.ClickAlternate(ctx, fp)
	if altErr == nil {
		return nil
	}
	if errors.Is(altErr, ErrSessionLost) {
		return altErr
	}
	return fmt.Errorf("%w: %w", ErrInteraction, errors.Join(err, altErr))
}

// pageFailure counts a failed page and passes a lost session or a
// canceled ctx through.
func (c *crawl) pageFailure(ctx context.Context, pageURL string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, ErrSessionLost) {
		c.logger.Error("browser session lost", "entity", c.run.Seed.EntityID, "url", pageURL, "error", err)
		return err
	}
	c.run.Stats.PagesFailed.Add(1)
	c.logger.Warn("page load failed", "url", pageURL, "error", err)
	return nil
}
