package record

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/domaincrawl/internal/model"
)

// DefaultMaxInFlight is the default number of concurrent extractions per page.
const DefaultMaxInFlight = 4

// DocumentExtractor turns a linked document into text.
// *document.Extractor implements it.
type DocumentExtractor interface {
	Extract(ctx context.Context, documentURL, parentPageURL string) (*model.ExtractedDocument, error)
}

// Input is everything known about a page once it has been fetched and parsed.
type Input struct {
	URL          string
	EntityID     string
	Depth        int
	Text         string
	ImageURLs    []string
	DocumentURLs []string
}

// Builder builds page records for one crawl run. It is safe for concurrent use.
//
// Each document URL is extracted once per Builder. The first page that
// links a document runs the extraction; later pages wait for that result
// instead of downloading it again. A failed extraction is cached as empty
// text too, so a broken document costs one attempt per run.
//
// Build fans out the extractions of one page under maxInFlight and joins
// them before returning, so a record never leaves the Builder with texts
// still being filled in.
type Builder struct {
	// extractor may be nil, in which case every document text is empty.
	extractor DocumentExtractor
	// stats receives DocumentsExtracted and DocumentsFailed.
	stats       *model.Stats
	logger      *slog.Logger
	maxInFlight int

	mu sync.Mutex
	// cache is keyed by document URL exactly as it appeared on the page.
	cache map[string]*cachedDocument
}

// cachedDocument is a document extraction shared by every page linking it.
// done is closed once text is final.
type cachedDocument struct {
	done chan struct{}
	text string
}

// Option configures a Builder.
type Option func(*Builder)

// WithStats makes the Builder count extracted and failed documents.
func WithStats(stats *model.Stats) Option {
	return func(b *Builder) { b.stats = stats }
}

// WithMaxInFlight caps concurrent extractions within one Build call.
func WithMaxInFlight(n int) Option {
	return func(b *Builder) { b.maxInFlight = n }
}

// WithLogger sets the logger used for extraction failures.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// NewBuilder returns a Builder that extracts documents with extractor.
// A nil extractor yields empty texts for every document.
func NewBuilder(extractor DocumentExtractor, opts ...Option) *Builder {
	b := &Builder{
		extractor:   extractor,
		stats:       &model.Stats{},
		logger:      slog.Default(),
		maxInFlight: DefaultMaxInFlight,
		cache:       make(map[string]*cachedDocument),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxInFlight < 1 {
		b.maxInFlight = 1
	}
	return b
}

// Build extracts the documents of in and returns the page record.
// It returns only after every extraction it started has finished.
// Failed extractions leave an empty text at their index.
func (b *Builder) Build(ctx context.Context, in Input) (*model.PageRecord, error) {
	if in.EntityID == "" {
		return nil, ErrMissingEntity
	}

	fileURLs := dedupe(in.DocumentURLs)
	fileTexts := make([]string, len(fileURLs))

	var g errgroup.Group
	g.SetLimit(b.maxInFlight)
	for i, docURL := range fileURLs {
		g.Go(func() error {
			fileTexts[i] = b.extract(ctx, docURL, in.URL)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // extraction errors are recorded per document

	imageURLs := in.ImageURLs
	if imageURLs == nil {
		imageURLs = []string{}
	}

	return &model.PageRecord{
		URL:       in.URL,
		EntityID:  in.EntityID,
		Depth:     in.Depth,
		Text:      in.Text,
		ImageURLs: imageURLs,
		FileURLs:  fileURLs,
		FileTexts: fileTexts,
	}, nil
}

// extract returns the text of docURL, extracting it at most once per Builder.
func (b *Builder) extract(ctx context.Context, docURL, parentURL string) string {
	b.mu.Lock()
	entry, ok := b.cache[docURL]
	if !ok {
		entry = &cachedDocument{done: make(chan struct{})}
		b.cache[docURL] = entry
	}
	b.mu.Unlock()

	if ok {
		select {
		case <-entry.done:
			return entry.text
		case <-ctx.Done():
			return ""
		}
	}

	defer close(entry.done)
	if b.extractor == nil {
		return ""
	}

	doc, err := b.extractor.Extract(ctx, docURL, parentURL)
	if err != nil {
		b.stats.DocumentsFailed.Add(1)
		b.logger.Warn("document extraction failed", "url", docURL, "page", parentURL, "error", err)
		return ""
	}
	b.stats.DocumentsExtracted.Add(1)
	entry.text = doc.Text
	return entry.text
}

// dedupe drops repeated URLs, keeping first-seen order.
func dedupe(urls []string) []string {
	out := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
