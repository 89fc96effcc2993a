package document

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nao1215/domaincrawl/internal/domain"
	"github.com/nao1215/domaincrawl/internal/fetch"
	"github.com/nao1215/domaincrawl/internal/model"
)

// Fetcher downloads a URL. *fetch.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Extractor downloads documents and extracts their text.
// It is safe for concurrent use.
//
// The backend is chosen by the extension of the final URL, after
// redirects. Extensionless URLs are sniffed with mimetype. The body is
// written to a temporary file because the PDF and antiword backends read
// from a path; the file is removed before Extract returns. A backend panic
// is turned into an ErrExtraction error.
//
// With an ArtifactStore the text is also written to
// <root>/<domain>/<name>.txt, and with WithOriginals the downloaded bytes
// are kept next to it.
type Extractor struct {
	fetcher Fetcher
	// backends maps a lower-case extension with its dot to a Backend.
	backends map[string]Backend
	// store is nil when artifacts are not written.
	store *ArtifactStore
	// keepRaw also writes the downloaded body through store.
	keepRaw bool
	// tempDir holds the temporary files. "" means os.TempDir.
	tempDir string
	logger  *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithBackend registers b for ext (for example ".pdf"), replacing any
// built-in backend.
func WithBackend(ext string, b Backend) Option {
	return func(e *Extractor) { e.backends[strings.ToLower(ext)] = b }
}

// WithArtifactStore writes every extracted document to store.
func WithArtifactStore(store *ArtifactStore) Option {
	return func(e *Extractor) { e.store = store }
}

// WithOriginals also stores the downloaded file of every extracted
// document in the artifact store. It has no effect without one.
func WithOriginals() Option {
	return func(e *Extractor) { e.keepRaw = true }
}

// WithTempDir sets the directory for downloaded files. The default is
// os.TempDir.
func WithTempDir(dir string) Option {
	return func(e *Extractor) { e.tempDir = dir }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// NewExtractor returns an Extractor that downloads through fetcher.
func NewExtractor(fetcher Fetcher, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher:  fetcher,
		backends: defaultBackends(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract downloads documentURL, linked from parentPageURL, and returns its
// text. The format is taken from the final URL's extension or, when there is
// none, sniffed from the content.
func (e *Extractor) Extract(ctx context.Context, documentURL, parentPageURL string) (*model.ExtractedDocument, error) {
	resp, err := e.fetcher.Fetch(ctx, documentURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download document: %w", err)
	}

	finalURL := resp.FinalURL
	if finalURL == "" {
		finalURL = documentURL
	}

	ext, err := e.format(finalURL, resp.Body)
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrExtraction, finalURL)
	}

	text, err := e.extractFile(ctx, ext, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExtraction, finalURL, err)
	}

	doc := &model.ExtractedDocument{
		SourceURL:     documentURL,
		FinalURL:      finalURL,
		ParentPageURL: parentPageURL,
		Domain:        parentDomain(parentPageURL, finalURL),
		Text:          StripControl(text),
	}

	if e.store != nil {
		if err := e.store.Write(doc); err != nil {
			e.logger.Warn("failed to write document artifact", "url", finalURL, "error", err)
		}
		if e.keepRaw {
			if err := e.store.WriteOriginal(doc, ext, resp.Body); err != nil {
				e.logger.Warn("failed to keep document file", "url", finalURL, "error", err)
			}
		}
	}
	return doc, nil
}

// format returns the extension whose backend handles the document.
func (e *Extractor) format(finalURL string, body []byte) (string, error) {
	ext := ""
	if u, err := url.Parse(finalURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}

	if ext == "" {
		sniffed := mimetype.Detect(body)
		if _, ok := e.backends[sniffed.Extension()]; !ok {
			return "", fmt.Errorf("%w: %s detected for %s", ErrUnsupportedFormat, sniffed.String(), finalURL)
		}
		return sniffed.Extension(), nil
	}

	if _, ok := e.backends[ext]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return ext, nil
}

// extractFile stores body in a temporary file and runs the backend on it.
// The file is removed before returning.
func (e *Extractor) extractFile(ctx context.Context, ext string, body []byte) (text string, err error) {
	tmp, err := os.CreateTemp(e.tempDir, "domaincrawl-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // best effort cleanup

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return e.backends[ext].ExtractText(ctx, tmp.Name())
}

// parentDomain names the artifact directory: the parent page's registrable
// domain, or the document's when the parent is unusable.
func parentDomain(parentURL, docURL string) string {
	if d, err := domain.Resolve(parentURL); err == nil {
		return d
	}
	if d, err := domain.Resolve(docURL); err == nil {
		return d
	}
	return "unknown"
}
