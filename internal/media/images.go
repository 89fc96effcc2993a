// Package media downloads the images referenced by crawled pages.
//
// ImageStore is a record sink: every image URL of an emitted page is
// fetched once per process, checked against a minimum size and written to
// <root>/<domain>/<sha1 of the URL><ext>. Images are fetched through the
// same throttled client stack as pages, so politeness limits hold.
package media

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // file names only, not security
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nao1215/domaincrawl/internal/domain"
	"github.com/nao1215/domaincrawl/internal/fetch"
	"github.com/nao1215/domaincrawl/internal/model"
)

const (
	// DefaultMinSize is the smallest width and height kept, in pixels.
	DefaultMinSize = 110

	// DefaultMaxImageSize is the largest image body downloaded.
	DefaultMaxImageSize int64 = 10 * 1024 * 1024
)

var (
	// ErrImageTooSmall is returned for images under the minimum size.
	ErrImageTooSmall = errors.New("image below minimum size")

	// ErrUnsupportedImage is returned when the body is not a decodable
	// JPEG, PNG or GIF image.
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// Fetcher downloads a URL. *fetch.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Counts summarizes what an ImageStore did.
type Counts struct {
	Saved    int64
	TooSmall int64
	Failed   int64
}

// ImageStore downloads page images to disk. It is safe for concurrent use.
type ImageStore struct {
	fetcher   Fetcher
	root      string
	minWidth  int
	minHeight int
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}

	saved    atomic.Int64
	tooSmall atomic.Int64
	failed   atomic.Int64
}

// Option configures an ImageStore.
type Option func(*ImageStore)

// WithMinSize drops images narrower than width or lower than height.
func WithMinSize(width, height int) Option {
	return func(s *ImageStore) {
		s.minWidth = width
		s.minHeight = height
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ImageStore) { s.logger = logger }
}

// NewImageStore returns a store that writes below root.
func NewImageStore(fetcher Fetcher, root string, opts ...Option) *ImageStore {
	s := &ImageStore{
		fetcher:   fetcher,
		root:      root,
		minWidth:  DefaultMinSize,
		minHeight: DefaultMinSize,
		logger:    slog.Default(),
		seen:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Emit downloads the images of record. Failures are logged and counted;
// they never fail the page.
func (s *ImageStore) Emit(ctx context.Context, record *model.PageRecord) error {
	dir := "unknown"
	if d, err := domain.Resolve(record.URL); err == nil {
		dir = d
	}

	for _, imageURL := range record.ImageURLs {
		if ctx.Err() != nil {
			return nil
		}
		if !s.claim(imageURL) {
			continue
		}

		path, err := s.Save(ctx, dir, imageURL)
		switch {
		case err == nil:
			s.saved.Add(1)
			s.logger.Debug("image saved", "url", imageURL, "path", path)
		case errors.Is(err, ErrImageTooSmall):
			s.tooSmall.Add(1)
			s.logger.Debug("image skipped", "url", imageURL, "reason", err)
		case ctx.Err() != nil:
			return nil
		default:
			s.failed.Add(1)
			s.logger.Warn("failed to save image", "url", imageURL, "page", record.URL, "error", err)
		}
	}
	return nil
}

// Counts returns the totals so far.
func (s *ImageStore) Counts() Counts {
	return Counts{
		Saved:    s.saved.Load(),
		TooSmall: s.tooSmall.Load(),
		Failed:   s.failed.Load(),
	}
}

// claim reports whether imageURL has not been handled before.
func (s *ImageStore) claim(imageURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[imageURL]; ok {
		return false
	}
	s.seen[imageURL] = struct{}{}
	return true
}

// Save downloads imageURL into the dir subdirectory and returns the path.
func (s *ImageStore) Save(ctx context.Context, dir, imageURL string) (string, error) {
	resp, err := s.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return "", err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(resp.Body))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mimetype.Detect(resp.Body).String())
	}
	if cfg.Width < s.minWidth || cfg.Height < s.minHeight {
		return "", fmt.Errorf("%w: %dx%d", ErrImageTooSmall, cfg.Width, cfg.Height)
	}

	ext := mimetype.Detect(resp.Body).Extension()
	if ext == "" {
		ext = "." + format
	}
	dest := filepath.Join(s.root, safeSegment(dir), ImageName(imageURL)+ext)
	if err := writeFile(dest, resp.Body); err != nil {
		return "", err
	}
	return dest, nil
}

// ImageName is the file name, without extension, used for imageURL.
func ImageName(imageURL string) string {
	sum := sha1.Sum([]byte(imageURL)) //nolint:gosec // file names only
	return hex.EncodeToString(sum[:])
}

// writeFile writes data to dest through a temporary file in the same
// directory so readers never see a partial image.
func writeFile(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".image-*")
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}

func safeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
