package record

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/domaincrawl/internal/model"
)

// fakeExtractor returns "text of <url>" and fails for URLs in fail.
type fakeExtractor struct {
	fail  map[string]bool
	delay time.Duration

	mu       sync.Mutex
	calls    map[string]int
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{fail: map[string]bool{}, calls: map[string]int{}}
}

func (f *fakeExtractor) Extract(_ context.Context, docURL, parent string) (*model.ExtractedDocument, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[docURL]++
	f.mu.Unlock()

	time.Sleep(f.delay)
	if f.fail[docURL] {
		return nil, errors.New("boom")
	}
	return &model.ExtractedDocument{SourceURL: docURL, ParentPageURL: parent, Text: "text of " + docURL}, nil
}

func (f *fakeExtractor) callCount(docURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[docURL]
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("missing entity is rejected", func(t *testing.T) {
		t.Parallel()

		b := NewBuilder(newFakeExtractor())
		_, err := b.Build(context.Background(), Input{URL: "http://example.org/"})
		assert.ErrorIs(t, err, ErrMissingEntity)
	})

	t.Run("file texts line up with file URLs", func(t *testing.T) {
		t.Parallel()

		ext := newFakeExtractor()
		ext.fail["http://example.org/b.pdf"] = true
		stats := &model.Stats{}
		b := NewBuilder(ext, WithStats(stats))

		rec, err := b.Build(context.Background(), Input{
			URL:      "http://example.org/",
			EntityID: "42",
			Depth:    1,
			Text:     "hello",
			DocumentURLs: []string{
				"http://example.org/a.pdf",
				"http://example.org/b.pdf",
				"http://example.org/c.docx",
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "http://example.org/", rec.URL)
		assert.Equal(t, "42", rec.EntityID)
		assert.Equal(t, 1, rec.Depth)
		assert.Equal(t, "hello", rec.Text)
		assert.Equal(t, []string{
			"http://example.org/a.pdf",
			"http://example.org/b.pdf",
			"http://example.org/c.docx",
		}, rec.FileURLs)
		assert.Equal(t, []string{
			"text of http://example.org/a.pdf",
			"",
			"text of http://example.org/c.docx",
		}, rec.FileTexts)
		assert.Equal(t, int64(2), stats.DocumentsExtracted.Load())
		assert.Equal(t, int64(1), stats.DocumentsFailed.Load())
	})

	t.Run("duplicate documents on a page collapse", func(t *testing.T) {
		t.Parallel()

		ext := newFakeExtractor()
		b := NewBuilder(ext)
		rec, err := b.Build(context.Background(), Input{
			URL:          "http://example.org/",
			EntityID:     "1",
			DocumentURLs: []string{"http://example.org/a.pdf", "http://example.org/a.pdf"},
		})
		require.NoError(t, err)
		assert.Len(t, rec.FileURLs, 1)
		assert.Len(t, rec.FileTexts, 1)
		assert.Equal(t, 1, ext.callCount("http://example.org/a.pdf"))
	})

	t.Run("documents shared across pages are extracted once", func(t *testing.T) {
		t.Parallel()

		ext := newFakeExtractor()
		ext.delay = 10 * time.Millisecond
		b := NewBuilder(ext)

		var wg sync.WaitGroup
		for _, page := range []string{"http://example.org/x", "http://example.org/y", "http://example.org/z"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec, err := b.Build(context.Background(), Input{
					URL:          page,
					EntityID:     "1",
					DocumentURLs: []string{"http://example.org/shared.pdf"},
				})
				assert.NoError(t, err)
				assert.Equal(t, []string{"text of http://example.org/shared.pdf"}, rec.FileTexts)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, ext.callCount("http://example.org/shared.pdf"))
	})

	t.Run("extractions respect the in-flight cap", func(t *testing.T) {
		t.Parallel()

		ext := newFakeExtractor()
		ext.delay = 5 * time.Millisecond
		b := NewBuilder(ext, WithMaxInFlight(2))

		docs := make([]string, 8)
		for i := range docs {
			docs[i] = "http://example.org/" + string(rune('a'+i)) + ".pdf"
		}
		rec, err := b.Build(context.Background(), Input{URL: "http://example.org/", EntityID: "1", DocumentURLs: docs})
		require.NoError(t, err)
		assert.Len(t, rec.FileTexts, 8)
		assert.LessOrEqual(t, ext.peak.Load(), int32(2))
	})

	t.Run("nil extractor yields empty texts", func(t *testing.T) {
		t.Parallel()

		b := NewBuilder(nil)
		rec, err := b.Build(context.Background(), Input{
			URL:          "http://example.org/",
			EntityID:     "1",
			DocumentURLs: []string{"http://example.org/a.pdf"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{""}, rec.FileTexts)
		assert.Equal(t, []string{}, rec.ImageURLs)
	})

	t.Run("page without documents has empty slices", func(t *testing.T) {
		t.Parallel()

		b := NewBuilder(newFakeExtractor())
		rec, err := b.Build(context.Background(), Input{URL: "http://example.org/", EntityID: "1"})
		require.NoError(t, err)
		assert.NotNil(t, rec.FileURLs)
		assert.NotNil(t, rec.FileTexts)
		assert.Empty(t, rec.FileURLs)
	})
}
