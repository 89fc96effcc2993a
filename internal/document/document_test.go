package document

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/domaincrawl/internal/fetch"
	"github.com/nao1215/domaincrawl/internal/model"
)

// stubFetcher serves canned responses keyed by URL.
type stubFetcher struct {
	responses map[string]*fetch.Response
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (*fetch.Response, error) {
	resp, ok := f.responses[rawURL]
	if !ok {
		return nil, &fetch.Error{URL: rawURL, StatusCode: 404, Err: fetch.ErrHTTPStatus}
	}
	return resp, nil
}

func serve(url, finalURL string, body []byte) *stubFetcher {
	return &stubFetcher{responses: map[string]*fetch.Response{
		url: {URL: url, FinalURL: finalURL, StatusCode: 200, Body: body},
	}}
}

func staticBackend(text string) Backend {
	return BackendFunc(func(context.Context, string) (string, error) { return text, nil })
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files left behind")
}

func TestExtract(t *testing.T) {
	t.Parallel()

	const (
		parent = "http://www.example.org/index.html"
		docURL = "http://www.example.org/brochure.pdf"
	)

	t.Run("extracts text and writes the artifact", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		tmp := t.TempDir()
		e := NewExtractor(serve(docURL, docURL, []byte("%PDF-1.4 fake")),
			WithBackend(".pdf", staticBackend("Our\x00 brochure\x07 text")),
			WithArtifactStore(NewArtifactStore(root)),
			WithTempDir(tmp),
		)

		doc, err := e.Extract(context.Background(), docURL, parent)
		require.NoError(t, err)
		assert.Equal(t, "Our brochure text", doc.Text)
		assert.Equal(t, "example.org", doc.Domain)
		assert.Equal(t, docURL, doc.FinalURL)
		assert.Equal(t, parent, doc.ParentPageURL)

		content, err := os.ReadFile(filepath.Join(root, "example.org", "brochure.txt"))
		require.NoError(t, err)
		assert.Equal(t,
			"Base URL: example.org\nParent URL: "+parent+"\nFile URL: "+docURL+"\nOur brochure text\n\n",
			string(content))

		assertDirEmpty(t, tmp)
	})

	t.Run("format follows the final URL", func(t *testing.T) {
		t.Parallel()

		e := NewExtractor(serve(docURL, "http://www.example.org/brochure.txt", []byte("plain")),
			WithTempDir(t.TempDir()))

		_, err := e.Extract(context.Background(), docURL, parent)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("extensionless URL is sniffed", func(t *testing.T) {
		t.Parallel()

		u := "http://www.example.org/download?id=7"
		var called atomic.Bool
		e := NewExtractor(serve(u, u, []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n")),
			WithBackend(".pdf", BackendFunc(func(_ context.Context, p string) (string, error) {
				called.Store(true)
				assert.True(t, strings.HasSuffix(p, ".pdf"))
				return "sniffed", nil
			})),
			WithTempDir(t.TempDir()),
		)

		doc, err := e.Extract(context.Background(), u, parent)
		require.NoError(t, err)
		assert.True(t, called.Load())
		assert.Equal(t, "sniffed", doc.Text)
	})

	t.Run("extensionless unknown content is unsupported", func(t *testing.T) {
		t.Parallel()

		u := "http://www.example.org/download"
		e := NewExtractor(serve(u, u, []byte("just some text")), WithTempDir(t.TempDir()))

		_, err := e.Extract(context.Background(), u, parent)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("download failure matches ErrFetch", func(t *testing.T) {
		t.Parallel()

		e := NewExtractor(&stubFetcher{}, WithTempDir(t.TempDir()))
		_, err := e.Extract(context.Background(), docURL, parent)
		assert.ErrorIs(t, err, ErrFetch)
		assert.ErrorIs(t, err, fetch.ErrFetch)
	})

	t.Run("backend failure removes the temp file", func(t *testing.T) {
		t.Parallel()

		tmp := t.TempDir()
		var seen atomic.Bool
		e := NewExtractor(serve(docURL, docURL, []byte("%PDF")),
			WithBackend(".pdf", BackendFunc(func(_ context.Context, p string) (string, error) {
				_, err := os.Stat(p)
				seen.Store(err == nil)
				return "", errors.New("corrupt")
			})),
			WithTempDir(tmp),
		)

		_, err := e.Extract(context.Background(), docURL, parent)
		assert.ErrorIs(t, err, ErrExtraction)
		assert.True(t, seen.Load(), "backend should see the downloaded file")
		assertDirEmpty(t, tmp)
	})

	t.Run("backend panic is an extraction error", func(t *testing.T) {
		t.Parallel()

		tmp := t.TempDir()
		e := NewExtractor(serve(docURL, docURL, []byte("%PDF")),
			WithBackend(".pdf", BackendFunc(func(context.Context, string) (string, error) {
				panic("bad xref")
			})),
			WithTempDir(tmp),
		)

		_, err := e.Extract(context.Background(), docURL, parent)
		assert.ErrorIs(t, err, ErrExtraction)
		assertDirEmpty(t, tmp)
	})

	t.Run("empty body is an extraction error", func(t *testing.T) {
		t.Parallel()

		e := NewExtractor(serve(docURL, docURL, nil), WithTempDir(t.TempDir()))
		_, err := e.Extract(context.Background(), docURL, parent)
		assert.ErrorIs(t, err, ErrExtraction)
	})

	t.Run("invalid PDF fails without panicking", func(t *testing.T) {
		t.Parallel()

		tmp := t.TempDir()
		e := NewExtractor(serve(docURL, docURL, []byte("not a pdf at all")), WithTempDir(tmp))
		_, err := e.Extract(context.Background(), docURL, parent)
		assert.ErrorIs(t, err, ErrExtraction)
		assertDirEmpty(t, tmp)
	})
}

func TestExtractDOCX(t *testing.T) {
	t.Parallel()

	body := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Annual</w:t></w:r><w:r><w:t xml:space="preserve"> report</w:t></w:r></w:p>
<w:p><w:r><w:t>Name</w:t><w:tab/><w:t>Value</w:t><w:br/><w:t>next</w:t></w:r></w:p>
</w:body>
</w:document>`

	path := filepath.Join(t.TempDir(), "report.docx")
	writeZip(t, path, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   body,
	})

	got, err := extractDOCX(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Annual report\nName\tValue\nnext\n", got)

	t.Run("missing body part", func(t *testing.T) {
		t.Parallel()

		p := filepath.Join(t.TempDir(), "empty.docx")
		writeZip(t, p, map[string]string{"other.xml": "<x/>"})
		_, err := extractDOCX(context.Background(), p)
		assert.Error(t, err)
	})

	t.Run("not a zip", func(t *testing.T) {
		t.Parallel()

		p := filepath.Join(t.TempDir(), "bad.docx")
		require.NoError(t, os.WriteFile(p, []byte("nope"), 0o600))
		_, err := extractDOCX(context.Background(), p)
		assert.Error(t, err)
	})
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestStripControl(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a\x00b\x08c", "abc"},
		{"tab\tand\nnewline", "tab\tand\nnewline"},
		{"vt\x0bff\x0ccr\r", "vtffcr"},
		{"del\x7f c1\u0085\u009f", "del c1"},
		{"café", "café"},
	}
	for _, tt := range tests {
		if got := StripControl(tt.in); got != tt.want {
			t.Errorf("StripControl(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestArtifactStore(t *testing.T) {
	t.Parallel()

	t.Run("names files after the document", func(t *testing.T) {
		t.Parallel()

		s := NewArtifactStore("files")
		tests := []struct {
			url  string
			want string
		}{
			{"http://example.org/a/b/Report.PDF", filepath.Join("files", "example.org", "Report.txt")},
			{"http://example.org/", filepath.Join("files", "example.org", "document.txt")},
			{"http://example.org/download?id=1", filepath.Join("files", "example.org", "download.txt")},
		}
		for _, tt := range tests {
			got := s.Path(&model.ExtractedDocument{Domain: "example.org", FinalURL: tt.url})
			assert.Equal(t, tt.want, got, tt.url)
		}
	})

	t.Run("overwrites and leaves no temp files", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		s := NewArtifactStore(root)
		doc := &model.ExtractedDocument{Domain: "example.org", FinalURL: "http://example.org/x.pdf", Text: "one"}
		require.NoError(t, s.Write(doc))
		doc.Text = "two"
		require.NoError(t, s.Write(doc))

		entries, err := os.ReadDir(filepath.Join(root, "example.org"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		content, err := os.ReadFile(filepath.Join(root, "example.org", "x.txt"))
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(string(content), "two\n\n"))
	})
}

// minimalPDF builds a one page PDF that shows text in Helvetica.
func minimalPDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 24 Tf 72 700 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractPDF(t *testing.T) {
	t.Parallel()

	t.Run("reads page text", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "brochure.pdf")
		require.NoError(t, os.WriteFile(path, minimalPDF("Spring open house"), 0o600))

		got, err := extractPDF(context.Background(), path)
		require.NoError(t, err)
		assert.Contains(t, got, "Spring open house")
	})

	t.Run("through the default backends", func(t *testing.T) {
		t.Parallel()

		const docURL = "http://www.example.org/files/brochure.pdf"
		e := NewExtractor(serve(docURL, docURL, minimalPDF("Enrollment form")), WithTempDir(t.TempDir()))

		doc, err := e.Extract(context.Background(), docURL, "http://www.example.org/")
		require.NoError(t, err)
		assert.Contains(t, doc.Text, "Enrollment form")
	})

	t.Run("truncated file is an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "cut.pdf")
		full := minimalPDF("cut short")
		require.NoError(t, os.WriteFile(path, full[:len(full)/2], 0o600))

		_, err := extractPDF(context.Background(), path)
		assert.Error(t, err)
	})
}

func TestExtractOriginals(t *testing.T) {
	t.Parallel()

	const (
		parent = "http://www.example.org/index.html"
		docURL = "http://www.example.org/forms/enroll.pdf"
	)
	body := []byte("%PDF-1.4 original bytes")

	t.Run("kept next to the text", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		e := NewExtractor(serve(docURL, docURL, body),
			WithBackend(".pdf", staticBackend("form")),
			WithArtifactStore(NewArtifactStore(root)),
			WithOriginals(),
			WithTempDir(t.TempDir()),
		)
		_, err := e.Extract(context.Background(), docURL, parent)
		require.NoError(t, err)

		kept, err := os.ReadFile(filepath.Join(root, "example.org", "enroll.pdf"))
		require.NoError(t, err)
		assert.Equal(t, body, kept)
		assert.FileExists(t, filepath.Join(root, "example.org", "enroll.txt"))
	})

	t.Run("not kept by default", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		e := NewExtractor(serve(docURL, docURL, body),
			WithBackend(".pdf", staticBackend("form")),
			WithArtifactStore(NewArtifactStore(root)),
			WithTempDir(t.TempDir()),
		)
		_, err := e.Extract(context.Background(), docURL, parent)
		require.NoError(t, err)
		assert.NoFileExists(t, filepath.Join(root, "example.org", "enroll.pdf"))
	})
}

func TestExtractOversize(t *testing.T) {
	t.Parallel()

	big := bytes.Repeat([]byte("x"), 2048)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(append([]byte("%PDF-1.4\n"), big...))
	}))
	defer server.Close()

	client, err := fetch.NewClient(
		fetch.WithRetries(0, time.Millisecond),
		fetch.WithMaxBodySize(1024),
		fetch.WithRejectOversize(),
	)
	require.NoError(t, err)

	var called atomic.Bool
	e := NewExtractor(client,
		WithBackend(".pdf", BackendFunc(func(context.Context, string) (string, error) {
			called.Store(true)
			return "", nil
		})),
		WithTempDir(t.TempDir()),
	)

	_, err = e.Extract(context.Background(), server.URL+"/huge.pdf", server.URL+"/")
	require.ErrorIs(t, err, fetch.ErrTooLarge)
	assert.NotErrorIs(t, err, ErrExtraction)
	assert.False(t, called.Load(), "a cut off document must not reach the backend")
}
