package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Report formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Writer writes a batch report.
type Writer interface {
	// Write outputs b and returns the number of bytes written.
	Write(b *Batch) (int, error)
}

// NewWriter returns the Writer for format.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch format {
	case FormatText:
		return NewTextWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes the same batch to several Writers.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs b to every writer and stops at the first error.
func (m *MultiWriter) Write(b *Batch) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(b)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// FileName returns the report file name for b in format, e.g.
// "2024-03-01_10-04-05.txt".
func FileName(b *Batch, format string) string {
	ext := map[string]string{
		FormatText:     ".txt",
		FormatMarkdown: ".md",
		FormatJSON:     ".json",
	}[format]
	return b.StartedAt.Format("2006-01-02_15-04-05") + ext
}

// WriteFiles writes b into dir once per format and returns the file paths.
// Every format is checked before any file is created.
func WriteFiles(dir string, formats []string, b *Batch) ([]string, error) {
	for _, format := range formats {
		if _, err := NewWriter(format, io.Discard); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create diagnostics directory: %w", err)
	}

	paths := make([]string, 0, len(formats))
	files := make([]*os.File, 0, len(formats))
	writers := make([]Writer, 0, len(formats))
	closeAll := func() error {
		var errs []error
		for _, f := range files {
			errs = append(errs, f.Close())
		}
		return errors.Join(errs...)
	}

	for _, format := range formats {
		path := filepath.Join(dir, FileName(b, format))
		f, err := os.Create(path) //nolint:gosec // path is built from the configured directory
		if err != nil {
			_ = closeAll() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to create report file: %w", err)
		}
		files = append(files, f)
		w, _ := NewWriter(format, f) //nolint:errcheck // checked above
		writers = append(writers, w)
		paths = append(paths, path)
	}

	if _, err := NewMultiWriter(writers...).Write(b); err != nil {
		_ = closeAll() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	if err := closeAll(); err != nil {
		return nil, err
	}
	return paths, nil
}

// baseWriter holds the output destination shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
