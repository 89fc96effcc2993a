package sink

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/nao1215/domaincrawl/internal/model"
)

// maxTextFileName bounds the length of a page text file name.
const maxTextFileName = 120

// TextDir writes the text of every page to <root>/<entity>/<name>.txt,
// where name is derived from the page URL. Pages whose names collide get
// a numeric suffix.
type TextDir struct {
	root string

	mu    sync.Mutex
	names map[string]int
}

// NewTextDir returns a TextDir rooted at root. Directories are created on
// the first record.
func NewTextDir(root string) *TextDir {
	return &TextDir{root: root, names: make(map[string]int)}
}

// Emit writes record's text.
func (d *TextDir) Emit(_ context.Context, record *model.PageRecord) error {
	dir := filepath.Join(d.root, safeName(record.EntityID, "entity"))
	path := filepath.Join(dir, d.claimName(dir, pageFileName(record.URL))+".txt")

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create page text directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(record.Text), 0o600); err != nil {
		return fmt.Errorf("failed to write page text: %w", err)
	}
	return nil
}

// claimName returns name, or name-N when dir already holds it.
func (d *TextDir) claimName(dir, name string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := filepath.Join(dir, name)
	n := d.names[key]
	d.names[key] = n + 1
	if n == 0 {
		return name
	}
	return name + "-" + strconv.Itoa(n+1)
}

// pageFileName turns a page URL into a file name: the host and path with
// separators replaced, plus a script fragment when there is one.
func pageFileName(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return safeName(pageURL, "page")
	}
	name := u.Host + strings.TrimSuffix(u.Path, "/")
	if u.RawQuery != "" {
		name += "_" + u.RawQuery
	}
	if u.Fragment != "" {
		name += "_" + u.Fragment
	}
	return safeName(name, "page")
}

// safeName keeps letters, digits, dots and dashes and replaces runs of
// anything else with one underscore.
func safeName(s, fallback string) string {
	var sb strings.Builder
	underscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			sb.WriteRune(r)
			underscore = false
		case !underscore:
			sb.WriteByte('_')
			underscore = true
		}
	}
	name := strings.Trim(sb.String(), "_.")
	if len(name) > maxTextFileName {
		name = name[:maxTextFileName]
	}
	if name == "" {
		return fallback
	}
	return name
}
