package document

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/nao1215/domaincrawl/internal/model"
)

// DefaultArtifactDir is the default root of side artifacts.
const DefaultArtifactDir = "files"

// ArtifactStore writes extracted texts to <root>/<domain>/<name>.txt and,
// on request, the downloaded files to <root>/<domain>/<name><ext>.
// Documents with the same file name on one domain overwrite each other.
type ArtifactStore struct {
	root string
}

// NewArtifactStore returns a store rooted at root.
func NewArtifactStore(root string) *ArtifactStore {
	return &ArtifactStore{root: root}
}

// Path returns where doc's artifact is written.
func (s *ArtifactStore) Path(doc *model.ExtractedDocument) string {
	return filepath.Join(s.root, sanitizeSegment(doc.Domain), artifactName(doc.FinalURL)+".txt")
}

// Write stores doc. The file appears atomically: it is written to a
// temporary name in the same directory and then renamed.
func (s *ArtifactStore) Write(doc *model.ExtractedDocument) error {
	return writeAtomic(s.Path(doc), []byte(artifactContent(doc)))
}

// OriginalPath returns where the downloaded file of doc is kept: next to
// its text artifact, with ext as the extension.
func (s *ArtifactStore) OriginalPath(doc *model.ExtractedDocument, ext string) string {
	return filepath.Join(s.root, sanitizeSegment(doc.Domain), artifactName(doc.FinalURL)+ext)
}

// WriteOriginal stores the downloaded bytes of doc.
func (s *ArtifactStore) WriteOriginal(doc *model.ExtractedDocument, ext string, body []byte) error {
	return writeAtomic(s.OriginalPath(doc, ext), body)
}

func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	return nil
}

func artifactContent(doc *model.ExtractedDocument) string {
	var sb strings.Builder
	sb.WriteString("Base URL: " + doc.Domain + "\n")
	sb.WriteString("Parent URL: " + doc.ParentPageURL + "\n")
	sb.WriteString("File URL: " + doc.FinalURL + "\n")
	sb.WriteString(doc.Text + "\n\n")
	return sb.String()
}

// artifactName is the last path element of docURL without its extension.
func artifactName(docURL string) string {
	name := ""
	if u, err := url.Parse(docURL); err == nil {
		name = path.Base(u.Path)
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	name = sanitizeSegment(name)
	if name == "" || name == "." {
		return "document"
	}
	return name
}

// sanitizeSegment keeps a value usable as a single path element.
func sanitizeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(s)
	if s == ".." {
		return "_"
	}
	return s
}
