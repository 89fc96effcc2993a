// Package document downloads linked PDF and Word files and extracts their text.
//
// The Extractor picks a Backend from the extension of the final
// (post-redirect) URL. URLs without an extension are sniffed with
// github.com/gabriel-vasile/mimetype. Each download is written to a
// temporary file for the backend and removed afterwards, whatever the
// outcome.
//
// Built-in backends:
//   - .pdf: github.com/ledongthuc/pdf
//   - .docx: the word/document.xml part read with archive/zip
//   - .doc: the antiword command, which must be on PATH
//
// Extracted texts are also written as side artifacts by an ArtifactStore,
// one file per document under <root>/<domain>/<name>.txt.
package document
