// Package report writes the diagnostics of a crawl batch.
//
// Three formats are available:
//   - TextWriter: the plain diagnostics file, one paragraph per entity
//   - MarkdownWriter: tables, a link-type pie chart and an alert
//   - JSONWriter: the Batch as JSON for tooling
//
// WriteFiles stores one report per requested format under the diagnostics
// directory, named after the time the batch started.
package report
