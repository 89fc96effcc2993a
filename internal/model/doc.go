// Package model defines the data structures shared by the crawl pipeline.
//
// The main types are:
//   - Seed: one (entity id, URL) pair read from the input file
//   - PageRecord: the output record emitted once per crawled page
//   - ExtractedDocument: text pulled out of a linked PDF/DOC/DOCX file
//   - Stats and Diagnostics: per-entity counters reported after a run
//   - CrawlRun: the per-seed context object every component receives
//
// Models live in their own package so crawler, record, sink, database and
// report can share them without import cycles. All exported structs are
// JSON-serializable for sinks and reports.
package model
