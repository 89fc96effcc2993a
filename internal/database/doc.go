// Package database provides SQLite storage for crawl results.
//
// CrawlDB stores:
//   - page records, one row per (entity, URL), updated on re-crawl
//   - run diagnostics, one row per crawled seed
//
// It implements model.RecordSink so it can be used next to the JSON Lines
// and Redis sinks. The driver is modernc.org/sqlite, which needs no cgo.
package database
