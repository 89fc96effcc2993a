// Package sink provides the destinations page records are emitted to.
//
// Every sink implements model.RecordSink and is safe for concurrent use:
//   - JSONLines writes one JSON object per line to a file or stdout
//   - Redis appends JSON records to a list with RPUSH
//   - Multi fans a record out to several sinks
//
// The SQLite store in internal/database is a sink as well.
package sink
