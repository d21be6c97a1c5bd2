// Package writer buffers fetched rows and flushes them in order to a Sink.
//
// A BatchWriter owns one background worker. Full batches are handed to it
// through a channel together with a completion channel, and a new batch is
// only submitted once the previous one has landed, so flushes never reorder
// and at most one is in flight.
//
// Sinks:
//   - ParquetSink (lazily opened Parquet file)
//   - database.CopySink (PostgreSQL COPY mirror)
//   - MultiSink (fan-out to several sinks in order)
package writer
