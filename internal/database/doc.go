// Package database mirrors fetched rows into PostgreSQL.
//
// The Parquet file stays the source of truth. When a database is configured
// every flushed batch is also written to a table named after the dataset:
//   - keyed datasets are upserted with pgx.Batch, the later row winning
//   - datasets without a key are appended with COPY
package database
