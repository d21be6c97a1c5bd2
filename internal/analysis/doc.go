// Package analysis runs summary queries over a trades Parquet file.
//
// Queries run in an embedded DuckDB database that reads the file through a
// view named trades. Results come back as string tables for printing, or are
// written straight to CSV with DuckDB's COPY.
package analysis
