// Package model defines the row-oriented types that flow between the fetcher,
// the batch writer and the Parquet store.
//
// Conventions:
//   - A Record is a positional row aligned with a Schema.
//   - Values are string, int64, float64 or nil (null).
//   - Prices stay as the API's dollar strings; analysis casts them.
package model
