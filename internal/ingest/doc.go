// Package ingest drives one bulk-fetch run of a dataset: decide how to start,
// walk every page into a batch writer, checkpoint the cursor after each page,
// merge resumed or incremental output into the existing store, and record the
// run so the next one can be incremental.
package ingest
