// Package export uploads finished Parquet files to an S3 compatible bucket.
package export
