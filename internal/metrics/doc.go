// Package metrics provides Prometheus metrics for monitoring ingest runs.
//
// Key metrics:
//   - Page and record throughput per dataset
//   - HTTP request counts, latencies, retries and exhausted retries
//   - Rate limiter wait time
//   - Flush counts and latencies per sink
//   - Checkpoint saves and run outcomes
package metrics
