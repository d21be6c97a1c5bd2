// Package api provides the Kalshi REST client used for bulk pagination.
//
// REST endpoints:
//   - Production: https://api.elections.kalshi.com/trade-api/v2
//   - Demo: https://demo-api.kalshi.co/trade-api/v2
//
// Every attempt waits on the client's rate limiter. HTTP 502, timeouts and
// connection errors are retried with exponential backoff; every other
// non-200 status fails at once with an *APIError matching ErrFetchFailed.
package api
