// Package testutil provides a scriptable Kalshi API server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RecordedRequest is one request seen by the mock.
type RecordedRequest struct {
	Path   string
	Query  url.Values
	Cursor string
	At     time.Time
}

type mockCollection struct {
	itemsField string
	pages      [][]map[string]any
	failNext   []int          // statuses returned before any page, consumed in order
	failAt     map[string]int // cursor -> status, returned every time
}

// MockKalshi serves cursor-paginated collections. Page i of a collection is
// requested with cursor CursorFor(i); the first page with no cursor.
type MockKalshi struct {
	server *httptest.Server

	mu          sync.Mutex
	collections map[string]*mockCollection
	requests    []RecordedRequest
	delay       time.Duration
}

// NewMockKalshi starts a mock server. Callers must Close it.
func NewMockKalshi() *MockKalshi {
	m := &MockKalshi{collections: make(map[string]*mockCollection)}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// URL returns the base URL to hand to api.NewClient.
func (m *MockKalshi) URL() string { return m.server.URL }

// Close shuts down the server.
func (m *MockKalshi) Close() { m.server.Close() }

// CursorFor returns the cursor that requests page i (0-based).
func CursorFor(i int) string {
	return "cursor-" + strconv.Itoa(i)
}

// SetPages installs the pages served at path.
func (m *MockKalshi) SetPages(path, itemsField string, pages ...[]map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[path] = &mockCollection{
		itemsField: itemsField,
		pages:      pages,
		failAt:     make(map[string]int),
	}
}

// FailNext makes the next len(statuses) requests to path fail with those statuses.
func (m *MockKalshi) FailNext(path string, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(path)
	c.failNext = append(c.failNext, statuses...)
}

// FailAtCursor makes every request for cursor at path fail with status.
func (m *MockKalshi) FailAtCursor(path, cursor string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collection(path).failAt[cursor] = status
}

// ClearFailures removes all injected failures for path.
func (m *MockKalshi) ClearFailures(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.collection(path)
	c.failNext = nil
	c.failAt = make(map[string]int)
}

// SetDelay delays every response, for timeout tests.
func (m *MockKalshi) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Requests returns a copy of all requests seen so far.
func (m *MockKalshi) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestCount returns the number of requests seen so far.
func (m *MockKalshi) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockKalshi) collection(path string) *mockCollection {
	c, ok := m.collections[path]
	if !ok {
		c = &mockCollection{failAt: make(map[string]int)}
		m.collections[path] = c
	}
	return c
}

func (m *MockKalshi) handle(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Cursor: cursor,
		At:     time.Now(),
	})
	delay := m.delay
	c, ok := m.collections[r.URL.Path]
	var status int
	var body []byte
	if ok {
		status, body = c.respond(cursor)
	}
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// respond must be called with the mock's lock held.
func (c *mockCollection) respond(cursor string) (int, []byte) {
	if len(c.failNext) > 0 {
		status := c.failNext[0]
		c.failNext = c.failNext[1:]
		return status, []byte(fmt.Sprintf(`{"error":"injected %d"}`, status))
	}
	if status, ok := c.failAt[cursor]; ok {
		return status, []byte(fmt.Sprintf(`{"error":"injected %d at %s"}`, status, cursor))
	}

	idx := 0
	if cursor != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(cursor, "cursor-"))
		if err != nil || n < 0 || n >= len(c.pages) {
			return http.StatusBadRequest, []byte(`{"error":"invalid cursor"}`)
		}
		idx = n
	}

	resp := map[string]any{c.itemsField: []map[string]any{}}
	if idx < len(c.pages) && c.pages[idx] != nil {
		resp[c.itemsField] = c.pages[idx]
	}
	if idx+1 < len(c.pages) {
		resp["cursor"] = CursorFor(idx + 1)
	} else {
		resp["cursor"] = ""
	}

	body, _ := json.Marshal(resp)
	return http.StatusOK, body
}

// Trades builds n trade items whose ids are prefix-0, prefix-1, ...
func Trades(prefix string, n int) []map[string]any {
	items := make([]map[string]any, n)
	for i := range items {
		items[i] = map[string]any{
			"trade_id":          fmt.Sprintf("%s-%d", prefix, i),
			"ticker":            "KXTEST-" + prefix,
			"count":             i + 1,
			"count_fp":          fmt.Sprintf("%d.00", i+1),
			"yes_price_dollars": "0.5600",
			"no_price_dollars":  "0.4400",
			"taker_side":        "yes",
			"created_time":      "2025-01-01T00:00:00Z",
		}
	}
	return items
}

// Markets builds one market item per ticker.
func Markets(tickers ...string) []map[string]any {
	items := make([]map[string]any, len(tickers))
	for i, t := range tickers {
		items[i] = map[string]any{
			"ticker":       t,
			"event_ticker": "EV-" + t,
			"status":       "active",
			"volume":       100 + i,
			"open_time":    "2025-01-01T00:00:00Z",
			"close_time":   "2025-02-01T00:00:00Z",
			"liquidity":    1000,
			"market_type":  "binary",
		}
	}
	return items
}
