package ingest

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/sschnei8/predictionMarketExploro/internal/api"
	"github.com/sschnei8/predictionMarketExploro/internal/checkpoint"
	"github.com/sschnei8/predictionMarketExploro/internal/model"
	"github.com/sschnei8/predictionMarketExploro/internal/retry"
	"github.com/sschnei8/predictionMarketExploro/internal/store"
	"github.com/sschnei8/predictionMarketExploro/internal/testutil"
)

var runStart = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

type harness struct {
	mock   *testutil.MockKalshi
	client *api.Client
	dir    string
	output string
	cps    *checkpoint.FileStore
	mds    *checkpoint.FileMetadataStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	m := testutil.NewMockKalshi()
	t.Cleanup(m.Close)

	// Three pages of two trades each.
	m.SetPages("/markets/trades", "trades",
		testutil.Trades("a", 2), testutil.Trades("b", 2), testutil.Trades("c", 2))

	dir := t.TempDir()
	return &harness{
		mock:   m,
		client: api.NewClient(m.URL(), "", api.WithRetries(2, time.Millisecond), api.WithRateLimit(0)),
		dir:    dir,
		output: filepath.Join(dir, "trades.parquet"),
		cps:    checkpoint.NewFileStore(filepath.Join(dir, "trades_checkpoint.json")),
		mds:    checkpoint.NewFileMetadataStore(filepath.Join(dir, "trades_last_run.json")),
	}
}

func (h *harness) runner(t *testing.T, mode Mode, batchSize int) *Runner {
	t.Helper()
	ds, err := model.LookupDataset("trades")
	if err != nil {
		t.Fatal(err)
	}
	return NewRunner(h.client, Options{
		Dataset:     ds,
		Output:      h.output,
		Mode:        mode,
		PageSize:    2,
		BatchSize:   batchSize,
		ChunkSize:   4,
		Checkpoints: h.cps,
		Metadata:    h.mds,
		Now:         func() time.Time { return runStart },
	})
}

func tradeIDs(t *testing.T, path string) []string {
	t.Helper()
	_, rows, err := store.ReadAll(context.Background(), path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r[0].(string)
	}
	return ids
}

func TestRunner_FreshEndToEnd(t *testing.T) {
	h := newHarness(t)

	res, err := h.runner(t, ModeAuto, 5).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.State != FreshStart {
		t.Errorf("State = %v, want fresh", res.State)
	}
	if res.Pages != 3 || res.Records != 6 {
		t.Errorf("Pages = %d, Records = %d, want 3 and 6", res.Pages, res.Records)
	}
	if !reflect.DeepEqual(res.FlushSizes, []int{5, 1}) {
		t.Errorf("FlushSizes = %v, want [5 1]", res.FlushSizes)
	}
	if res.OutputRows != 6 {
		t.Errorf("OutputRows = %d, want 6", res.OutputRows)
	}
	if res.Merged {
		t.Error("Merged = true on a fresh run")
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}

	want := []string{"a-0", "a-1", "b-0", "b-1", "c-0", "c-1"}
	if got := tradeIDs(t, h.output); !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}

	if _, ok, _ := h.cps.Load(context.Background()); ok {
		t.Error("checkpoint left behind after a clean run")
	}
	md, ok, err := h.mds.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("metadata Load() = ok %v, err %v", ok, err)
	}
	if md.LastRunUnix != runStart.Unix() {
		t.Errorf("LastRunUnix = %d, want %d", md.LastRunUnix, runStart.Unix())
	}
}

func TestRunner_CrashThenResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mock.FailAtCursor("/markets/trades", testutil.CursorFor(2), http.StatusBadRequest)

	res, err := h.runner(t, ModeAuto, 5).Run(ctx)
	if !errors.Is(err, api.ErrFetchFailed) {
		t.Fatalf("Run() error = %v, want ErrFetchFailed", err)
	}
	if res.Pages != 2 {
		t.Errorf("Pages = %d, want 2", res.Pages)
	}

	cp, ok, err := h.cps.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("checkpoint Load() = ok %v, err %v", ok, err)
	}
	if cp.Cursor != testutil.CursorFor(2) {
		t.Errorf("checkpoint cursor = %q, want %q", cp.Cursor, testutil.CursorFor(2))
	}
	// Rows fetched before the failure are flushed, not lost.
	if got := tradeIDs(t, h.output); len(got) != 4 {
		t.Errorf("rows after failure = %v, want 4", got)
	}
	if _, ok, _ := h.mds.Load(ctx); ok {
		t.Error("metadata saved by a failed run")
	}

	h.mock.ClearFailures("/markets/trades")
	before := h.mock.RequestCount()

	res, err = h.runner(t, ModeAuto, 5).Run(ctx)
	if err != nil {
		t.Fatalf("resumed Run() error = %v", err)
	}
	if res.State != ResumePending {
		t.Errorf("State = %v, want resume", res.State)
	}
	if first := h.mock.Requests()[before]; first.Cursor != testutil.CursorFor(2) {
		t.Errorf("first resumed cursor = %q, want %q", first.Cursor, testutil.CursorFor(2))
	}
	if !res.Merged {
		t.Error("Merged = false, want true")
	}

	want := []string{"a-0", "a-1", "b-0", "b-1", "c-0", "c-1"}
	if got := tradeIDs(t, h.output); !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
	if _, err := os.Stat(h.output + SideSuffix); !os.IsNotExist(err) {
		t.Errorf("side file left behind: %v", err)
	}
	if _, ok, _ := h.cps.Load(ctx); ok {
		t.Error("checkpoint left behind after resume")
	}
}

func TestRunner_RetriesExhaustedSavesCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.mock.FailAtCursor("/markets/trades", testutil.CursorFor(1), http.StatusBadGateway)

	_, err := h.runner(t, ModeAuto, 100).Run(context.Background())
	if !errors.Is(err, retry.ErrRetriesExhausted) {
		t.Fatalf("Run() error = %v, want ErrRetriesExhausted", err)
	}
	// One good page, then two attempts at the failing one.
	if h.mock.RequestCount() != 3 {
		t.Errorf("requests = %d, want 3", h.mock.RequestCount())
	}
	cp, ok, _ := h.cps.Load(context.Background())
	if !ok || cp.Cursor != testutil.CursorFor(1) {
		t.Errorf("checkpoint = %+v (ok %v), want cursor %q", cp, ok, testutil.CursorFor(1))
	}
}

func TestRunner_Incremental(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.runner(t, ModeFresh, 5).Run(ctx); err != nil {
		t.Fatalf("fresh Run() error = %v", err)
	}

	// The second run sees one new trade plus an overlapping one.
	h.mock.SetPages("/markets/trades", "trades",
		append(testutil.Trades("c", 2)[1:], testutil.Trades("d", 1)...))
	before := h.mock.RequestCount()

	res, err := h.runner(t, ModeAuto, 5).Run(ctx)
	if err != nil {
		t.Fatalf("incremental Run() error = %v", err)
	}
	if res.State != IncrementalPending {
		t.Errorf("State = %v, want incremental", res.State)
	}

	req := h.mock.Requests()[before]
	if got := req.Query.Get("min_ts"); got != strconv.FormatInt(runStart.Unix(), 10) {
		t.Errorf("min_ts = %q, want %d", got, runStart.Unix())
	}
	if res.Merge.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", res.Merge.Duplicates)
	}

	want := []string{"a-0", "a-1", "b-0", "b-1", "c-0", "c-1", "d-0"}
	if got := tradeIDs(t, h.output); !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
	if res.OutputRows != 7 {
		t.Errorf("OutputRows = %d, want 7", res.OutputRows)
	}
}

func TestRunner_IncrementalNothingNew(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.runner(t, ModeFresh, 5).Run(ctx); err != nil {
		t.Fatalf("fresh Run() error = %v", err)
	}

	h.mock.SetPages("/markets/trades", "trades", nil)
	res, err := h.runner(t, ModeIncremental, 5).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Merged {
		t.Error("Merged = true with no new rows")
	}
	if res.OutputRows != 6 {
		t.Errorf("OutputRows = %d, want 6", res.OutputRows)
	}
}

func TestRunner_FreshClearsState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := os.WriteFile(h.output, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(h.output+SideSuffix, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := h.cps.Save(ctx, testutil.CursorFor(2)); err != nil {
		t.Fatal(err)
	}

	res, err := h.runner(t, ModeFresh, 10).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.State != FreshStart {
		t.Errorf("State = %v, want fresh", res.State)
	}
	if first := h.mock.Requests()[0]; first.Cursor != "" {
		t.Errorf("first cursor = %q, want empty", first.Cursor)
	}
	if res.OutputRows != 6 {
		t.Errorf("OutputRows = %d, want 6", res.OutputRows)
	}
}

func TestRunner_ResumeWithoutOutputWritesDirectly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.cps.Save(ctx, testutil.CursorFor(1)); err != nil {
		t.Fatal(err)
	}

	res, err := h.runner(t, ModeResume, 10).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.State != ResumePending || res.Merged {
		t.Errorf("State = %v, Merged = %v, want resume without merge", res.State, res.Merged)
	}
	want := []string{"b-0", "b-1", "c-0", "c-1"}
	if got := tradeIDs(t, h.output); !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

type failingStore struct {
	checkpoint.Store
	err error
}

func (f failingStore) Save(context.Context, string) error { return f.err }

func TestRunner_CheckpointFailureIsPersistenceError(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, ModeAuto, 5)
	r.opts.Checkpoints = failingStore{Store: h.cps, err: errors.New("read-only filesystem")}

	_, err := r.Run(context.Background())
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("Run() error = %v, want ErrPersistence", err)
	}
	if h.mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", h.mock.RequestCount())
	}
}

func TestRunner_Cancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.runner(t, ModeAuto, 5).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if h.mock.RequestCount() != 0 {
		t.Errorf("requests = %d, want 0", h.mock.RequestCount())
	}
}

// flakySink stands in for the database mirror. It fails its failOn-th write
// and counts resets.
type flakySink struct {
	failOn int
	writes int
	resets int
}

func (s *flakySink) Name() string { return "flaky" }

func (s *flakySink) Write(context.Context, []model.Record) error {
	s.writes++
	if s.writes == s.failOn {
		return errors.New("connection reset by peer")
	}
	return nil
}

func (s *flakySink) Close() error { return nil }

func (s *flakySink) Reset(context.Context) error {
	s.resets++
	return nil
}

func fourPages(h *harness) {
	h.mock.SetPages("/markets/trades", "trades",
		testutil.Trades("a", 2), testutil.Trades("b", 2), testutil.Trades("c", 2), testutil.Trades("d", 2))
}

var allFour = []string{"a-0", "a-1", "b-0", "b-1", "c-0", "c-1", "d-0", "d-1"}

func TestRunner_RepeatedFailureKeepsSideRows(t *testing.T) {
	h := newHarness(t)
	fourPages(h)
	ctx := context.Background()

	h.mock.FailAtCursor("/markets/trades", testutil.CursorFor(2), http.StatusBadRequest)
	if _, err := h.runner(t, ModeAuto, 5).Run(ctx); err == nil {
		t.Fatal("first Run() error = nil")
	}

	// The resume fetches page c into the side file, then fails again.
	h.mock.ClearFailures("/markets/trades")
	h.mock.FailAtCursor("/markets/trades", testutil.CursorFor(3), http.StatusBadRequest)
	if _, err := h.runner(t, ModeAuto, 5).Run(ctx); err == nil {
		t.Fatal("second Run() error = nil")
	}
	cp, _, _ := h.cps.Load(ctx)
	if cp.Cursor != testutil.CursorFor(3) {
		t.Errorf("checkpoint cursor = %q, want %q", cp.Cursor, testutil.CursorFor(3))
	}
	if got := tradeIDs(t, h.output+SideSuffix); !reflect.DeepEqual(got, []string{"c-0", "c-1"}) {
		t.Errorf("side rows = %v, want [c-0 c-1]", got)
	}

	h.mock.ClearFailures("/markets/trades")
	res, err := h.runner(t, ModeAuto, 5).Run(ctx)
	if err != nil {
		t.Fatalf("third Run() error = %v", err)
	}
	if !res.Recovered || res.Recovery.SideRows != 2 {
		t.Errorf("Recovered = %v, Recovery = %+v, want 2 side rows recovered", res.Recovered, res.Recovery)
	}
	if !res.Merged {
		t.Error("Merged = false, want true")
	}
	if got := tradeIDs(t, h.output); !reflect.DeepEqual(got, allFour) {
		t.Errorf("rows = %v, want %v", got, allFour)
	}
	if _, err := os.Stat(h.output + SideSuffix); !os.IsNotExist(err) {
		t.Errorf("side file left behind: %v", err)
	}
}

func TestRunner_FlushFailureCheckpointsFlushedPages(t *testing.T) {
	h := newHarness(t)
	fourPages(h)
	ctx := context.Background()

	// Batches of two rows: page a flushes, page b reaches the Parquet file
	// but fails in the mirror.
	r := h.runner(t, ModeAuto, 2)
	r.opts.Mirror = &flakySink{failOn: 2}

	_, err := r.Run(ctx)
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Run() error = %v, want ErrPersistence", err)
	}
	cp, ok, err := h.cps.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("checkpoint Load() = ok %v, err %v", ok, err)
	}
	if cp.Cursor != testutil.CursorFor(1) {
		t.Errorf("checkpoint cursor = %q, want %q", cp.Cursor, testutil.CursorFor(1))
	}

	before := h.mock.RequestCount()
	res, err := h.runner(t, ModeAuto, 2).Run(ctx)
	if err != nil {
		t.Fatalf("resumed Run() error = %v", err)
	}
	if first := h.mock.Requests()[before]; first.Cursor != testutil.CursorFor(1) {
		t.Errorf("first resumed cursor = %q, want %q", first.Cursor, testutil.CursorFor(1))
	}
	if res.Merge.Duplicates != 2 {
		t.Errorf("Duplicates = %d, want 2", res.Merge.Duplicates)
	}
	if got := tradeIDs(t, h.output); !reflect.DeepEqual(got, allFour) {
		t.Errorf("rows = %v, want %v", got, allFour)
	}
}

func TestRunner_FailureBeforeAnyFlushClearsCheckpoint(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r := h.runner(t, ModeAuto, 2)
	r.opts.Mirror = &flakySink{failOn: 1}

	if _, err := r.Run(ctx); !errors.Is(err, ErrPersistence) {
		t.Fatalf("Run() error = %v, want ErrPersistence", err)
	}
	// No batch was fully written, so no cursor may be skipped.
	if cp, ok, _ := h.cps.Load(ctx); ok {
		t.Errorf("checkpoint = %+v, want none", cp)
	}
}

func TestRunner_FreshResetsMirror(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mirror := &flakySink{}

	r := h.runner(t, ModeFresh, 5)
	r.opts.Mirror = mirror
	if _, err := r.Run(ctx); err != nil {
		t.Fatalf("fresh Run() error = %v", err)
	}
	if mirror.resets != 1 {
		t.Errorf("resets after fresh run = %d, want 1", mirror.resets)
	}

	h.mock.SetPages("/markets/trades", "trades", testutil.Trades("d", 1))
	r = h.runner(t, ModeAuto, 5)
	r.opts.Mirror = mirror
	if _, err := r.Run(ctx); err != nil {
		t.Fatalf("incremental Run() error = %v", err)
	}
	if mirror.resets != 1 {
		t.Errorf("resets after incremental run = %d, want 1", mirror.resets)
	}
}

func TestRunner_DurationUsesClock(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, ModeAuto, 5)
	now := runStart
	r.opts.Now = func() time.Time {
		now = now.Add(time.Minute)
		return now
	}

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Duration != 2*time.Minute {
		t.Errorf("Duration = %v, want 2m0s", res.Duration)
	}
}
