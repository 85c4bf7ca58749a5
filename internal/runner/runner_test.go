package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"TrendSentinel/internal/chart"
	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/recorder"
	"TrendSentinel/internal/retry"
	"TrendSentinel/internal/strategy"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// mapFetcher serves fixed bars per symbol and fails for unknown symbols.
type mapFetcher struct {
	mu    sync.Mutex
	bars  map[string][]model.OHLCV
	calls map[string]int
}

func (f *mapFetcher) Name() string { return "map" }

func (f *mapFetcher) FetchDailyBars(_ context.Context, symbol string, _, _ time.Time) ([]model.OHLCV, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[symbol]++
	b, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return b, nil
}

func closes(prices ...float64) []model.OHLCV {
	out := make([]model.OHLCV, len(prices))
	for i, p := range prices {
		out[i] = model.OHLCV{Time: day0.AddDate(0, 0, i), Close: p, AdjClose: p}
	}
	return out
}

func walk(n int, seed int64) []model.OHLCV {
	rng := rand.New(rand.NewSource(seed))
	ps := make([]float64, n)
	p := 100.0
	for i := range ps {
		p *= math.Exp(rng.NormFloat64() * 0.02)
		ps[i] = p
	}
	return closes(ps...)
}

type captureNotifier struct {
	texts []string
}

func (c *captureNotifier) SendWithRetry(_ context.Context, text string) error {
	c.texts = append(c.texts, text)
	return nil
}

type captureRecorder struct {
	recorder.NoopRecorder
	runs []*model.RunReport
}

func (c *captureRecorder) RecordRun(r *model.RunReport) (int64, error) {
	c.runs = append(c.runs, r)
	return int64(len(c.runs)), nil
}

func newTestRunner(t *testing.T, f collector.Fetcher, tickers ...string) *Runner {
	t.Helper()
	cfg := Config{
		Tickers:   tickers,
		Start:     day0,
		End:       day0.AddDate(1, 0, 0),
		Strategy:  strategy.Config{FastSpan: 4, SlowSpan: 16, VolLookback: 10, CapMin: -20, CapMax: 20},
		Workers:   3,
		OutputDir: t.TempDir(),
	}
	col := collector.NewCollector(f, retry.Policy{MaxAttempts: 3, Backoff: time.Millisecond}, zerolog.Nop())
	return New(cfg, col, zerolog.Nop())
}

func TestRun_OrderAndSkips(t *testing.T) {
	f := &mapFetcher{bars: map[string][]model.OHLCV{
		"AAA.JO":  walk(120, 1),
		"FLAT.JO": closes(50, 50, 50, 50, 50, 50),
		"NEG.JO":  closes(10, 11, -1, 12),
		"BBB.JO":  walk(80, 2),
	}}
	r := newTestRunner(t, f, "AAA.JO", "GONE.JO", "FLAT.JO", "NEG.JO", "BBB.JO")
	rec := &captureRecorder{}
	note := &captureNotifier{}
	r.Recorder = rec
	r.Notifier = note

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Total != 5 || rep.Succeeded() != 3 {
		t.Fatalf("expected 3 of 5 instruments, got %d of %d", rep.Succeeded(), rep.Total)
	}

	var got []string
	for _, s := range rep.Summaries {
		got = append(got, s.Ticker)
	}
	if strings.Join(got, ",") != "AAA.JO,FLAT.JO,BBB.JO" {
		t.Errorf("summaries not in instrument order: %v", got)
	}
	if !rep.Summaries[1].LatestSignal.IsMissing() {
		t.Errorf("constant series should give a missing signal, got %s", rep.Summaries[1].LatestSignal)
	}
	for _, s := range []model.SignalSummary{rep.Summaries[0], rep.Summaries[2]} {
		v, ok := s.LatestSignal.Get()
		if !ok || v < -20 || v > 20 {
			t.Errorf("%s: latest signal %s outside caps", s.Ticker, s.LatestSignal)
		}
	}
	if rep.Summaries[0].Observations != 120 || !rep.Summaries[0].AsOf.Equal(day0.AddDate(0, 0, 119)) {
		t.Errorf("unexpected summary %+v", rep.Summaries[0])
	}

	if len(rep.Skipped) != 2 {
		t.Fatalf("expected 2 skipped, got %+v", rep.Skipped)
	}
	if rep.Skipped[0].Ticker != "GONE.JO" || rep.Skipped[0].Reason != model.SkipDataUnavailable {
		t.Errorf("unexpected skip %+v", rep.Skipped[0])
	}
	if rep.Skipped[1].Ticker != "NEG.JO" || rep.Skipped[1].Reason != model.SkipInvalidInput {
		t.Errorf("unexpected skip %+v", rep.Skipped[1])
	}
	if f.calls["GONE.JO"] != 3 {
		t.Errorf("expected 3 fetch attempts for failing symbol, got %d", f.calls["GONE.JO"])
	}

	data, err := os.ReadFile(rep.OutputPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 || lines[0] != "Ticker,LatestSignal" || lines[2] != "FLAT.JO," {
		t.Errorf("unexpected summary file:\n%s", data)
	}
	if !strings.HasPrefix(lines[1], "AAA.JO,") || !strings.HasPrefix(lines[3], "BBB.JO,") {
		t.Errorf("unexpected row order:\n%s", data)
	}

	if len(rec.runs) != 1 || rec.runs[0] != rep {
		t.Error("run was not recorded")
	}
	if len(note.texts) != 1 || !strings.Contains(note.texts[0], "GONE.JO") {
		t.Errorf("unexpected notification %v", note.texts)
	}
}

func TestRun_ZeroSuccessesIsNotAnError(t *testing.T) {
	r := newTestRunner(t, &mapFetcher{}, "X.JO", "Y.JO")
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Succeeded() != 0 || len(rep.Skipped) != 2 {
		t.Errorf("unexpected report %+v", rep)
	}
	data, err := os.ReadFile(filepath.Join(r.Config.OutputDir, "EWMAC_signals.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Ticker,LatestSignal\n" {
		t.Errorf("expected header only, got %q", data)
	}
}

func TestRun_Cancelled(t *testing.T) {
	r := newTestRunner(t, &mapFetcher{bars: map[string][]model.OHLCV{"AAA.JO": walk(50, 3)}}, "AAA.JO")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, statErr := os.Stat(r.Writer.Path()); !os.IsNotExist(statErr) {
		t.Error("cancelled run should not write a summary")
	}
}

func TestRun_SummaryWriteFailure(t *testing.T) {
	r := newTestRunner(t, &mapFetcher{bars: map[string][]model.OHLCV{"AAA.JO": walk(50, 4)}}, "AAA.JO")
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	r.Writer.Dir = filepath.Join(blocker, "out")
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected summary write error")
	}
}

func TestRun_DelaySpacesRequests(t *testing.T) {
	f := &mapFetcher{bars: map[string][]model.OHLCV{}}
	tickers := []string{"A.JO", "B.JO", "C.JO"}
	for i, tk := range tickers {
		f.bars[tk] = walk(40, int64(10+i))
	}
	r := newTestRunner(t, f, tickers...)
	r.Config.Delay = 30 * time.Millisecond

	start := time.Now()
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("expected requests spaced by the delay, run took %v", elapsed)
	}
}

func TestRun_WritesCharts(t *testing.T) {
	r := newTestRunner(t, &mapFetcher{bars: map[string][]model.OHLCV{"AAA.JO": walk(60, 5)}}, "AAA.JO")
	r.Charts = chart.NewRenderer(r.Config.OutputDir, 30)

	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(r.Config.OutputDir, "EWMAC_AAA.JO.png")
	if rep.Summaries[0].ChartPath != want {
		t.Errorf("chart path %q, want %q", rep.Summaries[0].ChartPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("chart not written: %v", err)
	}
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	r := newTestRunner(t, &mapFetcher{}, "AAA.JO")
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want model.SkipReason
	}{
		{fmt.Errorf("x: %w", collector.ErrDataUnavailable), model.SkipDataUnavailable},
		{fmt.Errorf("x: %w", strategy.ErrInvalidInput), model.SkipInvalidInput},
		{context.DeadlineExceeded, model.SkipCancelled},
		{errors.New("boom"), model.SkipInternal},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func scrape(t *testing.T, r *Runner) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestRun_SkippedTickerDropsPreviousSignalGauge(t *testing.T) {
	f := &mapFetcher{bars: map[string][]model.OHLCV{
		"AAA.JO": walk(80, 6),
		"BBB.JO": walk(80, 7),
	}}
	r := newTestRunner(t, f, "AAA.JO", "BBB.JO")

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	out := scrape(t, r)
	if !strings.Contains(out, `ewmac_latest_signal{ticker="AAA.JO"}`) || !strings.Contains(out, `ewmac_latest_signal{ticker="BBB.JO"}`) {
		t.Fatalf("expected both gauges after first run:\n%s", out)
	}

	f.mu.Lock()
	delete(f.bars, "AAA.JO")
	f.mu.Unlock()
	rep, err := r.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Skipped) != 1 || rep.Skipped[0].Ticker != "AAA.JO" {
		t.Fatalf("expected AAA.JO skipped, got %+v", rep.Skipped)
	}
	out = scrape(t, r)
	if strings.Contains(out, `ewmac_latest_signal{ticker="AAA.JO"}`) {
		t.Error("skipped ticker still exports the previous run's signal")
	}
	if !strings.Contains(out, `ewmac_latest_signal{ticker="BBB.JO"}`) {
		t.Error("successful ticker lost its signal gauge")
	}
}
