// Package runner drives one batch of the EWMAC signal over the instrument list.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"TrendSentinel/internal/chart"
	"TrendSentinel/internal/collector"
	"TrendSentinel/internal/metrics"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/notifier"
	"TrendSentinel/internal/recorder"
	"TrendSentinel/internal/report"
	"TrendSentinel/internal/strategy"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("run already in progress")

// Config is the immutable description of a batch, built once at startup.
type Config struct {
	Tickers   []string
	Start     time.Time
	End       time.Time // exclusive; zero means today at run time
	Strategy  strategy.Config
	Workers   int
	Delay     time.Duration // minimum spacing between provider requests
	OutputDir string
	Charts    bool
}

// Notifier receives the formatted run report.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string) error
}

// Runner fetches, computes, charts and summarises every configured instrument.
type Runner struct {
	Config    Config
	Collector *collector.Collector
	Charts    *chart.Renderer // nil disables charts
	Writer    *report.CSVWriter
	Recorder  recorder.Recorder
	Notifier  Notifier // optional
	Metrics   *metrics.Recorder
	Log       zerolog.Logger

	mu sync.Mutex
}

// New creates a Runner writing into cfg.OutputDir with a no-op recorder.
func New(cfg Config, col *collector.Collector, log zerolog.Logger) *Runner {
	r := &Runner{
		Config:    cfg,
		Collector: col,
		Writer:    report.NewCSVWriter(cfg.OutputDir, report.DefaultFilename),
		Recorder:  recorder.NewNoopRecorder(),
		Metrics:   metrics.New(),
		Log:       log,
	}
	if cfg.Charts {
		r.Charts = chart.NewRenderer(cfg.OutputDir, 0)
	}
	return r
}

// outcome is the per-instrument result: a summary or the error that skipped it.
type outcome struct {
	summary model.SignalSummary
	err     error
}

// Run processes every instrument once. Per-instrument failures are logged and
// reported as skipped; only a cancelled context or a failed summary write
// make Run return an error. A run where nothing succeeded still returns a
// report, with no summaries.
func (r *Runner) Run(ctx context.Context) (*model.RunReport, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	rep := &model.RunReport{StartedAt: time.Now(), Total: len(r.Config.Tickers)}
	r.Metrics.RunStarted()

	start, end := r.Config.Start, r.Config.End
	if end.IsZero() {
		end = today()
	}
	r.Log.Info().
		Int("instruments", rep.Total).
		Time("start", start).
		Time("end", end).
		Stringer("strategy", r.Config.Strategy).
		Msg("run started")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.Config.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(r.Config.Delay), 1)
	}
	workers := r.Config.Workers
	if workers <= 0 {
		workers = 1
	}

	outcomes := make([]outcome, len(r.Config.Tickers))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, ticker := range r.Config.Tickers {
		g.Go(func() error {
			sum, err := r.process(ctx, limiter, ticker, start, end)
			outcomes[i] = outcome{summary: sum, err: err}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		r.Log.Warn().Err(err).Msg("run cancelled")
		return nil, fmt.Errorf("run cancelled: %w", err)
	}

	for i, o := range outcomes {
		ticker := r.Config.Tickers[i]
		if o.err != nil {
			reason := classify(o.err)
			rep.Skipped = append(rep.Skipped, model.Skipped{Ticker: ticker, Reason: reason, Detail: o.err.Error()})
			r.Metrics.Instrument(string(reason))
			r.Metrics.LatestSignal(ticker, 0, false)
			r.Log.Warn().Str("symbol", ticker).Str("reason", string(reason)).Err(o.err).Msg("instrument skipped")
			continue
		}
		rep.Summaries = append(rep.Summaries, o.summary)
		r.Metrics.Instrument("ok")
		v, ok := o.summary.LatestSignal.Get()
		r.Metrics.LatestSignal(ticker, v, ok)
	}

	path, err := r.Writer.Write(rep.Summaries)
	if err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}
	rep.OutputPath = path
	rep.FinishedAt = time.Now()
	r.Metrics.RunFinished(rep.FinishedAt.Sub(rep.StartedAt))

	if len(rep.Summaries) == 0 {
		r.Log.Warn().Int("skipped", len(rep.Skipped)).Msg("no instrument produced a signal")
	}
	r.Log.Info().
		Int("signals", rep.Succeeded()).
		Int("skipped", len(rep.Skipped)).
		Str("output", path).
		Dur("elapsed", rep.FinishedAt.Sub(rep.StartedAt)).
		Msg("run finished")

	if id, err := r.Recorder.RecordRun(rep); err != nil {
		r.Log.Error().Err(err).Msg("record run")
	} else if id > 0 {
		r.Log.Debug().Int64("run_id", id).Msg("run recorded")
	}
	if r.Notifier != nil {
		if err := r.Notifier.SendWithRetry(ctx, notifier.FormatRunReport(rep)); err != nil {
			r.Log.Error().Err(err).Msg("send run report")
		}
	}
	return rep, nil
}

func (r *Runner) process(ctx context.Context, limiter *rate.Limiter, ticker string, start, end time.Time) (model.SignalSummary, error) {
	if err := limiter.Wait(ctx); err != nil {
		return model.SignalSummary{}, err
	}

	t0 := time.Now()
	prices, err := r.Collector.Prices(ctx, ticker, start, end)
	r.Metrics.ObserveFetch(time.Since(t0))
	if err != nil {
		return model.SignalSummary{}, err
	}

	t1 := time.Now()
	res, err := strategy.Compute(prices, r.Config.Strategy)
	r.Metrics.ObserveCompute(time.Since(t1))
	if err != nil {
		return model.SignalSummary{}, err
	}

	sum := summarize(ticker, prices, res)
	if r.Charts != nil {
		path, err := r.Charts.Render(prices, res)
		if err != nil {
			r.Log.Warn().Str("symbol", ticker).Err(err).Msg("chart failed")
		} else {
			sum.ChartPath = path
		}
	}
	r.Log.Debug().
		Str("symbol", ticker).
		Stringer("signal", sum.LatestSignal).
		Int("observations", sum.Observations).
		Int("defined", res.Capped.Defined()).
		Int("first_defined", res.Capped.FirstDefined()).
		Msg("signal computed")
	return sum, nil
}

func summarize(ticker string, prices model.PriceSeries, res *strategy.Result) model.SignalSummary {
	last := prices.Last()
	return model.SignalSummary{
		Ticker:       ticker,
		LatestSignal: res.Latest(),
		AsOf:         last.Time,
		LatestPrice:  last.Price,
		FastEWMA:     res.Fast.Last(),
		SlowEWMA:     res.Slow.Last(),
		Volatility:   res.Vol.Last(),
		Observations: prices.Len(),
	}
}

func classify(err error) model.SkipReason {
	switch {
	case errors.Is(err, collector.ErrDataUnavailable):
		return model.SkipDataUnavailable
	case errors.Is(err, strategy.ErrInvalidInput):
		return model.SkipInvalidInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.SkipCancelled
	default:
		return model.SkipInternal
	}
}

func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
