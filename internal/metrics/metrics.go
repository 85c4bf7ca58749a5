// Package metrics exposes run counters and latencies for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Recorder holds the metrics of the signal runner on its own registry.
type Recorder struct {
	reg *prometheus.Registry

	runsTotal       prometheus.Counter
	instruments     *prometheus.CounterVec // labels: outcome
	fetchDuration   prometheus.Histogram
	computeDuration prometheus.Histogram
	runDuration     prometheus.Histogram
	latestSignal    *prometheus.GaugeVec // labels: ticker
	lastRun         prometheus.Gauge
}

// New creates and registers all metrics.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		runsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "ewmac_runs_total",
			Help: "Total batch runs started",
		}),
		instruments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ewmac_instruments_total",
			Help: "Instruments processed by outcome",
		}, []string{"outcome"}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ewmac_fetch_duration_seconds",
			Help:    "Price history fetch latency including retries",
			Buckets: prometheus.DefBuckets,
		}),
		computeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ewmac_compute_duration_seconds",
			Help:    "Signal pipeline latency per instrument",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ewmac_run_duration_seconds",
			Help:    "Wall time of one batch run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		latestSignal: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ewmac_latest_signal",
			Help: "Latest capped forecast per ticker",
		}, []string{"ticker"}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "ewmac_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}),
	}
}

func (r *Recorder) RunStarted() { r.runsTotal.Inc() }

func (r *Recorder) RunFinished(d time.Duration) {
	r.runDuration.Observe(d.Seconds())
	r.lastRun.SetToCurrentTime()
}

// Instrument counts one instrument outcome, e.g. "ok" or a skip reason.
func (r *Recorder) Instrument(outcome string) {
	r.instruments.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveFetch(d time.Duration)   { r.fetchDuration.Observe(d.Seconds()) }
func (r *Recorder) ObserveCompute(d time.Duration) { r.computeDuration.Observe(d.Seconds()) }

// LatestSignal publishes a ticker's latest forecast; missing values remove the series.
func (r *Recorder) LatestSignal(ticker string, v float64, ok bool) {
	if !ok {
		r.latestSignal.DeleteLabelValues(ticker)
		return
	}
	r.latestSignal.WithLabelValues(ticker).Set(v)
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
