package model

import (
	"time"

	"TrendSentinel/internal/series"
)

// SkipReason classifies why an instrument produced no summary row.
type SkipReason string

const (
	SkipDataUnavailable SkipReason = "DATA_UNAVAILABLE"
	SkipInvalidInput    SkipReason = "INVALID_INPUT"
	SkipCancelled       SkipReason = "CANCELLED"
	SkipInternal        SkipReason = "INTERNAL"
)

// SignalSummary is the per-instrument row of the summary table.
type SignalSummary struct {
	Ticker       string
	LatestSignal series.Value // last capped forecast, missing if undefined
	AsOf         time.Time    // timestamp of the last price
	LatestPrice  float64
	FastEWMA     series.Value
	SlowEWMA     series.Value
	Volatility   series.Value
	Observations int
	ChartPath    string
}

// Skipped records an instrument that was dropped from the run.
type Skipped struct {
	Ticker string
	Reason SkipReason
	Detail string
}

// RunReport is the outcome of one batch over the instrument list.
type RunReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Summaries  []SignalSummary // instrument-list order
	Skipped    []Skipped
	OutputPath string
}

// Succeeded returns the number of instruments with a summary row.
func (r *RunReport) Succeeded() int { return len(r.Summaries) }
