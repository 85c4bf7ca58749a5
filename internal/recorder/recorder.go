package recorder

import (
	"time"

	"TrendSentinel/internal/model"
)

// StoredSignal is one persisted summary row.
type StoredSignal struct {
	RunID        int64
	Ticker       string
	LatestSignal *float64 // nil when missing
	AsOf         time.Time
	LatestPrice  float64
}

// Recorder persists run history for later analysis.
type Recorder interface {
	RecordRun(report *model.RunReport) (int64, error)
	LatestSignals() ([]StoredSignal, error)
	Close() error
}
