package collector

import (
	"context"
	"time"

	"TrendSentinel/internal/model"
)

// Fetcher defines the interface for fetching daily market data.
// The range is [start, end): end is exclusive.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]model.OHLCV, error)
	Name() string
}
