package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"TrendSentinel/internal/model"
	"TrendSentinel/internal/retry"
)

// ErrDataUnavailable is returned when no usable bars could be fetched.
var ErrDataUnavailable = errors.New("data unavailable")

var errEmpty = errors.New("empty result")

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price     float64
	DailyData []model.OHLCV
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, _ string, start, end time.Time) ([]model.OHLCV, error) {
	if m.DailyData != nil {
		return m.DailyData, nil
	}
	return generateMockBars(m.Price, start, end), nil
}

// generateMockBars emits one bar per weekday in [start, end) following a slow sine trend.
func generateMockBars(basePrice float64, start, end time.Time) []model.OHLCV {
	var bars []model.OHLCV
	i := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p := basePrice * (1 + 0.1*math.Sin(float64(i)/20) + float64(i)*0.0005)
		bars = append(bars, model.OHLCV{
			Time:     d,
			Open:     p * 0.999,
			High:     p * 1.005,
			Low:      p * 0.995,
			Close:    p,
			AdjClose: p,
			Volume:   1000000,
		})
		i++
	}
	return bars
}

// Collector fetches closing price series, retrying the data source.
type Collector struct {
	Fetcher Fetcher
	Retry   retry.Policy
	Log     zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, policy retry.Policy, log zerolog.Logger) *Collector {
	return &Collector{Fetcher: fetcher, Retry: policy, Log: log}
}

// Prices returns the closing price series of symbol over [start, end).
//
// A fetch error and an empty result both count as a failed attempt; once the
// policy is exhausted the error wraps ErrDataUnavailable. Bars without a close
// are dropped; all other closes are passed through unchanged.
func (c *Collector) Prices(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	var bars []model.OHLCV
	err := c.Retry.Do(ctx, func(attempt int) error {
		b, err := c.Fetcher.FetchDailyBars(ctx, symbol, start, end)
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return errEmpty
		}
		bars = b
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		c.Log.Warn().Str("symbol", symbol).Int("attempt", attempt).Dur("wait", wait).Err(err).
			Msg("fetch failed, retrying")
	})
	if err != nil {
		if ctx.Err() != nil {
			return model.PriceSeries{}, err
		}
		return model.PriceSeries{}, fmt.Errorf("%w: %s via %s: %v", ErrDataUnavailable, symbol, c.Fetcher.Name(), err)
	}

	ps := ClosingPrices(symbol, bars)
	if ps.Len() == 0 {
		return ps, fmt.Errorf("%w: %s has no closing prices", ErrDataUnavailable, symbol)
	}
	return ps, nil
}

// ClosingPrices extracts the close column, preferring the adjusted close.
// Bars whose close is missing are dropped.
func ClosingPrices(symbol string, bars []model.OHLCV) model.PriceSeries {
	ps := model.PriceSeries{Symbol: symbol, Points: make([]model.PricePoint, 0, len(bars))}
	for _, b := range bars {
		c := b.AdjClose
		if math.IsNaN(c) || c == 0 {
			c = b.Close
		}
		if math.IsNaN(c) {
			continue
		}
		ps.Points = append(ps.Points, model.PricePoint{Time: b.Time, Price: c})
	}
	return ps
}
