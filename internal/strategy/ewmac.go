package strategy

import (
	"errors"
	"fmt"
	"math"

	"TrendSentinel/internal/calculator"
	"TrendSentinel/internal/model"
	"TrendSentinel/internal/series"
)

// ErrInvalidInput is returned when a price series cannot be processed.
var ErrInvalidInput = errors.New("invalid input")

// Result carries the capped forecast together with every intermediate series.
// All series share the index of the input prices.
type Result struct {
	Symbol      string
	Config      Config
	Scalar      float64
	Price       series.Series
	Fast        series.Series
	Slow        series.Series
	Raw         series.Series
	Returns     series.Series
	Vol         series.Series
	VolAdjusted series.Series
	Forecast    series.Series
	Capped      series.Series
}

// Latest returns the last capped forecast, missing if undefined.
func (r *Result) Latest() series.Value { return r.Capped.Last() }

// Compute runs the EWMAC pipeline over one instrument's closing prices.
//
// It fails only with ErrInvalidInput (or an invalid cfg); per-point undefined
// quantities are carried as missing values.
func Compute(prices model.PriceSeries, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validatePrices(prices); err != nil {
		return nil, err
	}

	idx := prices.Times()
	px := prices.Prices()
	price := series.New(idx, px)
	closes := price.Values

	fast, err := calculator.EWMAMean(closes, cfg.FastSpan)
	if err != nil {
		return nil, fmt.Errorf("fast ewma: %w", err)
	}
	slow, err := calculator.EWMAMean(closes, cfg.SlowSpan)
	if err != nil {
		return nil, fmt.Errorf("slow ewma: %w", err)
	}
	rets := calculator.PctChange(px)
	vol, err := calculator.EWMStd(rets, cfg.VolLookback)
	if err != nil {
		return nil, fmt.Errorf("volatility: %w", err)
	}

	r := &Result{
		Symbol:  prices.Symbol,
		Config:  cfg,
		Scalar:  calculator.ForecastScalar(cfg.FastSpan),
		Price:   price,
		Fast:    series.FromValues(idx, fast),
		Slow:    series.FromValues(idx, slow),
		Returns: series.FromValues(idx, rets),
		Vol:     series.FromValues(idx, vol),
	}
	r.Raw = r.Fast.Sub(r.Slow)
	r.VolAdjusted = r.Raw.Div(r.Vol)
	r.Forecast = r.VolAdjusted.Scale(r.Scalar)
	r.Capped = r.Forecast.Clip(cfg.CapMin, cfg.CapMax)
	return r, nil
}

func validatePrices(prices model.PriceSeries) error {
	switch prices.Len() {
	case 0:
		return fmt.Errorf("%w: empty price series", ErrInvalidInput)
	case 1:
		return fmt.Errorf("%w: need at least two prices for returns", ErrInvalidInput)
	}
	for i, pt := range prices.Points {
		if math.IsNaN(pt.Price) || math.IsInf(pt.Price, 0) || pt.Price <= 0 {
			return fmt.Errorf("%w: price %v at %s is not positive", ErrInvalidInput, pt.Price, pt.Time.Format("2006-01-02"))
		}
		if i > 0 && !pt.Time.After(prices.Points[i-1].Time) {
			return fmt.Errorf("%w: time index not strictly increasing at position %d", ErrInvalidInput, i)
		}
	}
	return nil
}
