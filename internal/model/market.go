package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64 // zero or NaN when the source does not provide it
	Volume   float64
}

// PricePoint is one observation of a PriceSeries.
type PricePoint struct {
	Time  time.Time
	Price float64
}

// PriceSeries holds the closing prices of one instrument in time order.
type PriceSeries struct {
	Symbol string
	Points []PricePoint
}

// Len returns the number of observations.
func (p PriceSeries) Len() int { return len(p.Points) }

// Times returns the time index.
func (p PriceSeries) Times() []time.Time {
	ts := make([]time.Time, len(p.Points))
	for i, pt := range p.Points {
		ts[i] = pt.Time
	}
	return ts
}

// Prices returns the price column.
func (p PriceSeries) Prices() []float64 {
	ps := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		ps[i] = pt.Price
	}
	return ps
}

// Last returns the final observation. The series must not be empty.
func (p PriceSeries) Last() PricePoint { return p.Points[len(p.Points)-1] }
