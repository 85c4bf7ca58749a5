package calculator

import "TrendSentinel/internal/series"

// PctChange returns price[i]/price[i-1] - 1. The first point, and any point
// whose previous price is zero, is missing.
func PctChange(prices []float64) []series.Value {
	out := make([]series.Value, len(prices))
	for i := range prices {
		if i == 0 {
			out[i] = series.Missing
			continue
		}
		out[i] = series.Some(prices[i]).Div(series.Some(prices[i-1])).Sub(series.Some(1))
	}
	return out
}
