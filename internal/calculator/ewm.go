package calculator

import (
	"errors"
	"math"

	"TrendSentinel/internal/series"
)

var errSpan = errors.New("span must be positive")

// Alpha returns the smoothing factor for a span: 2/(span+1).
func Alpha(span int) float64 {
	return 2.0 / (float64(span) + 1.0)
}

// EWMAMean computes the exponentially weighted mean with finite-history weights.
//
// The value at i is sum((1-a)^k * x[i-k]) / sum((1-a)^k) over the observations
// present so far. Missing observations contribute nothing but still age the
// weights of older ones. Points before the first observation are missing.
func EWMAMean(values []series.Value, span int) ([]series.Value, error) {
	if span <= 0 {
		return nil, errSpan
	}
	decay := 1 - Alpha(span)
	out := make([]series.Value, len(values))

	var (
		mean    float64
		started bool
		oldWt   = 1.0
	)
	for i, v := range values {
		cur, ok := v.Get()
		switch {
		case started:
			oldWt *= decay
			if ok {
				// constant runs stay exact
				if mean != cur {
					mean = (oldWt*mean + cur) / (oldWt + 1)
				}
				oldWt++
			}
		case ok:
			mean = cur
			started = true
		}
		if started {
			out[i] = series.Some(mean)
		} else {
			out[i] = series.Missing
		}
	}
	return out, nil
}

// EWMVar computes the bias-corrected exponentially weighted variance using the
// same weighting as EWMAMean.
//
// The weighted population variance is scaled by (sum w)^2 / ((sum w)^2 - sum w^2),
// so the first observation (and everything before it) is missing.
func EWMVar(values []series.Value, span int) ([]series.Value, error) {
	if span <= 0 {
		return nil, errSpan
	}
	decay := 1 - Alpha(span)
	out := make([]series.Value, len(values))

	var (
		mean, cov     float64
		started       bool
		sumWt, sumWt2 = 1.0, 1.0
		oldWt         = 1.0
	)
	for i, v := range values {
		cur, ok := v.Get()
		switch {
		case started:
			sumWt *= decay
			sumWt2 *= decay * decay
			oldWt *= decay
			if ok {
				oldMean := mean
				if mean != cur {
					mean = (oldWt*oldMean + cur) / (oldWt + 1)
				}
				d := oldMean - mean
				cov = (oldWt*(cov+d*d) + (cur-mean)*(cur-mean)) / (oldWt + 1)
				sumWt++
				sumWt2++
				oldWt++
			}
		case ok:
			mean = cur
			started = true
		}

		if !started {
			out[i] = series.Missing
			continue
		}
		num := sumWt * sumWt
		den := num - sumWt2
		if den <= 0 {
			out[i] = series.Missing
			continue
		}
		out[i] = series.Some(num / den * cov)
	}
	return out, nil
}

// EWMStd is the square root of EWMVar.
func EWMStd(values []series.Value, span int) ([]series.Value, error) {
	vars, err := EWMVar(values, span)
	if err != nil {
		return nil, err
	}
	for i, v := range vars {
		if x, ok := v.Get(); ok {
			vars[i] = series.Some(math.Sqrt(math.Max(x, 0)))
		}
	}
	return vars, nil
}

// ForecastScalar normalizes EWMAC magnitudes across fast spans: 10/sqrt(fastSpan).
func ForecastScalar(fastSpan int) float64 {
	return 10 / math.Sqrt(float64(fastSpan))
}
