package strategy

import (
	"fmt"
	"math"
)

// Config parameterizes the EWMAC pipeline. Every field is required.
type Config struct {
	FastSpan    int
	SlowSpan    int
	VolLookback int
	CapMin      float64
	CapMax      float64
}

// Validate checks that the spans are positive and the caps form a range.
func (c Config) Validate() error {
	if c.FastSpan <= 0 {
		return fmt.Errorf("fast span must be positive, got %d", c.FastSpan)
	}
	if c.SlowSpan <= 0 {
		return fmt.Errorf("slow span must be positive, got %d", c.SlowSpan)
	}
	if c.VolLookback <= 0 {
		return fmt.Errorf("vol lookback must be positive, got %d", c.VolLookback)
	}
	if math.IsNaN(c.CapMin) || math.IsNaN(c.CapMax) || math.IsInf(c.CapMin, 0) || math.IsInf(c.CapMax, 0) {
		return fmt.Errorf("caps must be finite")
	}
	if c.CapMin >= c.CapMax {
		return fmt.Errorf("cap min %.4g must be below cap max %.4g", c.CapMin, c.CapMax)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("EWMAC(%d,%d) vol=%d cap=[%g,%g]", c.FastSpan, c.SlowSpan, c.VolLookback, c.CapMin, c.CapMax)
}
