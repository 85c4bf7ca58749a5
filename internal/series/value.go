package series

import (
	"math"
	"strconv"
)

// Value is a single series point that is either a finite number or missing.
// The zero Value is missing.
type Value struct {
	v  float64
	ok bool
}

// Missing is the undefined value.
var Missing = Value{}

// Some returns a defined Value. Non-finite inputs (NaN, ±Inf) become Missing.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing
	}
	return Value{v: v, ok: true}
}

// Get returns the number and whether it is defined.
func (x Value) Get() (float64, bool) { return x.v, x.ok }

// IsMissing reports whether the value is undefined.
func (x Value) IsMissing() bool { return !x.ok }

func (x Value) String() string {
	if !x.ok {
		return "missing"
	}
	return strconv.FormatFloat(x.v, 'g', -1, 64)
}

// Sub returns x-y, missing if either operand is missing.
func (x Value) Sub(y Value) Value {
	if !x.ok || !y.ok {
		return Missing
	}
	return Some(x.v - y.v)
}

// Mul returns x*y, missing if either operand is missing.
func (x Value) Mul(y Value) Value {
	if !x.ok || !y.ok {
		return Missing
	}
	return Some(x.v * y.v)
}

// Div returns x/y. Division by a missing or zero divisor is missing.
func (x Value) Div(y Value) Value {
	if !x.ok || !y.ok || y.v == 0 {
		return Missing
	}
	return Some(x.v / y.v)
}

// Clamp limits x to [lo, hi]. Missing stays missing.
func (x Value) Clamp(lo, hi float64) Value {
	if !x.ok {
		return Missing
	}
	return Value{v: math.Min(math.Max(x.v, lo), hi), ok: true}
}
