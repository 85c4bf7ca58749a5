// Package series holds index-aligned time series whose points may be missing.
//
// Every binary operation requires both operands to share the same index
// length; point i of the result depends only on point i of the operands, and a
// missing operand yields a missing result.
package series

import (
	"fmt"
	"time"
)

// Series is a time index with one Value per index entry.
type Series struct {
	Index  []time.Time
	Values []Value
}

// New builds a Series over index from plain numbers.
func New(index []time.Time, values []float64) Series {
	vs := make([]Value, len(values))
	for i, v := range values {
		vs[i] = Some(v)
	}
	return Series{Index: index, Values: vs}
}

// FromValues wraps already-optional values.
func FromValues(index []time.Time, values []Value) Series {
	return Series{Index: index, Values: values}
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Values) }

// At returns point i.
func (s Series) At(i int) Value { return s.Values[i] }

// Last returns the final point, or Missing for an empty series.
func (s Series) Last() Value {
	if len(s.Values) == 0 {
		return Missing
	}
	return s.Values[len(s.Values)-1]
}

// Defined returns the number of non-missing points.
func (s Series) Defined() int {
	n := 0
	for _, v := range s.Values {
		if !v.IsMissing() {
			n++
		}
	}
	return n
}

// FirstDefined returns the position of the first defined point, or -1.
func (s Series) FirstDefined() int {
	for i, v := range s.Values {
		if !v.IsMissing() {
			return i
		}
	}
	return -1
}

// Sub returns s-o pointwise.
func (s Series) Sub(o Series) Series {
	return s.zip(o, Value.Sub)
}

// Div returns s/o pointwise; zero or missing divisors give missing points.
func (s Series) Div(o Series) Series {
	return s.zip(o, Value.Div)
}

// Scale multiplies every defined point by k.
func (s Series) Scale(k float64) Series {
	return s.Map(func(v Value) Value { return v.Mul(Some(k)) })
}

// Clip clamps every defined point into [lo, hi].
func (s Series) Clip(lo, hi float64) Series {
	return s.Map(func(v Value) Value { return v.Clamp(lo, hi) })
}

// Map applies f to every point.
func (s Series) Map(f func(Value) Value) Series {
	out := make([]Value, len(s.Values))
	for i, v := range s.Values {
		out[i] = f(v)
	}
	return Series{Index: s.Index, Values: out}
}

func (s Series) zip(o Series, f func(Value, Value) Value) Series {
	if len(s.Values) != len(o.Values) {
		panic(fmt.Sprintf("series: length mismatch %d != %d", len(s.Values), len(o.Values)))
	}
	out := make([]Value, len(s.Values))
	for i := range s.Values {
		out[i] = f(s.Values[i], o.Values[i])
	}
	return Series{Index: s.Index, Values: out}
}
