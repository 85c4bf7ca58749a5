package strategy

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"TrendSentinel/internal/model"
	"TrendSentinel/internal/series"
)

func priceSeries(prices ...float64) model.PriceSeries {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	ps := model.PriceSeries{Symbol: "TEST.JO", Points: make([]model.PricePoint, len(prices))}
	for i, p := range prices {
		ps.Points[i] = model.PricePoint{Time: t0.AddDate(0, 0, i), Price: p}
	}
	return ps
}

func randomWalk(n int, seed int64) model.PriceSeries {
	rng := rand.New(rand.NewSource(seed))
	prices := make([]float64, n)
	p := 100.0
	for i := range prices {
		p *= 1 + rng.NormFloat64()*0.015
		prices[i] = p
	}
	return priceSeries(prices...)
}

var exampleCfg = Config{FastSpan: 2, SlowSpan: 8, VolLookback: 4, CapMin: -20, CapMax: 20}

func TestCompute_ExampleScenario(t *testing.T) {
	prices := priceSeries(100, 102, 101, 105, 103, 108, 110, 107, 111, 115)
	res, err := Compute(prices, exampleCfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Capped.Len() != 10 {
		t.Fatalf("expected 10 forecast points, got %d", res.Capped.Len())
	}
	if !res.Capped.At(0).IsMissing() || !res.Capped.At(1).IsMissing() {
		t.Error("expected the first two points to be missing")
	}
	for i := 2; i < 10; i++ {
		v, ok := res.Capped.At(i).Get()
		if !ok {
			t.Errorf("point %d unexpectedly missing", i)
			continue
		}
		if v < -20 || v > 20 {
			t.Errorf("point %d = %v outside caps", i, v)
		}
	}
	// steady uptrend pins the forecast at the upper cap
	if v, _ := res.Latest().Get(); v != 20 {
		t.Errorf("latest: got %v, want 20", v)
	}
	if math.Abs(res.Scalar-10/math.Sqrt2) > 1e-12 {
		t.Errorf("scalar: got %v", res.Scalar)
	}
}

func TestCompute_IntermediateSeries(t *testing.T) {
	res, err := Compute(priceSeries(100, 102, 101, 105, 103, 108, 110, 107, 111, 115), exampleCfg)
	if err != nil {
		t.Fatal(err)
	}
	checks := []struct {
		name string
		s    series.Series
		i    int
		want float64
	}{
		{"price", res.Price, 0, 100},
		{"price", res.Price, 9, 115},
		{"fast", res.Fast, 1, 101.5},
		{"fast", res.Fast, 9, 113.2892561983471},
		{"slow", res.Slow, 1, 101.125},
		{"slow", res.Slow, 9, 109.1462056455157},
		{"vol", res.Vol, 2, 0.02107455504712846},
		{"vol", res.Vol, 9, 0.0282478208335988},
	}
	for _, c := range checks {
		v, ok := c.s.At(c.i).Get()
		if !ok || math.Abs(v-c.want) > 1e-9 {
			t.Errorf("%s[%d]: got %v, want %v", c.name, c.i, c.s.At(c.i), c.want)
		}
	}
	raw, _ := res.Raw.At(9).Get()
	if math.Abs(raw-(113.2892561983471-109.1462056455157)) > 1e-9 {
		t.Errorf("raw[9]: got %v", raw)
	}
}

func TestCompute_InvalidInput(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		prices model.PriceSeries
	}{
		{"empty", model.PriceSeries{Symbol: "X"}},
		{"single", priceSeries(100)},
		{"zero price", priceSeries(100, 0, 101)},
		{"negative price", priceSeries(100, -5, 101)},
		{"nan price", priceSeries(100, math.NaN(), 101)},
		{"unordered", model.PriceSeries{Symbol: "X", Points: []model.PricePoint{
			{Time: t0.AddDate(0, 0, 1), Price: 100},
			{Time: t0, Price: 101},
		}}},
		{"duplicate timestamp", model.PriceSeries{Symbol: "X", Points: []model.PricePoint{
			{Time: t0, Price: 100},
			{Time: t0, Price: 101},
		}}},
	}
	for _, tt := range tests {
		res, err := Compute(tt.prices, exampleCfg)
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tt.name, err)
		}
		if res != nil {
			t.Errorf("%s: expected no partial output", tt.name)
		}
	}
}

func TestCompute_InvalidConfig(t *testing.T) {
	prices := priceSeries(100, 101, 102)
	bad := []Config{
		{FastSpan: 0, SlowSpan: 8, VolLookback: 4, CapMin: -20, CapMax: 20},
		{FastSpan: 2, SlowSpan: -1, VolLookback: 4, CapMin: -20, CapMax: 20},
		{FastSpan: 2, SlowSpan: 8, VolLookback: 0, CapMin: -20, CapMax: 20},
		{FastSpan: 2, SlowSpan: 8, VolLookback: 4, CapMin: 20, CapMax: 20},
		{FastSpan: 2, SlowSpan: 8, VolLookback: 4, CapMin: math.Inf(-1), CapMax: 20},
	}
	for _, cfg := range bad {
		if _, err := Compute(prices, cfg); err == nil {
			t.Errorf("%s: expected config error", cfg)
		}
	}
}

func TestCompute_ConstantSeriesGivesMissing(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 42
	}
	res, err := Compute(priceSeries(prices...), exampleCfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < res.Capped.Len(); i++ {
		if raw, _ := res.Raw.At(i).Get(); math.Abs(raw) > 1e-12 {
			t.Errorf("raw[%d] = %v, want ~0", i, raw)
		}
		if !res.Capped.At(i).IsMissing() {
			t.Errorf("capped[%d] = %v, want missing", i, res.Capped.At(i))
		}
	}
}

func TestCompute_LengthAndCaps(t *testing.T) {
	cfg := Config{FastSpan: 16, SlowSpan: 64, VolLookback: 25, CapMin: -20, CapMax: 20}
	for seed := int64(1); seed <= 5; seed++ {
		prices := randomWalk(cfg.VolLookback+cfg.SlowSpan+50, seed)
		res, err := Compute(prices, cfg)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if res.Capped.Len() != prices.Len() {
			t.Fatalf("seed %d: length %d, want %d", seed, res.Capped.Len(), prices.Len())
		}
		first := res.Capped.FirstDefined()
		if first != 2 {
			t.Errorf("seed %d: first defined point at %d, want 2", seed, first)
		}
		for i := first; i < res.Capped.Len(); i++ {
			v, ok := res.Capped.At(i).Get()
			if !ok {
				t.Errorf("seed %d: point %d missing after warm-up", seed, i)
				continue
			}
			if v < cfg.CapMin || v > cfg.CapMax {
				t.Errorf("seed %d: point %d = %v outside caps", seed, i, v)
			}
		}
	}
}

func TestCompute_Idempotent(t *testing.T) {
	cfg := Config{FastSpan: 8, SlowSpan: 32, VolLookback: 25, CapMin: -20, CapMax: 20}
	prices := randomWalk(200, 7)
	a, err := Compute(prices, cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compute(prices, cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < a.Capped.Len(); i++ {
		av, aok := a.Capped.At(i).Get()
		bv, bok := b.Capped.At(i).Get()
		if aok != bok || av != bv {
			t.Fatalf("point %d differs: %v vs %v", i, a.Capped.At(i), b.Capped.At(i))
		}
	}
}

func TestCompute_LongerFastSpanIsSmoother(t *testing.T) {
	prices := randomWalk(300, 11)
	variance := func(fast int) float64 {
		res, err := Compute(prices, Config{FastSpan: fast, SlowSpan: 64, VolLookback: 25, CapMin: -20, CapMax: 20})
		if err != nil {
			t.Fatal(err)
		}
		// variance of day-to-day changes of the fast average
		var diffs []float64
		for i := 1; i < res.Fast.Len(); i++ {
			cur, _ := res.Fast.At(i).Get()
			prev, _ := res.Fast.At(i - 1).Get()
			diffs = append(diffs, cur-prev)
		}
		var mean, ss float64
		for _, d := range diffs {
			mean += d
		}
		mean /= float64(len(diffs))
		for _, d := range diffs {
			ss += (d - mean) * (d - mean)
		}
		return ss / float64(len(diffs))
	}
	prev := variance(2)
	for _, fast := range []int{4, 8, 16, 32} {
		cur := variance(fast)
		if cur >= prev {
			t.Errorf("fast span %d: variance %v not below %v", fast, cur, prev)
		}
		prev = cur
	}
}

func TestCompute_ScalarForSixteen(t *testing.T) {
	res, err := Compute(randomWalk(100, 3), Config{FastSpan: 16, SlowSpan: 64, VolLookback: 25, CapMin: -20, CapMax: 20})
	if err != nil {
		t.Fatal(err)
	}
	if res.Scalar != 2.5 {
		t.Errorf("scalar: got %v, want 2.5", res.Scalar)
	}
}

func TestCompute_AcceptsAnySlowSpan(t *testing.T) {
	// slow faster than fast is unusual but valid
	res, err := Compute(randomWalk(60, 5), Config{FastSpan: 16, SlowSpan: 3, VolLookback: 10, CapMin: -5, CapMax: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Capped.Len() != 60 {
		t.Errorf("length: got %d", res.Capped.Len())
	}
}
