package downsample

import (
	"math"
	"testing"
)

func makeSeries(n int, f func(i int) float64) ([]float64, []float64) {
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := 0; i < n; i++ {
		xs[i] = float64(i)
		ys[i] = f(i)
	}
	return xs, ys
}

func TestDownsampleUnderBudgetReturnsInput(t *testing.T) {
	xs, ys := makeSeries(10, func(i int) float64 { return float64(i) })
	outXs, outYs := Downsample(xs, ys, 20, DefaultMinMaxRatio)
	if len(outXs) != 10 || len(outYs) != 10 {
		t.Fatalf("expected unchanged input, got %d points", len(outXs))
	}
}

func TestDownsamplePreservesFirstAndLast(t *testing.T) {
	xs, ys := makeSeries(10000, func(i int) float64 { return math.Sin(float64(i) * 0.01) })
	outXs, outYs := Downsample(xs, ys, 200, DefaultMinMaxRatio)
	if outXs[0] != xs[0] || outYs[0] != ys[0] {
		t.Fatalf("first point not preserved: got (%v,%v) want (%v,%v)", outXs[0], outYs[0], xs[0], ys[0])
	}
	last := len(outXs) - 1
	if outXs[last] != xs[len(xs)-1] || outYs[last] != ys[len(ys)-1] {
		t.Fatalf("last point not preserved")
	}
}

func TestDownsampleOutputLenMatchesBudget(t *testing.T) {
	xs, ys := makeSeries(5000, func(i int) float64 { return float64(i % 37) })
	outXs, outYs := Downsample(xs, ys, 400, DefaultMinMaxRatio)
	if len(outXs) != 400 || len(outYs) != 400 {
		t.Fatalf("len = %d/%d, want 400", len(outXs), len(outYs))
	}
}

func TestDownsampleOutputStrictlyIncreasingX(t *testing.T) {
	xs, ys := makeSeries(5000, func(i int) float64 { return math.Sin(float64(i) * 0.05) })
	outXs, _ := Downsample(xs, ys, 300, DefaultMinMaxRatio)
	for i := 1; i < len(outXs); i++ {
		if outXs[i] <= outXs[i-1] {
			t.Fatalf("xs not strictly increasing at %d: %v <= %v", i, outXs[i], outXs[i-1])
		}
	}
}

func TestDownsampleNOutLessEqualTwo(t *testing.T) {
	xs, ys := makeSeries(100, func(i int) float64 { return float64(i) })
	outXs, outYs := Downsample(xs, ys, 2, DefaultMinMaxRatio)
	if len(outXs) != 2 {
		t.Fatalf("len = %d, want 2", len(outXs))
	}
	if outXs[0] != xs[0] || outXs[1] != xs[len(xs)-1] {
		t.Fatalf("nOut<=2 should yield exactly first/last")
	}
	if outYs[0] != ys[0] || outYs[1] != ys[len(ys)-1] {
		t.Fatalf("nOut<=2 should yield exactly first/last ys")
	}
}

func TestDownsampleAllNaNBucketPreservesGap(t *testing.T) {
	n := 1000
	xs, ys := makeSeries(n, func(i int) float64 {
		if i > 400 && i < 600 {
			return math.NaN()
		}
		return math.Sin(float64(i) * 0.02)
	})
	outXs, outYs := Downsample(xs, ys, 100, DefaultMinMaxRatio)

	foundNaN := false
	for _, y := range outYs {
		if math.IsNaN(y) {
			foundNaN = true
			break
		}
	}
	if !foundNaN {
		t.Fatal("expected at least one NaN to survive downsampling as a gap marker")
	}
	_ = outXs
}

func TestDownsampleDeterministic(t *testing.T) {
	xs, ys := makeSeries(3000, func(i int) float64 { return math.Cos(float64(i) * 0.03) })
	xs1, ys1 := Downsample(xs, ys, 150, DefaultMinMaxRatio)
	xs2, ys2 := Downsample(xs, ys, 150, DefaultMinMaxRatio)
	if len(xs1) != len(xs2) {
		t.Fatalf("lengths differ across runs")
	}
	for i := range xs1 {
		if xs1[i] != xs2[i] || (ys1[i] != ys2[i] && !(math.IsNaN(ys1[i]) && math.IsNaN(ys2[i]))) {
			t.Fatalf("output differs across runs at %d", i)
		}
	}
}
