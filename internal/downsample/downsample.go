// Package downsample implements C5: a two-phase MinMaxLTTB reducer that
// shrinks a (xs, ys) series to a fixed visual budget while preserving
// extrema, shape, and NaN gaps.
//
// There is no teacher precedent for this numerical algorithm (the teacher is
// a terminal/conversation adapter, not a charting engine) — it is built
// directly from spec.md §4.5's description, in the teacher's plain-function,
// no-generics-where-a-concrete-type-suffices style, following the same
// "operate on raw slices, return new slices" shape the teacher uses for
// line buffering in internal/conv/buffer-adjacent code.
package downsample

import "math"

// DefaultMinMaxRatio is spec.md §6's default minmax_ratio.
const DefaultMinMaxRatio = 4

// Downsample implements the downsample(xs, ys, n_out, minmax_ratio) contract
// of spec.md §4.5. len(xs) must equal len(ys). If len(xs) <= nOut the input
// is returned unchanged (by reference, not copied).
func Downsample(xs, ys []float64, nOut, minMaxRatio int) ([]float64, []float64) {
	n := len(xs)
	if n <= nOut {
		return xs, ys
	}
	idx := SelectIndices(xs, ys, nOut, minMaxRatio)
	outXs := make([]float64, len(idx))
	outYs := make([]float64, len(idx))
	for i, j := range idx {
		outXs[i] = xs[j]
		outYs[i] = ys[j]
	}
	return outXs, outYs
}

// SelectIndices runs the same two-phase algorithm as Downsample but returns
// the chosen absolute indices into xs/ys instead of copied values, so a
// caller holding a richer per-index representation (e.g. the Trace
// Assembler's original axis values) can re-anchor the result without losing
// type information Downsample's float64 xs can't carry (spec.md §4.3's
// "chunk carries the absolute row indices... so the downsampler can
// re-anchor xs later").
func SelectIndices(xs, ys []float64, nOut, minMaxRatio int) []int {
	if minMaxRatio <= 0 {
		minMaxRatio = DefaultMinMaxRatio
	}
	n := len(xs)
	if n <= nOut {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	if nOut <= 2 {
		return []int{0, n - 1}
	}

	candidates := minMaxPreselect(xs, ys, nOut*minMaxRatio)
	return lttbRefineIndices(xs, ys, candidates, nOut)
}

// minMaxPreselect partitions the interior into nOut*minMaxRatio/2 equal-width
// index buckets and keeps the index of the min and max y within each, plus
// the first and last index, sorted ascending. NaN values are skipped for the
// extremum comparison; an all-NaN bucket still contributes its first index
// (with NaN y) so the gap survives into phase two, per spec.md §4.5.
func minMaxPreselect(xs, ys []float64, budget int) []int {
	n := len(xs)
	last := n - 1

	numBuckets := budget / 2
	if numBuckets < 1 {
		numBuckets = 1
	}

	interior := last - 1 // indices 1..last-1 are the interior
	if interior <= 0 {
		return []int{0, last}
	}

	out := make([]int, 0, budget+2)
	out = append(out, 0)

	bucketWidth := float64(interior) / float64(numBuckets)
	for b := 0; b < numBuckets; b++ {
		lo := 1 + int(math.Floor(float64(b)*bucketWidth))
		hi := 1 + int(math.Floor(float64(b+1)*bucketWidth))
		if hi > last {
			hi = last
		}
		if lo >= hi {
			continue
		}

		minIdx, maxIdx := -1, -1
		minVal, maxVal := math.Inf(1), math.Inf(-1)
		for i := lo; i < hi; i++ {
			if math.IsNaN(ys[i]) {
				continue
			}
			if ys[i] < minVal {
				minVal = ys[i]
				minIdx = i
			}
			if ys[i] > maxVal {
				maxVal = ys[i]
				maxIdx = i
			}
		}
		if minIdx == -1 {
			// Entire bucket is NaN: preserve the gap via the bucket's first index.
			out = append(out, lo)
			continue
		}
		if minIdx == maxIdx {
			out = append(out, minIdx)
		} else if minIdx < maxIdx {
			out = append(out, minIdx, maxIdx)
		} else {
			out = append(out, maxIdx, minIdx)
		}
	}

	out = append(out, last)
	return dedupSorted(out)
}

func dedupSorted(idx []int) []int {
	out := idx[:0:0]
	var prev int
	for i, v := range idx {
		if i == 0 || v != prev {
			out = append(out, v)
		}
		prev = v
	}
	return out
}

// lttbRefineIndices applies Largest-Triangle-Three-Buckets over the
// preselected candidate indices, per spec.md §4.5 phase two. Always keeps
// the first and last candidate; partitions the interior candidates into
// nOut-2 buckets and picks, in each, the candidate maximizing triangle area
// against the previously kept point and the average of the next bucket.
func lttbRefineIndices(xs, ys []float64, candidates []int, nOut int) []int {
	m := len(candidates)
	if m <= nOut {
		return candidates
	}

	out := make([]int, 0, nOut)

	first, last := candidates[0], candidates[m-1]
	out = append(out, first)

	interior := candidates[1 : m-1]
	numBuckets := nOut - 2
	bucketSize := float64(len(interior)) / float64(numBuckets)

	kept := first
	for b := 0; b < numBuckets; b++ {
		lo := int(math.Floor(float64(b) * bucketSize))
		hi := int(math.Floor(float64(b+1) * bucketSize))
		if hi > len(interior) {
			hi = len(interior)
		}
		if lo >= hi {
			continue
		}
		bucket := interior[lo:hi]

		// Average point of the NEXT bucket (or the last point, on the final
		// bucket), per the LTTB reference algorithm.
		var avgX, avgY float64
		nextLo := hi
		nextHi := int(math.Floor(float64(b+2) * bucketSize))
		if b == numBuckets-1 {
			avgX, avgY = xs[last], ys[last]
		} else {
			if nextHi > len(interior) {
				nextHi = len(interior)
			}
			if nextLo >= nextHi {
				avgX, avgY = xs[last], ys[last]
			} else {
				nextBucket := interior[nextLo:nextHi]
				avgX, avgY = averagePoint(xs, ys, nextBucket)
			}
		}

		bestIdx := bucket[0]
		bestArea := -1.0
		ax, ay := xs[kept], ys[kept]
		for _, j := range bucket {
			area := triangleArea(ax, ay, xs[j], ys[j], avgX, avgY)
			if area > bestArea {
				bestArea = area
				bestIdx = j
			}
		}
		out = append(out, bestIdx)
		kept = bestIdx
	}

	out = append(out, last)
	return out
}

func averagePoint(xs, ys []float64, idxs []int) (float64, float64) {
	if len(idxs) == 0 {
		return 0, 0
	}
	var sx, sy float64
	var count float64
	for _, i := range idxs {
		if math.IsNaN(ys[i]) {
			continue
		}
		sx += xs[i]
		sy += ys[i]
		count++
	}
	if count == 0 {
		return xs[idxs[0]], math.NaN()
	}
	return sx / count, sy / count
}

// triangleArea computes the area of the triangle (a, j, avg) per spec.md
// §4.5's formula. NaN participants contribute zero area so a gap candidate
// never outcompetes a real point but is still eligible to be chosen when
// every candidate in its bucket is NaN.
func triangleArea(ax, ay, jx, jy, avgX, avgY float64) float64 {
	if math.IsNaN(ay) || math.IsNaN(jy) || math.IsNaN(avgY) {
		return 0
	}
	return 0.5 * math.Abs((ax-avgX)*(jy-ay)-(ax-jx)*(avgY-ay))
}
