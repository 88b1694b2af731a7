// Package trace implements C8: applying the downsampler to a ranged-read
// chunk to produce one display series per retained numeric column.
//
// Grounded on the teacher's ConversationBuffer-adjacent fan-out shape (one
// transform applied uniformly across a set of named streams) generalized
// from "per-conversation buffer" to "per-column series."
package trace

import (
	"math"

	"github.com/csvtrace/csvtrace/internal/csvtypes"
	"github.com/csvtrace/csvtrace/internal/downsample"
	"github.com/csvtrace/csvtrace/internal/ranged"
)

// Series is one column's display-ready downsampled trace.
type Series struct {
	Column      string
	Xs          []csvtypes.AxisValue
	Ys          []float64
	GapsPresent bool
}

// Identity is the stable trace identity spec.md §4.8 requires: (column
// name, epoch). Two Series from different fetches with the same Identity
// refer to the same logical trace even as its data is replaced.
type Identity struct {
	Column string
	Epoch  uint64
}

// Assemble applies the downsampler to every retained numeric column in
// chunk, using the shared axis array, producing one Series per column.
// AxisValue.Float converts the chunk's axis to the float64 arithmetic
// domain the downsampler operates in (nanoseconds for instants, native
// value otherwise), per spec.md §4.5's axis-arithmetic rule.
func Assemble(chunk *ranged.Chunk, nOut, minMaxRatio int) []Series {
	xsFloat := make([]float64, len(chunk.Xs))
	for i, v := range chunk.Xs {
		xsFloat[i] = v.Float()
	}

	out := make([]Series, 0, len(chunk.Cols))
	for _, col := range chunk.Cols {
		if len(col.Values) == 0 {
			out = append(out, Series{Column: col.Name})
			continue
		}
		idx := downsample.SelectIndices(xsFloat, col.Values, nOut, minMaxRatio)
		s := Series{Column: col.Name, Xs: make([]csvtypes.AxisValue, len(idx)), Ys: make([]float64, len(idx))}
		for i, j := range idx {
			s.Xs[i] = chunk.Xs[j]
			s.Ys[i] = col.Values[j]
		}
		s.GapsPresent = anyNaN(s.Ys)
		out = append(out, s)
	}
	return out
}

// anyNaN reports whether a series carries at least one gap, per spec.md
// §4.8's gap policy: NaN preserved, never interpolated.
func anyNaN(ys []float64) bool {
	for _, y := range ys {
		if math.IsNaN(y) {
			return true
		}
	}
	return false
}
