// Package xindex implements C2: a sparse mapping from axis value to row
// index, sampled every K rows during the Row Index's streaming pass, and
// later used to locate the row range covered by a requested viewport
// without scanning the file.
//
// The binary-search-over-samples-then-bounded-linear-refinement shape is
// grounded on the teacher's incremental "resume point" check in
// internal/conv/tailer.go (readNewData's offset tracking) generalized from
// "where did I leave off" to "where does this axis value fall."
package xindex

import (
	"sort"

	"github.com/csvtrace/csvtrace/internal/csvschema"
	"github.com/csvtrace/csvtrace/internal/csvtypes"
	"github.com/csvtrace/csvtrace/internal/engerr"
)

// DefaultK is the default sampling stride in rows, per spec.md §3.
const DefaultK = 1000

// Index is the Sparse X Index: a strictly-increasing-by-row sequence of
// (axis_value, row) samples.
type Index struct {
	Kind    csvtypes.AxisKind
	K       int
	Samples []csvtypes.XSample

	last csvtypes.AxisValue
	have bool
}

// New creates an empty Sparse X Index for the given axis kind and stride.
func New(kind csvtypes.AxisKind, k int) *Index {
	if k <= 0 {
		k = DefaultK
	}
	return &Index{Kind: kind, K: k}
}

// RowFunc matches rowindex.RowFunc's signature so a xindex.Index can be
// driven directly off rowindex.Build/AppendFrom's callback.
type RowFunc func(row int64, line []byte) error

// Observer returns a rowindex.RowFunc-compatible callback that samples every
// K-th row's axis value and checks monotonicity on every row, per spec.md
// §4.2 ("On each append, if axis_value < previous sample's value, the file
// is rejected as non-monotonic"), comparing each row against the previous
// row. The last indexed row is not sampled here unless it falls on a K
// boundary; the caller adds it with SampleTail.
func (ix *Index) Observer() RowFunc {
	return func(row int64, line []byte) error {
		return ix.observe(row, line)
	}
}

// observe checks every row's axis value for monotonicity — not just sampled
// rows — since a decrease between two K-boundary samples would otherwise go
// undetected (spec.md §8 scenario 7 cites the exact offending row, however
// far it falls from a sample boundary). Only rows on the K stride are kept
// as samples; the rest only update the running monotonicity check.
func (ix *Index) observe(row int64, line []byte) error {
	v, ok := csvschema.ParseAxis(firstField(line), ix.Kind)
	if !ok {
		return engerr.AtRow(engerr.IoError, "malformed axis value", row)
	}
	if err := ix.checkMonotonic(v, row); err != nil {
		return err
	}
	ix.last = v
	ix.have = true
	if row%int64(ix.K) == 0 {
		ix.Samples = append(ix.Samples, csvtypes.XSample{Value: v, Row: row})
	}
	return nil
}

// SampleTail forces a sample of a specific row (used to guarantee the last
// indexed row is always present in the sparse index, per spec.md §3, even
// when it doesn't land on a K boundary). The row must already have passed
// through observe, so no monotonicity check is repeated here.
func (ix *Index) SampleTail(row int64, axisBytes []byte) error {
	v, ok := csvschema.ParseAxis(axisBytes, ix.Kind)
	if !ok {
		return engerr.AtRow(engerr.IoError, "malformed axis value", row)
	}
	if len(ix.Samples) > 0 && ix.Samples[len(ix.Samples)-1].Row == row {
		return nil
	}
	ix.Samples = append(ix.Samples, csvtypes.XSample{Value: v, Row: row})
	return nil
}

// checkMonotonic implements spec.md §4.2's rule verbatim: "if axis_value <
// previous [row's] value, the file is rejected as non-monotonic."
func (ix *Index) checkMonotonic(v csvtypes.AxisValue, row int64) error {
	if ix.have && ix.Kind.Orderable() && v.Compare(ix.last) < 0 {
		return engerr.AtRow(engerr.NonMonotonicAxis, "axis value decreased", row)
	}
	return nil
}

func firstField(line []byte) []byte {
	for i, b := range line {
		if b == ',' {
			return line[:i]
		}
	}
	return line
}

// Locate performs the binary search spec.md §4.2 describes: the row of the
// largest sample with axis_value <= target. For non-orderable axis kinds
// (opaque strings), forEnd selects row 0 for x_start lookups and the last
// indexed row for x_end lookups, since range-zoom is undefined there.
func (ix *Index) Locate(target csvtypes.AxisValue, forEnd bool, lastRow int64) int64 {
	if len(ix.Samples) == 0 {
		return 0
	}
	if !ix.Kind.Orderable() {
		if forEnd {
			return lastRow
		}
		return 0
	}
	n := len(ix.Samples)
	i := sort.Search(n, func(i int) bool {
		return ix.Samples[i].Value.Compare(target) > 0
	})
	// i is the first sample strictly greater than target; the largest
	// sample <= target is i-1.
	if i == 0 {
		return ix.Samples[0].Row
	}
	return ix.Samples[i-1].Row
}

// Range resolves (x_start, x_end) to a coarse (row_lo, row_hi) bracket via
// two Locate calls. The caller (C3-backed refinement) narrows this to exact
// inclusive boundaries within K rows, per spec.md §4.2.
func (ix *Index) Range(xStart, xEnd csvtypes.AxisValue, lastRow int64) (rowLo, rowHi int64) {
	rowLo = ix.Locate(xStart, false, lastRow)
	rowHi = ix.Locate(xEnd, true, lastRow)
	if rowHi < rowLo {
		rowHi = rowLo
	}
	return rowLo, rowHi
}

// RefineWindow returns the sampling stride K: the number of rows by which a
// caller widens a coarse bracket on each side so the bounded linear
// refinement never needs to scan more than K rows (spec.md §4.2: "a bounded
// linear refinement (<= K rows)").
func (ix *Index) RefineWindow() int64 {
	return int64(ix.K)
}
