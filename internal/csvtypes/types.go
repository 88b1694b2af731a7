// Package csvtypes holds the value and schema types shared by every stage of
// the streaming engine (row index, x index, ranged reader, schema/filter,
// downsampler, viewport coordinator, follower, trace assembler). Keeping them
// in one leaf package avoids import cycles between those stages.
package csvtypes

import (
	"fmt"
	"math"
	"time"
)

// AxisKind identifies how the first CSV column is interpreted.
type AxisKind int

const (
	AxisInt64 AxisKind = iota
	AxisFloat64
	AxisInstant
	AxisString
)

func (k AxisKind) String() string {
	switch k {
	case AxisInt64:
		return "int64"
	case AxisFloat64:
		return "float64"
	case AxisInstant:
		return "instant"
	case AxisString:
		return "string"
	default:
		return "unknown"
	}
}

// Orderable reports whether the axis kind supports range comparisons. Opaque
// strings are comparable only for equality/lexicographic ordering, and are
// not eligible for range-zoom per spec.md §3.
func (k AxisKind) Orderable() bool {
	return k == AxisInt64 || k == AxisFloat64 || k == AxisInstant
}

// NumericKind identifies the storage type of a retained data column.
type NumericKind int

const (
	KindI32 NumericKind = iota
	KindI64
	KindF32
	KindF64
)

func (k NumericKind) String() string {
	switch k {
	case KindI32:
		return "int32"
	case KindI64:
		return "int64"
	case KindF32:
		return "float32"
	case KindF64:
		return "float64"
	default:
		return "unknown"
	}
}

// AxisValue is a tagged union over the four axis kinds. Comparisons
// dispatch on Kind; for AxisInstant, I64 holds UTC nanoseconds since epoch,
// and Compare orders two int64 or two instant values by I64 directly.
// Arithmetic (the downsampler's) runs on Float(), so instants enter it as
// float64 nanoseconds, not as signed 64-bit integers.
type AxisValue struct {
	Kind AxisKind
	I64  int64
	F64  float64
	Str  string
}

// Float returns the axis value as a float64 for orderable kinds: the native
// value for float/int axes, and the stored nanoseconds converted to float64
// for instants.
func (a AxisValue) Float() float64 {
	switch a.Kind {
	case AxisInt64:
		return float64(a.I64)
	case AxisInstant:
		return float64(a.I64)
	case AxisFloat64:
		return a.F64
	default:
		return math.NaN()
	}
}

// Compare returns -1, 0, or 1. For AxisString it is lexicographic; for the
// three orderable kinds it compares the underlying numeric/instant value
// (as int64 when both sides are int64 or both are instants).
func (a AxisValue) Compare(b AxisValue) int {
	if a.Kind == AxisString || b.Kind == AxisString {
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	}
	if a.Kind == b.Kind && (a.Kind == AxisInt64 || a.Kind == AxisInstant) {
		switch {
		case a.I64 < b.I64:
			return -1
		case a.I64 > b.I64:
			return 1
		default:
			return 0
		}
	}
	af, bf := a.Float(), b.Float()
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	default:
		return 0
	}
}

// Instant converts an AxisInstant value's stored nanoseconds to a UTC Time,
// for local-time display conversion at the presentation boundary. Internal
// comparisons never call this — they use the nanosecond int64 directly.
func (a AxisValue) Instant() time.Time {
	return time.Unix(0, a.I64).UTC()
}

func (a AxisValue) String() string {
	switch a.Kind {
	case AxisInt64:
		return fmt.Sprintf("%d", a.I64)
	case AxisFloat64:
		return fmt.Sprintf("%g", a.F64)
	case AxisInstant:
		return a.Instant().Format(time.RFC3339Nano)
	default:
		return a.Str
	}
}

// ColumnRole distinguishes the axis column from retained/dropped data columns.
type ColumnRole int

const (
	RoleAxis ColumnRole = iota
	RoleNumeric
	RoleDropped
)

// Column describes one CSV header field after inference/filtering.
type Column struct {
	Name    string
	Role    ColumnRole
	Numeric NumericKind // meaningful only when Role == RoleNumeric
	Index   int         // position in the CSV header, 0-based
}

// QualityIssue is a per-column filter verdict, per spec.md §4.4.
type QualityIssue struct {
	Column string
	Issue  string // "AllMissing" | "HighMissingRatio" | "NonNumeric"
	Ratio  float64
}

const (
	IssueAllMissing       = "AllMissing"
	IssueHighMissingRatio = "HighMissingRatio"
	IssueNonNumeric       = "NonNumeric"
)

// Schema is the immutable, post-inference column layout for an open file.
// Built once from the prefix sample (spec.md §4.4) and frozen for the life
// of the handle.
type Schema struct {
	AxisName string
	AxisKind AxisKind
	// Columns holds every header field in file order, including the axis
	// (at index 0, Role == RoleAxis) and dropped columns, so callers can
	// report quality against the original header.
	Columns []Column
}

// NumericColumns returns the retained (Role == RoleNumeric) columns in file order.
func (s Schema) NumericColumns() []Column {
	out := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.Role == RoleNumeric {
			out = append(out, c)
		}
	}
	return out
}

// RowEntry is one data row's location in the file: byte offset and length,
// excluding the line terminator (spec.md §3 Row Index).
type RowEntry struct {
	Offset int64
	Length int64
}

// XSample is one entry of the Sparse X Index: the axis value at a sampled
// row and that row's index (spec.md §3 Sparse X Index).
type XSample struct {
	Value AxisValue
	Row   int64
}
