package csvschema

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/csvtrace/csvtrace/internal/csvtypes"
)

// isoInstant matches spec.md §6's axis instant pattern:
// ^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z$
var isoInstant = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z$`)

// IsMissing reports whether a raw field counts as absent for inference and
// filtering purposes: empty, or whitespace-only.
func IsMissing(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0
}

// ParseNumeric parses b as a numeric value. The returned bool is false for a
// missing field or an unparseable one; the caller treats both as NaN, per
// spec.md §4.3. kind selects the parser (integer kinds reject text that is
// not an integer); the working representation is always float64 (see
// DESIGN.md).
func ParseNumeric(b []byte, kind csvtypes.NumericKind) (float64, bool) {
	if IsMissing(b) {
		return 0, false
	}
	s := string(bytes.TrimSpace(b))
	switch kind {
	case csvtypes.KindI32, csvtypes.KindI64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return float64(n), true
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
}

// classifyNumeric inspects the non-missing sample values and returns the
// narrowest numeric kind all of them parse under, preferring integers over
// floats and 32-bit width over 64-bit, or ok=false if any value fails to
// parse as a number at all.
func classifyNumeric(samples [][]byte) (kind csvtypes.NumericKind, ok bool) {
	allInt := true
	fitsI32 := true
	fitsF32 := true
	seenAny := false
	for _, b := range samples {
		if IsMissing(b) {
			continue
		}
		s := string(bytes.TrimSpace(b))
		seenAny = true
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			if n > math.MaxInt32 || n < math.MinInt32 {
				fitsI32 = false
			}
			continue
		}
		allInt = false
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		if float64(float32(f)) != f {
			fitsF32 = false
		}
	}
	if !seenAny {
		return 0, false
	}
	switch {
	case allInt && fitsI32:
		return csvtypes.KindI32, true
	case allInt:
		return csvtypes.KindI64, true
	case fitsF32:
		return csvtypes.KindF32, true
	default:
		return csvtypes.KindF64, true
	}
}

// classifyAxis inspects sampled raw axis bytes and picks the first kind,
// in the order spec.md §6 fixes (int64, float64, ISO-UTC instant, string),
// that every sample parses under.
func classifyAxis(samples [][]byte) csvtypes.AxisKind {
	allInt, allFloat, allInstant := true, true, true
	for _, b := range samples {
		s := string(bytes.TrimSpace(b))
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			allFloat = false
		}
		if !isoInstant.Match(bytes.TrimSpace(b)) {
			allInstant = false
		}
	}
	switch {
	case allInt:
		return csvtypes.AxisInt64
	case allFloat:
		return csvtypes.AxisFloat64
	case allInstant:
		return csvtypes.AxisInstant
	default:
		return csvtypes.AxisString
	}
}

// ParseAxis parses a raw axis field under the given kind. ok is false only
// for malformed input under an orderable kind (missing/garbled axis values
// have no NaN equivalent — the row is treated as malformed, per spec.md §4.3
// MalformedRow policy, not silently coerced).
func ParseAxis(b []byte, kind csvtypes.AxisKind) (csvtypes.AxisValue, bool) {
	s := string(bytes.TrimSpace(b))
	switch kind {
	case csvtypes.AxisInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return csvtypes.AxisValue{}, false
		}
		return csvtypes.AxisValue{Kind: kind, I64: n}, true
	case csvtypes.AxisFloat64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return csvtypes.AxisValue{}, false
		}
		return csvtypes.AxisValue{Kind: kind, F64: f}, true
	case csvtypes.AxisInstant:
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return csvtypes.AxisValue{}, false
		}
		return csvtypes.AxisValue{Kind: kind, I64: t.UnixNano()}, true
	default:
		return csvtypes.AxisValue{Kind: csvtypes.AxisString, Str: s}, true
	}
}
