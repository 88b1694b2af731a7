package csvschema

import (
	"strconv"
	"strings"

	"github.com/csvtrace/csvtrace/internal/csvtypes"
	"github.com/csvtrace/csvtrace/internal/engerr"
)

// SampleConfig controls how large the prefix sample is, per spec.md §3:
// "≥ 64 rows or 1% of rows, whichever larger." Since total row count is
// only known once the single streaming pass (shared with the Row Index,
// spec.md §4.2) completes, FileSize lets the Sampler estimate the total row
// count online from bytes-scanned-so-far and keep sampling until the
// estimate settles — see DESIGN.md for why this avoids a second pass.
type SampleConfig struct {
	MinRows  int
	Ratio    float64
	FileSize int64
}

// DefaultSampleConfig matches spec.md §6's stated defaults.
func DefaultSampleConfig(fileSize int64) SampleConfig {
	return SampleConfig{MinRows: 64, Ratio: 0.01, FileSize: fileSize}
}

// Sampler collects the bounded prefix sample used to infer the axis kind and
// per-column numeric kind, and to compute C4's quality verdicts. It is fed
// one row at a time via Observe, which the engine's rowindex.Build callback
// invokes during the single streaming pass (spec.md §4.2's "built jointly");
// rows added later by AppendFrom are not observed.
type Sampler struct {
	cfg    SampleConfig
	header []string

	axisSamples [][]byte
	colSamples  [][][]byte // colSamples[i] corresponds to header[i+1] (columns after the axis)

	rowsSeen  int64
	bytesSeen int64
	done      bool
}

// NewSampler creates a Sampler for the given raw header names; Build
// sanitizes them.
func NewSampler(header []string, cfg SampleConfig) *Sampler {
	if cfg.MinRows <= 0 {
		cfg.MinRows = 64
	}
	if cfg.Ratio <= 0 {
		cfg.Ratio = 0.01
	}
	numCols := len(header) - 1
	if numCols < 0 {
		numCols = 0
	}
	return &Sampler{
		cfg:        cfg,
		header:     header,
		colSamples: make([][][]byte, numCols),
	}
}

// Done reports whether enough rows have been observed.
func (s *Sampler) Done() bool { return s.done }

// Observe records one row's fields into the sample, if the target sample
// size (re-estimated as more of the file is seen) hasn't been reached yet.
// Field-count mismatches are ignored here — they are a read-time concern
// (spec.md §4.3 MalformedRow), not a sampling concern.
func (s *Sampler) Observe(line []byte) {
	if s.done {
		return
	}
	fields := SplitFields(line)
	s.bytesSeen += int64(len(line)) + 1
	s.rowsSeen++

	if len(fields) > 0 {
		s.axisSamples = append(s.axisSamples, append([]byte(nil), fields[0]...))
	}
	for i := 1; i < len(fields) && i-1 < len(s.colSamples); i++ {
		s.colSamples[i-1] = append(s.colSamples[i-1], append([]byte(nil), fields[i]...))
	}

	s.done = s.rowsSeen >= s.target()
}

// target returns the current estimate of required sample rows: MinRows,
// or Ratio * estimated-total-rows, whichever is larger.
func (s *Sampler) target() int64 {
	min := int64(s.cfg.MinRows)
	if s.bytesSeen == 0 || s.cfg.FileSize <= 0 {
		return min
	}
	avgBytesPerRow := float64(s.bytesSeen) / float64(s.rowsSeen)
	if avgBytesPerRow <= 0 {
		return min
	}
	estTotalRows := float64(s.cfg.FileSize) / avgBytesPerRow
	byRatio := int64(estTotalRows*s.cfg.Ratio + 0.5)
	if byRatio > min {
		return byRatio
	}
	return min
}

// Build finalizes the sample into a frozen Schema and the C4 quality report.
// It fails with NoNumericColumns if every data column is dropped.
func (s *Sampler) Build() (csvtypes.Schema, []csvtypes.QualityIssue, error) {
	names := SanitizeNames(s.header)
	axisKind := csvtypes.AxisString
	if len(s.axisSamples) > 0 {
		axisKind = classifyAxis(s.axisSamples)
	}

	columns := make([]csvtypes.Column, 0, len(names))
	columns = append(columns, csvtypes.Column{Name: names[0], Role: csvtypes.RoleAxis, Index: 0})

	var issues []csvtypes.QualityIssue
	numericKept := 0

	for i := 1; i < len(names); i++ {
		col := s.colSamples[i-1]
		missing := 0
		for _, b := range col {
			if IsMissing(b) {
				missing++
			}
		}
		total := len(col)
		allMissing := total > 0 && missing == total

		if allMissing {
			columns = append(columns, csvtypes.Column{Name: names[i], Role: csvtypes.RoleDropped, Index: i})
			issues = append(issues, csvtypes.QualityIssue{Column: names[i], Issue: csvtypes.IssueAllMissing})
			continue
		}

		kind, ok := classifyNumeric(col)
		if !ok {
			columns = append(columns, csvtypes.Column{Name: names[i], Role: csvtypes.RoleDropped, Index: i})
			issues = append(issues, csvtypes.QualityIssue{Column: names[i], Issue: csvtypes.IssueNonNumeric})
			continue
		}

		columns = append(columns, csvtypes.Column{Name: names[i], Role: csvtypes.RoleNumeric, Numeric: kind, Index: i})
		numericKept++

		if total > 0 {
			ratio := float64(missing) / float64(total)
			if ratio > 0.5 {
				issues = append(issues, csvtypes.QualityIssue{Column: names[i], Issue: csvtypes.IssueHighMissingRatio, Ratio: ratio})
			}
		}
	}

	if numericKept == 0 {
		return csvtypes.Schema{}, nil, engerr.New(engerr.NoNumericColumns, "no column retained after filtering")
	}

	return csvtypes.Schema{AxisName: names[0], AxisKind: axisKind, Columns: columns}, issues, nil
}

// SanitizeNames trims whitespace and surrounding quotes, and disambiguates
// duplicate/empty names, per spec.md §3 ("names unique after sanitization").
func SanitizeNames(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
			name = strings.TrimSpace(name[1 : len(name)-1])
		}
		if name == "" {
			name = "column_" + strconv.Itoa(i)
		}
		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = name + "_" + strconv.Itoa(n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}
