// Package ranged implements C3: materializing a viewport-bounded slice of
// numeric columns straight from disk, with no long-lived file descriptor.
//
// The "open, seek to the start offset, read exactly the needed span, parse
// rows out of the buffer" shape is grounded on the teacher's readNewData in
// internal/conv/tailer.go (open -> stat -> seek -> scan -> close), adapted
// from "read everything new since offset" to "read exactly [row_lo, row_hi)."
package ranged

import (
	"io"
	"math"
	"os"

	"github.com/csvtrace/csvtrace/internal/csvschema"
	"github.com/csvtrace/csvtrace/internal/csvtypes"
	"github.com/csvtrace/csvtrace/internal/engerr"
	"github.com/csvtrace/csvtrace/internal/rowindex"
)

// Chunk is the columnar result of a ranged read: the axis array and one
// array per requested numeric column, plus the absolute row range they
// originated from so the downsampler can re-anchor xs later (spec.md §4.3).
type Chunk struct {
	RowLo, RowHi int64 // [RowLo, RowHi) requested; Hi exclusive

	Xs   []csvtypes.AxisValue
	Cols []ColumnData

	MalformedRows   int64
	MalformedFields int64

	// Truncated is set when the underlying read came up short (Read then
	// returns TruncatedRead or FileGone); Chunk still carries whatever rows
	// were successfully parsed before the cutoff.
	Truncated bool
}

// ColumnData holds one retained numeric column's parsed values, aligned
// index-for-index with Chunk.Xs.
type ColumnData struct {
	Name   string
	Values []float64
}

// Read implements spec.md §4.3's read(path, row_lo, row_hi, columns)
// operation: seeks to the byte span covering [rowLo, rowHi), reads it in one
// shot, and parses only the requested columns plus the axis.
//
// Failure semantics match spec.md §4.3/§7: if the read comes up short, the
// Chunk parsed so far (Truncated=true) is still returned, alongside a
// non-nil error so the coordinator can react — FileGone if the file is now
// shorter than the span this read expected (a real truncation), else
// TruncatedRead (e.g. a concurrent writer mid-append) for the coordinator to
// retry.
func Read(path string, ix *rowindex.Index, rowLo, rowHi int64, axisKind csvtypes.AxisKind, columns []csvtypes.Column) (*Chunk, error) {
	total := ix.TotalRows()
	if rowLo < 0 {
		rowLo = 0
	}
	if rowHi > total {
		rowHi = total
	}
	if rowHi <= rowLo {
		return &Chunk{RowLo: rowLo, RowHi: rowLo}, nil
	}

	first := ix.Entries[rowLo]
	last := ix.Entries[rowHi-1]
	span := (last.Offset + last.Length) - first.Offset
	wantEnd := first.Offset + span

	f, err := os.Open(path)
	if err != nil {
		return nil, engerr.Wrap(engerr.FileGone, "open", err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, span)
	n, rerr := f.ReadAt(buf, first.Offset)
	truncated := false
	if rerr != nil {
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			truncated = true
			buf = buf[:n]
		} else {
			return nil, engerr.Wrap(engerr.IoError, "read range", rerr)
		}
	}

	chunk := &Chunk{RowLo: rowLo, RowHi: rowHi}
	chunk.Cols = make([]ColumnData, 0, len(columns))
	colIdx := make([]int, 0, len(columns))
	for _, c := range columns {
		if c.Role != csvtypes.RoleNumeric {
			continue
		}
		chunk.Cols = append(chunk.Cols, ColumnData{Name: c.Name})
		colIdx = append(colIdx, c.Index)
	}
	headerFieldCount := len(columns)

	row := rowLo
	base := first.Offset
	for row < rowHi {
		entry := ix.Entries[row]
		start := entry.Offset - base
		end := start + entry.Length
		if end > int64(len(buf)) {
			// The byte range was cut short by a short read; stop parsing,
			// keep what's already accumulated.
			truncated = true
			break
		}
		line := buf[start:end]
		fields := csvschema.SplitFields(line)

		// spec.md §4.3: "On field-count mismatch, skip the entire row" — a
		// row with fewer OR more fields than the header doesn't just lack
		// the trailing columns this read happens to want, it's malformed.
		if len(fields) != headerFieldCount {
			chunk.MalformedRows++
			row++
			continue
		}

		axisVal, ok := csvschema.ParseAxis(fields[0], axisKind)
		if !ok {
			chunk.MalformedRows++
			row++
			continue
		}

		chunk.Xs = append(chunk.Xs, axisVal)
		for i, ci := range colIdx {
			v, ok := csvschema.ParseNumeric(fields[ci], numericKindOf(columns, ci))
			if !ok {
				chunk.MalformedFields++
				v = math.NaN()
			}
			chunk.Cols[i].Values = append(chunk.Cols[i].Values, v)
		}
		row++
	}

	if !truncated {
		return chunk, nil
	}

	chunk.Truncated = true
	chunk.RowHi = row
	if info, statErr := os.Stat(path); statErr != nil || info.Size() < wantEnd {
		return chunk, engerr.Wrap(engerr.FileGone, "file shrank mid-read", rerr)
	}
	return chunk, engerr.Wrap(engerr.TruncatedRead, "short read mid-range", rerr)
}

func numericKindOf(columns []csvtypes.Column, index int) csvtypes.NumericKind {
	for _, c := range columns {
		if c.Index == index {
			return c.Numeric
		}
	}
	return csvtypes.KindF64
}
