package ranged

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/csvtrace/csvtrace/internal/csvtypes"
	"github.com/csvtrace/csvtrace/internal/engerr"
	"github.com/csvtrace/csvtrace/internal/rowindex"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testColumns() []csvtypes.Column {
	return []csvtypes.Column{
		{Name: "t", Role: csvtypes.RoleAxis, Index: 0},
		{Name: "a", Role: csvtypes.RoleNumeric, Numeric: csvtypes.KindF64, Index: 1},
		{Name: "b", Role: csvtypes.RoleNumeric, Numeric: csvtypes.KindF64, Index: 2},
	}
}

func TestReadBasicRange(t *testing.T) {
	path := writeFile(t, "t,a,b\n0,1,10\n1,2,20\n2,3,30\n3,4,40\n")
	ix, err := rowindex.Build(path, nil)
	if err != nil {
		t.Fatal(err)
	}

	chunk, err := Read(path, ix, 1, 3, csvtypes.AxisInt64, testColumns())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunk.Xs) != 2 {
		t.Fatalf("xs = %d, want 2", len(chunk.Xs))
	}
	if chunk.Xs[0].I64 != 1 || chunk.Xs[1].I64 != 2 {
		t.Fatalf("xs = %+v", chunk.Xs)
	}
	if chunk.Cols[0].Values[0] != 2 || chunk.Cols[1].Values[1] != 30 {
		t.Fatalf("cols = %+v", chunk.Cols)
	}
}

func TestReadMalformedRowSkipped(t *testing.T) {
	path := writeFile(t, "t,a,b\n0,1,10\n1,2\n2,3,30\n")
	ix, err := rowindex.Build(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	chunk, err := Read(path, ix, 0, 3, csvtypes.AxisInt64, testColumns())
	if err != nil {
		t.Fatal(err)
	}
	if chunk.MalformedRows != 1 {
		t.Fatalf("malformed rows = %d, want 1", chunk.MalformedRows)
	}
	if len(chunk.Xs) != 2 {
		t.Fatalf("xs = %d, want 2 (malformed row dropped)", len(chunk.Xs))
	}
}

func TestReadMalformedFieldBecomesNaN(t *testing.T) {
	path := writeFile(t, "t,a,b\n0,notanumber,10\n1,2,20\n")
	ix, err := rowindex.Build(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	chunk, err := Read(path, ix, 0, 2, csvtypes.AxisInt64, testColumns())
	if err != nil {
		t.Fatal(err)
	}
	if chunk.MalformedFields != 1 {
		t.Fatalf("malformed fields = %d, want 1", chunk.MalformedFields)
	}
	if !math.IsNaN(chunk.Cols[0].Values[0]) {
		t.Fatalf("first value = %v, want NaN", chunk.Cols[0].Values[0])
	}
}

func TestReadEmptyRangeReturnsEmptyChunk(t *testing.T) {
	path := writeFile(t, "t,a,b\n0,1,10\n")
	ix, err := rowindex.Build(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	chunk, err := Read(path, ix, 5, 5, csvtypes.AxisInt64, testColumns())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunk.Xs) != 0 {
		t.Fatalf("xs = %d, want 0", len(chunk.Xs))
	}
}

func TestReadExtraFieldRowMalformed(t *testing.T) {
	// A row with more fields than the header (e.g. an unescaped embedded
	// comma) must be skipped as malformed, not silently parsed against its
	// first three fields.
	path := writeFile(t, "t,a,b\n0,1,10,extra\n1,2,20\n")
	ix, err := rowindex.Build(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	chunk, err := Read(path, ix, 0, 2, csvtypes.AxisInt64, testColumns())
	if err != nil {
		t.Fatal(err)
	}
	if chunk.MalformedRows != 1 {
		t.Fatalf("malformed rows = %d, want 1", chunk.MalformedRows)
	}
	if len(chunk.Xs) != 1 || chunk.Xs[0].I64 != 1 {
		t.Fatalf("xs = %+v, want only row 1", chunk.Xs)
	}
}

func TestReadFileShrunkMidReadReportsFileGone(t *testing.T) {
	path := writeFile(t, "t,a,b\n0,1,10\n1,2,20\n2,3,30\n")
	ix, err := rowindex.Build(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, 10); err != nil {
		t.Fatal(err)
	}

	chunk, err := Read(path, ix, 0, ix.TotalRows(), csvtypes.AxisInt64, testColumns())
	if err == nil {
		t.Fatal("expected an error reading past a shrunk file")
	}
	ee, ok := err.(*engerr.Error)
	if !ok || ee.Kind != engerr.FileGone {
		t.Fatalf("err = %v, want FileGone", err)
	}
	if chunk == nil || !chunk.Truncated {
		t.Fatal("expected a partial, Truncated chunk alongside the error")
	}
}

func TestReadQuotedFields(t *testing.T) {
	path := writeFile(t, "t,a,b\n0,\"1.5\",10\n")
	ix, err := rowindex.Build(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	chunk, err := Read(path, ix, 0, 1, csvtypes.AxisInt64, testColumns())
	if err != nil {
		t.Fatal(err)
	}
	if chunk.Cols[0].Values[0] != 1.5 {
		t.Fatalf("value = %v, want 1.5", chunk.Cols[0].Values[0])
	}
}
