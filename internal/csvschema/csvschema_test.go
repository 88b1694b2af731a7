package csvschema

import (
	"testing"

	"github.com/csvtrace/csvtrace/internal/csvtypes"
)

func TestSplitFieldsBasic(t *testing.T) {
	fields := SplitFields([]byte("1,2.0,hello"))
	want := []string{"1", "2.0", "hello"}
	if len(fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(fields), len(want))
	}
	for i, w := range want {
		if string(fields[i]) != w {
			t.Fatalf("field %d = %q, want %q", i, fields[i], w)
		}
	}
}

func TestSplitFieldsQuoted(t *testing.T) {
	fields := SplitFields([]byte(`"a,b","say ""hi""",3`))
	want := []string{`a,b`, `say "hi"`, "3"}
	for i, w := range want {
		if string(fields[i]) != w {
			t.Fatalf("field %d = %q, want %q", i, fields[i], w)
		}
	}
}

func TestSplitFieldsTrailingEmpty(t *testing.T) {
	fields := SplitFields([]byte("1,2,"))
	if len(fields) != 3 {
		t.Fatalf("got %d fields, want 3", len(fields))
	}
	if string(fields[2]) != "" {
		t.Fatalf("last field = %q, want empty", fields[2])
	}
}

func TestSanitizeNamesDedup(t *testing.T) {
	out := SanitizeNames([]string{"t", "a", "a", ""})
	want := []string{"t", "a", "a_1", "column_3"}
	for i, w := range want {
		if out[i] != w {
			t.Fatalf("name %d = %q, want %q", i, out[i], w)
		}
	}
}

func TestClassifyAxisInt(t *testing.T) {
	samples := [][]byte{[]byte("0"), []byte("1"), []byte("2")}
	if k := classifyAxis(samples); k != csvtypes.AxisInt64 {
		t.Fatalf("kind = %v, want int64", k)
	}
}

func TestClassifyAxisInstant(t *testing.T) {
	samples := [][]byte{[]byte("2024-01-01T00:00:00Z"), []byte("2024-01-01T00:00:01.5Z")}
	if k := classifyAxis(samples); k != csvtypes.AxisInstant {
		t.Fatalf("kind = %v, want instant", k)
	}
}

func TestClassifyAxisString(t *testing.T) {
	samples := [][]byte{[]byte("alpha"), []byte("beta")}
	if k := classifyAxis(samples); k != csvtypes.AxisString {
		t.Fatalf("kind = %v, want string", k)
	}
}

func TestSamplerBuildBasic(t *testing.T) {
	s := NewSampler([]string{"t", "a", "b"}, SampleConfig{MinRows: 2})
	s.Observe([]byte("0,1.0,2.0"))
	s.Observe([]byte("1,1.5,2.5"))
	schema, issues, err := s.Build()
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
	if schema.AxisKind != csvtypes.AxisInt64 {
		t.Fatalf("axis kind = %v", schema.AxisKind)
	}
	if len(schema.NumericColumns()) != 2 {
		t.Fatalf("numeric columns = %d, want 2", len(schema.NumericColumns()))
	}
}

func TestSamplerAllMissingColumnDropped(t *testing.T) {
	s := NewSampler([]string{"t", "a", "b"}, SampleConfig{MinRows: 2})
	s.Observe([]byte("0,1.0,"))
	s.Observe([]byte("1,1.5,"))
	schema, issues, err := s.Build()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, iss := range issues {
		if iss.Column == "b" && iss.Issue == csvtypes.IssueAllMissing {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected AllMissing issue for b, got %+v", issues)
	}
	if len(schema.NumericColumns()) != 1 {
		t.Fatalf("numeric columns = %d, want 1", len(schema.NumericColumns()))
	}
}

func TestSamplerNonNumericDropped(t *testing.T) {
	s := NewSampler([]string{"t", "a", "label"}, SampleConfig{MinRows: 2})
	s.Observe([]byte("0,1.0,red"))
	s.Observe([]byte("1,1.5,blue"))
	schema, issues, err := s.Build()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, iss := range issues {
		if iss.Column == "label" && iss.Issue == csvtypes.IssueNonNumeric {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected NonNumeric issue, got %+v", issues)
	}
	if len(schema.NumericColumns()) != 1 {
		t.Fatalf("numeric columns = %d, want 1", len(schema.NumericColumns()))
	}
}

func TestSamplerHighMissingRatio(t *testing.T) {
	s := NewSampler([]string{"t", "a"}, SampleConfig{MinRows: 4})
	s.Observe([]byte("0,1.0"))
	s.Observe([]byte("1,"))
	s.Observe([]byte("2,"))
	s.Observe([]byte("3,"))
	schema, issues, err := s.Build()
	if err != nil {
		t.Fatal(err)
	}
	if len(schema.NumericColumns()) != 1 {
		t.Fatalf("expected column retained despite high missing ratio")
	}
	found := false
	for _, iss := range issues {
		if iss.Column == "a" && iss.Issue == csvtypes.IssueHighMissingRatio {
			found = true
			if iss.Ratio < 0.7 {
				t.Fatalf("ratio = %v, want ~0.75", iss.Ratio)
			}
		}
	}
	if !found {
		t.Fatalf("expected HighMissingRatio issue, got %+v", issues)
	}
}

func TestSamplerNoNumericColumnsFails(t *testing.T) {
	s := NewSampler([]string{"t", "label"}, SampleConfig{MinRows: 2})
	s.Observe([]byte("0,red"))
	s.Observe([]byte("1,blue"))
	_, _, err := s.Build()
	if err == nil {
		t.Fatal("expected NoNumericColumns error")
	}
}

func TestParseAxisInstant(t *testing.T) {
	v, ok := ParseAxis([]byte("2024-01-01T00:00:00Z"), csvtypes.AxisInstant)
	if !ok {
		t.Fatal("expected parse success")
	}
	if v.Kind != csvtypes.AxisInstant {
		t.Fatalf("kind = %v", v.Kind)
	}
}
