// Package csvschema implements C4 (Column Filter) and the axis/column kind
// inference spec.md §3-4 describe: a bounded prefix sample over the raw CSV
// rows decides the axis kind and which data columns are numeric, all-missing,
// high-missing, or non-numeric, and the schema is then frozen for the life
// of the handle.
//
// The quoted-field splitter is grounded on the manual comma/quote scanners in
// other_examples/ca755b4c_entreya-csvquery__...scanner.go.go and
// other_examples/a045ca22_nnnkkk7-go-simdcsv__reader.go.go — both avoid
// encoding/csv so a caller can split a single line without allocating a
// Reader per call, which matters here because Build/Sample runs once per
// sampled row during the streaming pass, not once per file.
package csvschema

// SplitFields splits one CSV line into fields, honoring double-quoted fields
// with doubled-quote escapes, per spec.md §6 ("Fields may be quoted with ",
// doubled "" is an escaped quote. No other escape convention."). The
// returned slices borrow line's backing array when a field is unquoted and
// allocate only when unescaping a quoted field.
func SplitFields(line []byte) [][]byte {
	if len(line) == 0 {
		return [][]byte{{}}
	}
	fields := make([][]byte, 0, 8)
	i := 0
	n := len(line)
	for {
		var field []byte
		if i < n && line[i] == '"' {
			field, i = readQuotedField(line, i)
		} else {
			start := i
			for i < n && line[i] != ',' {
				i++
			}
			field = line[start:i]
		}
		fields = append(fields, field)
		if i >= n {
			break
		}
		// i is at the delimiter (or just past a quoted field, where it
		// should also be at ',' or EOL).
		if i < n && line[i] == ',' {
			i++
			if i == n {
				fields = append(fields, []byte{})
				break
			}
			continue
		}
		break
	}
	return fields
}

// readQuotedField reads a "-quoted field starting at line[start] == '"' and
// returns the unescaped field body plus the index just past the field (at
// the following ',' or end of line).
func readQuotedField(line []byte, start int) (field []byte, next int) {
	i := start + 1
	n := len(line)
	var buf []byte
	for i < n {
		if line[i] == '"' {
			if i+1 < n && line[i+1] == '"' {
				buf = append(buf, '"')
				i += 2
				continue
			}
			i++
			break
		}
		buf = append(buf, line[i])
		i++
	}
	// Skip any trailing bytes up to the delimiter (lenient: a quoted field
	// is expected to be immediately followed by ',' or EOL).
	for i < n && line[i] != ',' {
		i++
	}
	return buf, i
}
