// Package rowindex implements C1: a byte-offset table of data rows built
// from a single streaming pass, extended incrementally on file growth.
//
// The scan itself is grounded on the teacher's buffered tail-read loop
// (internal/conv/tailer.go readNewData) and on the entreya-csvquery scanner's
// header handling (other_examples/ca755b4c_entreya-csvquery__...scanner.go.go),
// adapted from "read JSONL lines into a channel" / "mmap+scan a whole file"
// to "record (offset, length) without buffering the line bodies."
package rowindex

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/csvtrace/csvtrace/internal/engerr"
)

// scanBlockSize is the buffered read size for the streaming pass, within the
// 64-256 KiB range spec.md §4.1 calls for.
const scanBlockSize = 128 * 1024

// RowEntry mirrors csvtypes.RowEntry; defined here to avoid a dependency
// edge from this leaf package back up to csvtypes' wider surface. It is a
// separate type with the same fields, not an alias, so converting between
// the two takes an explicit conversion.
type RowEntry struct {
	Offset int64
	Length int64
}

// Index is the Row Index: an ordered, append-friendly table of data row
// locations, plus enough state (HeaderLine, last row's bytes) to extend or
// invalidate itself on tail growth.
type Index struct {
	HeaderLine []byte // raw header bytes, trimmed of terminator/BOM
	HeaderEnd  int64  // byte offset where row 0 begins

	Entries []RowEntry

	// ResumeOffset is the byte offset immediately following the last fully
	// indexed row's terminator — where AppendFrom resumes scanning.
	ResumeOffset int64

	// lastRowBytes is a copy of the most recently indexed row's raw bytes,
	// used by AppendFrom to detect that the file changed underneath us
	// (rotation/rewrite) rather than simply grew.
	lastRowBytes []byte
}

// TotalRows returns the number of indexed data rows.
func (ix *Index) TotalRows() int64 {
	return int64(len(ix.Entries))
}

// LastRowBytes returns a copy of the most recently indexed row's raw bytes,
// used by callers probing for an in-place tail rewrite (spec.md §4.7).
func (ix *Index) LastRowBytes() []byte {
	return append([]byte(nil), ix.lastRowBytes...)
}

// RowFunc is invoked once per newly-indexed data row, with the row's
// absolute index and its raw (terminator-stripped) bytes. It is the hook
// through which the Sparse X Index samples axis values jointly with the Row
// Index build/append (spec.md §4.2 "built jointly with the Row Index") and
// through which the caller can detect a non-monotonic axis by returning a
// non-nil error, which aborts the scan and propagates out of Build/AppendFrom.
// The byte slice is only valid for the duration of the call.
type RowFunc func(row int64, line []byte) error

// Build performs the single streaming pass described in spec.md §4.1: reads
// the header line, then records (offset, length) for every subsequent
// complete data row. An empty body (header only, or header with no trailing
// data) is legal and yields a zero-length index. onRow may be nil.
func Build(path string, onRow RowFunc) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engerr.Wrap(engerr.IoError, "open", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, engerr.Wrap(engerr.IoError, "stat", err)
	}
	if info.Size() == 0 {
		return nil, engerr.New(engerr.EmptyFile, path)
	}

	br := bufio.NewReaderSize(f, scanBlockSize)

	header, headerEnd, err := readHeaderLine(br)
	if err != nil {
		if err == io.EOF {
			return nil, engerr.New(engerr.NoHeader, path)
		}
		return nil, engerr.Wrap(engerr.IoError, "read header", err)
	}

	ix := &Index{
		HeaderLine:   header,
		HeaderEnd:    headerEnd,
		ResumeOffset: headerEnd,
	}

	if err := ix.scanInto(br, headerEnd, 0, onRow); err != nil {
		return nil, err
	}
	return ix, nil
}

// AppendFrom resumes scanning at ix.ResumeOffset and merges newly-complete
// rows into the index in place. It returns (delta, rebuildNeeded, err):
// rebuildNeeded is true when the bytes at the previously-indexed tail no
// longer match what was last observed there (spec.md §4.1), signalling that
// the caller must discard this index and call Build again. onRow may be nil.
func (ix *Index) AppendFrom(path string, onRow RowFunc) (delta []RowEntry, rebuildNeeded bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, engerr.Wrap(engerr.IoError, "open", err)
	}
	defer func() { _ = f.Close() }()

	if len(ix.Entries) > 0 && ix.lastRowBytes != nil {
		last := ix.Entries[len(ix.Entries)-1]
		buf := make([]byte, last.Length)
		if _, err := f.ReadAt(buf, last.Offset); err != nil && err != io.EOF {
			return nil, false, engerr.Wrap(engerr.IoError, "verify resume point", err)
		}
		if !bytes.Equal(buf, ix.lastRowBytes) {
			return nil, true, nil
		}
	}

	if _, err := f.Seek(ix.ResumeOffset, io.SeekStart); err != nil {
		return nil, false, engerr.Wrap(engerr.IoError, "seek resume offset", err)
	}

	before := len(ix.Entries)
	br := bufio.NewReaderSize(f, scanBlockSize)
	if err := ix.scanInto(br, ix.ResumeOffset, int64(before), onRow); err != nil {
		return nil, false, err
	}
	return ix.Entries[before:], false, nil
}

// scanInto records every complete line found in br, whose first byte is at
// startOffset in the underlying file, as a data row. It stops at EOF,
// leaving a trailing partial line (no terminator) unindexed, per spec.md §3.
// firstRow is the absolute row index of the first row this call will append.
func (ix *Index) scanInto(br *bufio.Reader, startOffset, firstRow int64, onRow RowFunc) error {
	offset := startOffset
	row := firstRow
	for {
		line, err := br.ReadBytes('\n')
		if len(line) == 0 && err == io.EOF {
			return nil
		}

		terminated := len(line) > 0 && line[len(line)-1] == '\n'
		if !terminated {
			// Partial trailing line: not indexed. Leave ResumeOffset where it
			// is (the start of this partial line) so the next AppendFrom
			// call re-reads it once it's complete.
			return nil
		}

		body := line[:len(line)-1]
		if len(body) > 0 && body[len(body)-1] == '\r' {
			body = body[:len(body)-1]
		}

		if onRow != nil {
			if cbErr := onRow(row, body); cbErr != nil {
				return cbErr
			}
		}

		entry := RowEntry{Offset: offset, Length: int64(len(body))}
		ix.Entries = append(ix.Entries, entry)
		ix.lastRowBytes = append([]byte(nil), body...)

		offset += int64(len(line))
		ix.ResumeOffset = offset
		row++

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return engerr.Wrap(engerr.IoError, "scan rows", err)
		}
	}
}

// readHeaderLine reads and returns the header line (sans terminator and
// UTF-8 BOM) and the byte offset immediately following it.
func readHeaderLine(br *bufio.Reader) ([]byte, int64, error) {
	line, err := br.ReadBytes('\n')
	if len(line) == 0 {
		if err == io.EOF {
			return nil, 0, io.EOF
		}
		return nil, 0, err
	}
	terminated := len(line) > 0 && line[len(line)-1] == '\n'
	offset := int64(len(line))
	body := line
	if terminated {
		body = line[:len(line)-1]
	} else if err == io.EOF {
		// Header line with no trailing newline at EOF: legal, zero data rows.
		offset = int64(len(line))
	} else if err != nil {
		return nil, 0, err
	}
	if len(body) > 0 && body[len(body)-1] == '\r' {
		body = body[:len(body)-1]
	}
	if len(body) >= 3 && body[0] == 0xEF && body[1] == 0xBB && body[2] == 0xBF {
		body = body[3:]
	}
	if len(body) == 0 {
		return nil, 0, fmt.Errorf("empty header line")
	}
	return body, offset, nil
}
