// Package engine is the public façade (C9) binding the Row Index, Sparse X
// Index, Ranged Reader, Column Filter, MinMaxLTTB Downsampler, Viewport
// Coordinator, Tail Follower, and Trace Assembler into the operations a
// presentation layer calls. It is a library surface, not a service: no
// process lifecycle, no transport, no CLI. A presentation layer imports
// this package directly and drives it in-process.
//
// The worker-goroutine-plus-RWMutex-plus-callback shape mirrors the
// teacher's ConversationWatcher (internal/conv/watcher.go, no longer
// present in this tree — see DESIGN.md): one owning goroutine serializes
// mutation, readers take a read lock for snapshots, and results are
// delivered to the caller via a registered callback rather than a return
// value, since fetches are asynchronous.
package engine

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/csvtrace/csvtrace/internal/csvschema"
	"github.com/csvtrace/csvtrace/internal/csvtypes"
	"github.com/csvtrace/csvtrace/internal/downsample"
	"github.com/csvtrace/csvtrace/internal/engerr"
	"github.com/csvtrace/csvtrace/internal/follower"
	"github.com/csvtrace/csvtrace/internal/ranged"
	"github.com/csvtrace/csvtrace/internal/rowindex"
	"github.com/csvtrace/csvtrace/internal/trace"
	"github.com/csvtrace/csvtrace/internal/viewport"
	"github.com/csvtrace/csvtrace/internal/xindex"
)

// Options configures Open, matching spec.md §4.9.
type Options struct {
	Follow           bool
	SampleRowsMin    int
	SampleRatio      float64
	MaxDisplayPoints int
	MinMaxRatio      int
	PollInterval     time.Duration

	// Logger receives one line per recoverable condition (malformed rows,
	// truncated reads, schema drift, discarded deliveries). Defaults to
	// log.Default() when nil.
	Logger *log.Logger
}

// defaulted fills zero-value fields with spec.md §6's defaults.
func (o Options) defaulted() Options {
	if o.SampleRowsMin <= 0 {
		o.SampleRowsMin = 64
	}
	if o.SampleRatio <= 0 {
		o.SampleRatio = 0.01
	}
	if o.MaxDisplayPoints <= 0 {
		o.MaxDisplayPoints = 4000
	}
	if o.MinMaxRatio <= 0 {
		o.MinMaxRatio = downsample.DefaultMinMaxRatio
	}
	if o.PollInterval <= 0 {
		o.PollInterval = follower.DefaultPollInterval
	}
	return o
}

// ErrorKind is the public error taxonomy, mirroring internal/engerr.Kind
// without exposing the internal package (spec.md §4.9/§7).
type ErrorKind int

const (
	EmptyFile ErrorKind = iota
	NoHeader
	NoNumericColumns
	NonMonotonicAxis
	IoError
	TruncatedRead
	FileGone
)

func (k ErrorKind) String() string {
	switch k {
	case EmptyFile:
		return "EmptyFile"
	case NoHeader:
		return "NoHeader"
	case NoNumericColumns:
		return "NoNumericColumns"
	case NonMonotonicAxis:
		return "NonMonotonicAxis"
	case IoError:
		return "IoError"
	case TruncatedRead:
		return "TruncatedRead"
	case FileGone:
		return "FileGone"
	default:
		return "Unknown"
	}
}

// Error is the façade's public error type.
type Error struct {
	Kind   ErrorKind
	Detail string
	Row    int64
	Err    error
}

func (e *Error) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("%s: %s (row %d)", e.Kind, e.Detail, e.Row)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	ee, ok := err.(*engerr.Error)
	if !ok {
		return err
	}
	kind := IoError
	switch ee.Kind {
	case engerr.EmptyFile:
		kind = EmptyFile
	case engerr.NoHeader:
		kind = NoHeader
	case engerr.NoNumericColumns:
		kind = NoNumericColumns
	case engerr.NonMonotonicAxis:
		kind = NonMonotonicAxis
	case engerr.TruncatedRead:
		kind = TruncatedRead
	case engerr.FileGone:
		kind = FileGone
	}
	return &Error{Kind: kind, Detail: ee.Detail, Row: ee.Row, Err: ee.Err}
}

// RequestToken identifies one request_viewport call, per spec.md §4.9.
type RequestToken struct {
	Version uint64
	Epoch   uint64
}

// ResultKind distinguishes a delivered trace bundle from a discard notice.
type ResultKind int

const (
	ResultTraces ResultKind = iota
	ResultDiscarded
	ResultError
)

// ViewportInfo is the served viewport bounds, per spec.md §6's callback
// payload shape. Clipped is true only when fetch narrowed an oversized
// request (spec.md §7's ClippedViewport) — it does not reflect ordinary
// clamping against the data's own axis range.
type ViewportInfo struct {
	XStart  csvtypes.AxisValue
	XEnd    csvtypes.AxisValue
	Clipped bool
}

// Result is delivered to the callback registered at Open, per spec.md §4.9
// and §6's payload shape.
type Result struct {
	Token  RequestToken
	Kind   ResultKind
	Series []trace.Series

	Viewport        ViewportInfo
	TotalRows       int64
	MalformedRows   int64
	MalformedFields int64

	Err error
}

// Callback receives completed or discarded viewport fetches.
type Callback func(Result)

// SchemaInfo is the public projection of the engine's schema, per spec.md §4.9.
type SchemaInfo struct {
	AxisKind  string
	Columns   []ColumnInfo
	TotalRows int64
	AxisMin   csvtypes.AxisValue
	AxisMax   csvtypes.AxisValue
}

// ColumnInfo is one column's public schema entry.
type ColumnInfo struct {
	Name    string
	Numeric bool
	Kind    string
}

// QualityInfo is one column's filter verdict, per spec.md §4.4/§4.9.
type QualityInfo struct {
	Column string
	Issue  string
	Ratio  float64
}

// Handle is an open engine instance bound to one CSV file.
type Handle struct {
	path string
	opts Options

	mu      sync.RWMutex
	rowIdx  *rowindex.Index
	xIdx    *xindex.Index
	schema  csvtypes.Schema
	quality []csvtypes.QualityIssue
	epoch   uint64

	followEnabled bool
	followPaused  bool
	haveLastView  bool
	lastViewStart csvtypes.AxisValue
	lastViewEnd   csvtypes.AxisValue
	follower      *follower.Follower
	coordinator   *viewport.Coordinator

	callback Callback
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// logf reports a recoverable condition through the configured Logger, per
// SPEC_FULL.md's ambient-stack contract.
func (h *Handle) logf(format string, args ...any) {
	h.logger.Printf(format, args...)
}

// Open implements spec.md §4.9's open(path, options) operation: builds the
// Row Index, Sparse X Index, and frozen Schema in one streaming pass
// (C1→C2→C4), and starts the Tail Follower if requested. ctx scopes the
// handle's background work (the follower, the viewport coordinator's
// worker goroutine); canceling it has the same effect as Close.
func Open(ctx context.Context, path string, opts Options, cb Callback) (*Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts = opts.defaulted()
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	var fileSize int64
	var modTime time.Time
	if info, err := os.Stat(path); err == nil {
		fileSize = info.Size()
		modTime = info.ModTime()
	}

	h := &Handle{path: path, opts: opts, callback: cb, logger: logger}
	h.ctx, h.cancel = context.WithCancel(ctx)

	if err := h.buildFromScratch(fileSize); err != nil {
		h.cancel()
		return nil, translateErr(err)
	}

	h.coordinator = viewport.New(h.ctx, h.fetch, h.deliver)

	if opts.Follow {
		h.startFollower(fileSize, modTime)
	}

	return h, nil
}

// buildFromScratch performs the single streaming pass of spec.md §4.2
// ("built jointly with the Row Index"): the Column Filter's prefix sampler
// and the Sparse X Index's per-K-row sampler both observe rows through the
// same rowindex.RowFunc callback. The axis kind (needed to parse axis bytes
// for the x-index) is only known once the prefix sample completes, so rows
// seen before that point are buffered (a prefix bounded by the sampler's
// target row count, never the whole file) and replayed into the x-index the moment the schema is built;
// every row after that point is fed to the x-index directly, with no second
// pass and no re-reading from disk.
func (h *Handle) buildFromScratch(fileSize int64) error {
	header, err := peekHeader(h.path)
	if err != nil {
		return err
	}

	sampler := csvschema.NewSampler(header, csvschema.SampleConfig{
		MinRows:  h.opts.SampleRowsMin,
		Ratio:    h.opts.SampleRatio,
		FileSize: fileSize,
	})

	var prefixRows [][]byte
	var xi *xindex.Index
	var schema csvtypes.Schema
	var quality []csvtypes.QualityIssue

	var lastRow int64 = -1
	var lastAxisBytes []byte

	onRow := func(row int64, line []byte) error {
		lastRow = row
		lastAxisBytes = append(lastAxisBytes[:0], firstFieldOf(line)...)

		if xi != nil {
			return xi.Observer()(row, line)
		}

		sampler.Observe(line)
		prefixRows = append(prefixRows, append([]byte(nil), line...))

		if !sampler.Done() {
			return nil
		}

		schema, quality, err = sampler.Build()
		if err != nil {
			return err
		}
		xi = xindex.New(schema.AxisKind, xindex.DefaultK)
		for i, buffered := range prefixRows {
			if cbErr := xi.Observer()(int64(i), buffered); cbErr != nil {
				return cbErr
			}
		}
		return nil
	}

	ix, buildErr := rowindex.Build(h.path, onRow)
	if buildErr != nil {
		return buildErr
	}

	// Fewer rows than the sample target: the sampler never saw Done(), so
	// finalize now against whatever prefix was collected.
	if xi == nil {
		schema, quality, err = sampler.Build()
		if err != nil {
			return err
		}
		xi = xindex.New(schema.AxisKind, xindex.DefaultK)
		for i, buffered := range prefixRows {
			if cbErr := xi.Observer()(int64(i), buffered); cbErr != nil {
				return cbErr
			}
		}
	}

	if lastRow >= 0 {
		if serr := xi.SampleTail(lastRow, lastAxisBytes); serr != nil {
			return serr
		}
	}

	h.mu.Lock()
	h.rowIdx = ix
	h.xIdx = xi
	h.schema = schema
	h.quality = quality
	h.mu.Unlock()
	return nil
}

// peekHeader reads just the header line, independent of the main streaming
// pass, so the Column Filter sampler can be sized to the right column count
// before rowindex.Build starts delivering rows.
func peekHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, engerr.Wrap(engerr.IoError, "open", err)
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	line, rerr := br.ReadBytes('\n')
	if len(line) == 0 && rerr != nil {
		return nil, engerr.New(engerr.NoHeader, path)
	}
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	fields := csvschema.SplitFields(line)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out, nil
}

func firstFieldOf(line []byte) []byte {
	for i, b := range line {
		if b == ',' {
			return line[:i]
		}
	}
	return line
}

// readEntryBytes reads one row's raw bytes directly by offset, used sparingly
// (tail-rewrite probing, post-growth tail sampling) — never for a full scan.
func readEntryBytes(path string, entry rowindex.RowEntry) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, entry.Length)
	if _, err := f.ReadAt(buf, entry.Offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// Schema returns the frozen schema for the open handle, per spec.md §4.9.
func (h *Handle) Schema() SchemaInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cols := make([]ColumnInfo, 0, len(h.schema.Columns))
	for _, c := range h.schema.Columns {
		cols = append(cols, ColumnInfo{
			Name:    c.Name,
			Numeric: c.Role == csvtypes.RoleNumeric,
			Kind:    c.Numeric.String(),
		})
	}

	info := SchemaInfo{
		AxisKind:  h.schema.AxisKind.String(),
		Columns:   cols,
		TotalRows: h.rowIdx.TotalRows(),
	}
	if n := len(h.xIdx.Samples); n > 0 {
		info.AxisMin = h.xIdx.Samples[0].Value
		info.AxisMax = h.xIdx.Samples[n-1].Value
	}
	return info
}

// Quality returns the per-column filter verdicts, per spec.md §4.4/§4.9.
func (h *Handle) Quality() []QualityInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]QualityInfo, len(h.quality))
	for i, q := range h.quality {
		out[i] = QualityInfo{Column: q.Column, Issue: q.Issue, Ratio: q.Ratio}
	}
	return out
}

var versionCounter struct {
	mu sync.Mutex
	n  uint64
}

func nextVersion() uint64 {
	versionCounter.mu.Lock()
	defer versionCounter.mu.Unlock()
	versionCounter.n++
	return versionCounter.n
}

// RequestViewport implements spec.md §4.9's request_viewport operation:
// non-blocking, returns immediately, delivers results via the callback.
func (h *Handle) RequestViewport(xStart, xEnd csvtypes.AxisValue) RequestToken {
	h.mu.RLock()
	epoch := h.epoch
	h.mu.RUnlock()

	version := nextVersion()
	v := viewport.View{XStart: xStart, XEnd: xEnd, Version: version, Epoch: epoch}
	h.coordinator.RequestViewport(v)
	return RequestToken{Version: version, Epoch: epoch}
}

// clipRowsPerCandidate bounds spec.md §7's ClippedViewport case: the most
// rows fetch will read per downsample candidate bucket before it narrows an
// oversized request instead of reading the whole thing.
const clipRowsPerCandidate = 250

// fetchOutcome is what fetch hands to deliver: the assembled series plus
// the rest of spec.md §6's payload (served viewport, total rows, and
// malformed-row/field counts from the chunk that produced them).
type fetchOutcome struct {
	series          []trace.Series
	viewport        ViewportInfo
	totalRows       int64
	malformedRows   int64
	malformedFields int64
}

// fetch runs C2→C3→C8 for one view: locate the coarse sample bracket (C2),
// widen it by one sample stride on each side and read it (C3), trim to the
// exact requested bounds, then assemble display series (C8). Widening by
// RefineWindow() rows is the "bounded linear refinement (<= K rows)" spec.md
// §4.2 calls for: the exact boundary row can fall up to K rows past the
// nearest sample, and C3's single ReadAt already pulls that whole span, so
// trimming in memory is cheaper than a second indexed lookup.
//
// A read that comes back TruncatedRead or FileGone (spec.md §4.3/§7: the
// file shrank or was rewritten mid-read) propagates as an error instead of
// silently delivering the partial chunk. FileGone is delivered to the
// callback as ResultError directly and then triggers a Reload, because the
// Reload's epoch bump makes the coordinator drop this fetch's own result.
func (h *Handle) fetch(ctx context.Context, v viewport.View) (any, error) {
	h.mu.RLock()
	ix := h.rowIdx
	xi := h.xIdx
	schema := h.schema
	total := ix.TotalRows()
	h.mu.RUnlock()

	served := ViewportInfo{XStart: v.XStart, XEnd: v.XEnd}

	if total == 0 {
		return &fetchOutcome{viewport: served}, nil
	}

	lastRow := total - 1
	rowLo, rowHi := xi.Range(v.XStart, v.XEnd, lastRow)
	window := xi.RefineWindow()
	rowLo -= window
	rowHi += window
	if rowLo < 0 {
		rowLo = 0
	}
	if rowHi > lastRow {
		rowHi = lastRow
	}

	if maxRows := int64(h.opts.MaxDisplayPoints) * int64(h.opts.MinMaxRatio) * clipRowsPerCandidate; rowHi-rowLo+1 > maxRows {
		rowHi = rowLo + maxRows - 1
		served.Clipped = true
	}

	chunk, err := ranged.Read(h.path, ix, rowLo, rowHi+1, schema.AxisKind, schema.Columns)
	if err != nil {
		if ee, ok := err.(*engerr.Error); ok && ee.Kind == engerr.FileGone {
			h.logf("engine: file shrank mid-read, reloading: %v", err)
			if h.callback != nil {
				token := RequestToken{Version: v.Version, Epoch: v.Epoch}
				h.callback(Result{Token: token, Kind: ResultError, Err: translateErr(err)})
			}
			h.Reload()
		} else {
			h.logf("engine: ranged read failed: %v", err)
		}
		return nil, err
	}
	if schema.AxisKind.Orderable() {
		trimChunkToRange(chunk, v.XStart, v.XEnd)
	}
	if chunk.MalformedRows > 0 || chunk.MalformedFields > 0 {
		h.logf("engine: fetch [%d,%d) saw %d malformed rows, %d malformed fields", rowLo, rowHi+1, chunk.MalformedRows, chunk.MalformedFields)
	}
	if served.Clipped && len(chunk.Xs) > 0 {
		served.XEnd = chunk.Xs[len(chunk.Xs)-1]
	}

	series := trace.Assemble(chunk, h.opts.MaxDisplayPoints, h.opts.MinMaxRatio)
	return &fetchOutcome{
		series:          series,
		viewport:        served,
		totalRows:       total,
		malformedRows:   chunk.MalformedRows,
		malformedFields: chunk.MalformedFields,
	}, nil
}

// trimChunkToRange drops rows whose axis value falls outside [xStart, xEnd],
// narrowing the widened read back to the exact boundary spec.md §4.2
// requires. chunk.Xs is sorted, so the kept range is a single contiguous
// slice.
func trimChunkToRange(chunk *ranged.Chunk, xStart, xEnd csvtypes.AxisValue) {
	n := len(chunk.Xs)
	lo := 0
	for lo < n && chunk.Xs[lo].Compare(xStart) < 0 {
		lo++
	}
	hi := n
	for hi > lo && chunk.Xs[hi-1].Compare(xEnd) > 0 {
		hi--
	}
	chunk.Xs = chunk.Xs[lo:hi]
	for i := range chunk.Cols {
		chunk.Cols[i].Values = chunk.Cols[i].Values[lo:hi]
	}
}

func (h *Handle) deliver(v viewport.View, result any, err error, discarded bool) {
	if !discarded && err == nil {
		h.recordDelivered(v)
	}
	if h.callback == nil {
		return
	}
	token := RequestToken{Version: v.Version, Epoch: v.Epoch}
	if discarded {
		h.logf("engine: dropped stale viewport result (version=%d, epoch=%d)", v.Version, v.Epoch)
		h.callback(Result{Token: token, Kind: ResultDiscarded})
		return
	}
	if err != nil {
		h.callback(Result{Token: token, Kind: ResultError, Err: translateErr(err)})
		return
	}
	outcome, _ := result.(*fetchOutcome)
	if outcome == nil {
		outcome = &fetchOutcome{}
	}
	h.callback(Result{
		Token:           token,
		Kind:            ResultTraces,
		Series:          outcome.series,
		Viewport:        outcome.viewport,
		TotalRows:       outcome.totalRows,
		MalformedRows:   outcome.malformedRows,
		MalformedFields: outcome.malformedFields,
	})
}

// recordDelivered implements spec.md §4.7's pause semantics: remembers the
// bounds of the last delivered viewport, and — when follow is on — marks
// follow paused the moment the user's x_end falls outside the tail
// threshold (a manual pan into history), resuming only once a later
// delivery lands back within threshold.
func (h *Handle) recordDelivered(v viewport.View) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.haveLastView = true
	h.lastViewStart = v.XStart
	h.lastViewEnd = v.XEnd

	if !h.followEnabled || h.xIdx == nil || h.rowIdx == nil {
		return
	}
	total := h.rowIdx.TotalRows()
	if total == 0 {
		return
	}
	lastRow := total - 1
	endRow := h.xIdx.Locate(v.XEnd, true, lastRow)
	h.followPaused = lastRow-endRow > follower.TailThreshold(total)
}

// SetFollow implements spec.md §4.9's set_follow operation. Re-enabling
// follow clears any prior pause — per spec.md §4.7, resumption is an
// explicit command from the presentation layer, and the next delivered
// viewport determines whether it's actually at tail (recordDelivered).
func (h *Handle) SetFollow(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if enabled == h.followEnabled {
		if enabled {
			h.followPaused = false
		}
		return
	}
	h.followEnabled = enabled
	if enabled {
		h.followPaused = false
		info, err := os.Stat(h.path)
		if err == nil {
			h.startFollowerLocked(info.Size(), info.ModTime())
		}
	} else if h.follower != nil {
		h.follower.Stop()
		h.follower = nil
	}
}

// FollowPaused reports spec.md §4.7's paused-vs-following flag: true when
// follow is enabled but the last delivered viewport was not at tail, so tail
// growth is indexed but not auto-displayed.
func (h *Handle) FollowPaused() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.followEnabled && h.followPaused
}

func (h *Handle) startFollower(size int64, modTime time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.startFollowerLocked(size, modTime)
}

// startFollowerLocked must be called with h.mu held.
func (h *Handle) startFollowerLocked(size int64, modTime time.Time) {
	h.followEnabled = true
	probe := func() (bool, error) {
		h.mu.RLock()
		ix := h.rowIdx
		h.mu.RUnlock()
		if ix.TotalRows() == 0 {
			return false, nil
		}
		entry := ix.Entries[ix.TotalRows()-1]
		current, err := readEntryBytes(h.path, entry)
		if err != nil {
			return false, err
		}
		// The probe only fires when size is unchanged but mtime advanced
		// (spec.md §4.7's third bullet); a mismatch here means the last row
		// was rewritten in place without changing the file's length.
		lastKnown := ix.LastRowBytes()
		return !bytesEqual(current, lastKnown), nil
	}
	h.follower = follower.New(h.ctx, h.path, size, modTime, h.opts.PollInterval, probe, h.onFollowerObserve)
	h.follower.Start()
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (h *Handle) onFollowerObserve(obs follower.Observation) {
	switch obs.Decision {
	case follower.Grew:
		h.handleGrowth()
	case follower.Truncated, follower.TailRewritten:
		h.logf("engine: follower observed %v, reloading", obs.Decision)
		h.Reload()
	}
}

// handleGrowth implements spec.md §4.7's size-increase bullet: extend the
// Row Index and Sparse X Index over the new suffix, then — if the user's
// viewport was at tail at the time of its last render (tracked by
// recordDelivered) — re-request it with x_end moved to the new last axis
// value, "as if the user had scrolled to the tail."
func (h *Handle) handleGrowth() {
	h.mu.Lock()
	ix := h.rowIdx
	xi := h.xIdx
	h.mu.Unlock()

	var lastRow int64 = -1
	var lastAxisBytes []byte
	onRow := func(row int64, line []byte) error {
		lastRow = row
		lastAxisBytes = append(lastAxisBytes[:0], firstFieldOf(line)...)
		return xi.Observer()(row, line)
	}

	_, rebuild, err := ix.AppendFrom(h.path, onRow)
	if err != nil || rebuild {
		h.logf("engine: schema drift on tail append (rebuild=%v, err=%v), reloading", rebuild, err)
		h.Reload()
		return
	}
	if lastRow < 0 {
		return
	}
	if serr := xi.SampleTail(lastRow, lastAxisBytes); serr != nil {
		return
	}

	h.mu.Lock()
	atTail := h.followEnabled && !h.followPaused && h.haveLastView
	start := h.lastViewStart
	h.mu.Unlock()
	if !atTail {
		return
	}
	newEnd := xi.Samples[len(xi.Samples)-1].Value
	h.RequestViewport(start, newEnd)
}

// Reload implements spec.md §4.9's reload operation: bump epoch, rebuild,
// re-emit the current viewport.
func (h *Handle) Reload() {
	h.mu.Lock()
	h.epoch++
	newEpoch := h.epoch
	h.mu.Unlock()

	h.coordinator.BumpEpoch(newEpoch)

	var fileSize int64
	if info, err := os.Stat(h.path); err == nil {
		fileSize = info.Size()
	}
	if err := h.buildFromScratch(fileSize); err != nil {
		h.logf("engine: reload rebuild failed: %v", err)
		if h.callback != nil {
			h.callback(Result{
				Token: RequestToken{Epoch: newEpoch},
				Kind:  ResultError,
				Err:   translateErr(err),
			})
		}
	}
}

// Close implements spec.md §4.9's close operation: stops the follower and
// drops indices.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.follower != nil {
		h.follower.Stop()
		h.follower = nil
	}
	h.mu.Unlock()
	h.coordinator.Close()
	h.cancel()
}
