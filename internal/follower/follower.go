// Package follower implements C7: a single poller that watches an open
// file's (size, mtime) and decides whether to extend the index, trigger a
// full rebuild, or leave a stale viewport alone.
//
// Directly adapted from the teacher's Tailer (internal/conv/tailer.go):
// same fsnotify-watcher-plus-ticker-fallback dual wake-up loop, same
// open/stat/seek-by-offset read shape, same context-based shutdown — but
// generalized from "emit new JSONL lines on a channel" to "run the
// size/mtime decision procedure spec.md §4.7 prescribes and report what
// happened via a callback," since the follower's job here is to drive the
// Row/X Index and Viewport Coordinator, not to hand lines to a consumer.
package follower

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is spec.md §4.7's default POLL_INTERVAL.
const DefaultPollInterval = 5 * time.Second

// Decision is what the poll procedure of spec.md §4.7 decided to do.
type Decision int

const (
	NoChange Decision = iota
	Grew
	Truncated
	TailRewritten
	Gone
)

func (d Decision) String() string {
	switch d {
	case NoChange:
		return "no-change"
	case Grew:
		return "grew"
	case Truncated:
		return "truncated"
	case TailRewritten:
		return "tail-rewritten"
	case Gone:
		return "gone"
	default:
		return "unknown"
	}
}

// Observation is the outcome of one poll: the decision, and the observed
// (size, mtime) to persist into Follower State (spec.md §3).
type Observation struct {
	Decision Decision
	Size     int64
	ModTime  time.Time
}

// ProbeFunc is called only on Observation.Decision == NoChange when mtime
// advanced but size didn't, to let the caller check whether the last
// indexed row's bytes actually changed (spec.md §4.7's third bullet). It
// returns true if the tail was rewritten in place.
type ProbeFunc func() (rewritten bool, err error)

// Follower runs the single poller thread described in spec.md §5: one
// watcher goroutine per engine handle, only while follow is enabled.
type Follower struct {
	path         string
	pollInterval time.Duration
	probe        ProbeFunc
	onObserve    func(Observation)

	lastSize    int64
	lastModTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Follower for path. lastSize/lastModTime seed the initial
// Follower State (spec.md §3), normally the values observed at open time.
// probe may be nil (then a same-size/newer-mtime observation is reported as
// NoChange without a rewrite check).
func New(ctx context.Context, path string, lastSize int64, lastModTime time.Time, pollInterval time.Duration, probe ProbeFunc, onObserve func(Observation)) *Follower {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	fctx, cancel := context.WithCancel(ctx)
	return &Follower{
		path:         path,
		pollInterval: pollInterval,
		probe:        probe,
		onObserve:    onObserve,
		lastSize:     lastSize,
		lastModTime:  lastModTime,
		ctx:          fctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Start begins the poll loop in its own goroutine. An fsnotify watcher on
// the file's directory gives an early wake-up on Write/Create/Rename events
// (same dual-source pattern as the teacher's Tailer), but the poll ticker
// is the sole authority: every wake-up, from whichever source, runs the
// exact same decision procedure in pollOnce.
func (fl *Follower) Start() {
	go fl.loop()
}

// Stop cancels the poll loop and waits for it to exit.
func (fl *Follower) Stop() {
	fl.cancel()
	<-fl.done
}

func (fl *Follower) loop() {
	defer close(fl.done)

	var watcher *fsnotify.Watcher
	if w, err := fsnotify.NewWatcher(); err == nil {
		if addErr := w.Add(filepath.Dir(fl.path)); addErr == nil {
			watcher = w
			defer func() { _ = watcher.Close() }()
		} else {
			_ = w.Close()
		}
	}

	ticker := time.NewTicker(fl.pollInterval)
	defer ticker.Stop()

	fl.pollOnce()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		select {
		case <-fl.ctx.Done():
			return
		case <-ticker.C:
			fl.pollOnce()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(ev.Name) == filepath.Base(fl.path) {
				fl.pollOnce()
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		}
	}
}

// pollOnce runs the (size, mtime) decision procedure of spec.md §4.7 once.
func (fl *Follower) pollOnce() {
	info, err := os.Stat(fl.path)
	if err != nil {
		fl.report(Observation{Decision: Gone})
		return
	}

	size := info.Size()
	mtime := info.ModTime()

	switch {
	case size > fl.lastSize:
		fl.report(Observation{Decision: Grew, Size: size, ModTime: mtime})
	case size < fl.lastSize:
		fl.report(Observation{Decision: Truncated, Size: size, ModTime: mtime})
	case mtime.After(fl.lastModTime):
		rewritten := false
		if fl.probe != nil {
			if r, perr := fl.probe(); perr == nil {
				rewritten = r
			}
		}
		if rewritten {
			fl.report(Observation{Decision: TailRewritten, Size: size, ModTime: mtime})
		} else {
			fl.report(Observation{Decision: NoChange, Size: size, ModTime: mtime})
		}
	default:
		fl.report(Observation{Decision: NoChange, Size: size, ModTime: mtime})
	}

	fl.lastSize = size
	fl.lastModTime = mtime
}

func (fl *Follower) report(obs Observation) {
	if fl.onObserve != nil {
		fl.onObserve(obs)
	}
}

// TailThreshold computes spec.md §4.7's tail threshold: being within this
// many rows of the last indexed row classifies the viewport as "at tail."
func TailThreshold(totalRows int64) int64 {
	const maxThreshold = 100_000
	t := int64(float64(totalRows) * 0.05)
	if t > maxThreshold {
		return maxThreshold
	}
	if t < 0 {
		return 0
	}
	return t
}
