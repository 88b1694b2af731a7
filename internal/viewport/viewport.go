// Package viewport implements C6: the interactive contract that serializes
// rapid viewport requests, versions them, and discards stale work.
//
// The single-slot replace-on-write mailbox and the mutex-guarded shared
// state are grounded on the teacher's ConversationWatcher
// (internal/conv/watcher.go): a sync.RWMutex protects shared fields read by
// one goroutine and written by another, and emitEvent's two delivery modes
// (best-effort drop for high-volume events, blocking-until-cancelled for
// rare/critical ones) are generalized here into the coordinator's two kinds
// of events — discardable in-flight fetch results vs. must-deliver final
// results.
package viewport

import (
	"context"
	"sync"
	"time"

	"github.com/csvtrace/csvtrace/internal/csvtypes"
)

// State is the coordinator's state machine position, per spec.md §4.6.
type State int

const (
	Idle State = iota
	Fetching
	Stale
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// DefaultThrottleInterval and DefaultDebounceDelay are spec.md §4.6's
// defaults.
const (
	DefaultThrottleInterval = 200 * time.Millisecond
	DefaultDebounceDelay    = 300 * time.Millisecond
)

// View is an axis interval tagged with the version/epoch it was requested
// under, per spec.md §3. The engine's fetch treats both bounds as inclusive:
// a row whose axis value equals XEnd is kept.
type View struct {
	XStart, XEnd csvtypes.AxisValue
	Version      uint64
	Epoch        uint64
}

// Equal reports whether two views request the same bounds — used to
// deduplicate consecutive identical requests per spec.md §4.9.
func (v View) Equal(o View) bool {
	return v.XStart.Compare(o.XStart) == 0 && v.XEnd.Compare(o.XEnd) == 0
}

// FetchFunc executes one range fetch for the given view and returns its
// result. It must be safe to call from the coordinator's own goroutine; the
// coordinator never calls it concurrently with itself.
type FetchFunc func(ctx context.Context, v View) (result any, err error)

// ResultFunc delivers a fetch outcome to the caller. When discarded is true,
// v's fetch completed but was superseded by a newer user view before
// delivery (spec.md §8 scenario 4: "Superseded" discards) — result and err
// are meaningless and should be ignored. Exactly one non-discarded call ever
// carries the version the user most recently requested (spec.md §4.9's
// liveness invariant).
type ResultFunc func(v View, result any, err error, discarded bool)

// Coordinator implements the IDLE/FETCHING/STALE state machine of spec.md
// §4.6, including throttle-from-completion and trailing-edge debounce.
type Coordinator struct {
	mu    sync.Mutex
	state State

	user      View
	requested View
	haveUser  bool

	throttleInterval time.Duration
	debounceDelay    time.Duration
	lastFetchDoneAt  time.Time

	fetch  FetchFunc
	onDone ResultFunc

	ctx    context.Context
	cancel context.CancelFunc

	debounceTimer *time.Timer
	fetchCancel   context.CancelFunc
	genCounter    uint64
}

// Option configures a Coordinator at construction.
type Option func(*Coordinator)

// WithIntervals overrides the default throttle/debounce durations.
func WithIntervals(throttle, debounce time.Duration) Option {
	return func(c *Coordinator) {
		c.throttleInterval = throttle
		c.debounceDelay = debounce
	}
}

// New creates a Coordinator bound to fetch and onDone. ctx governs the
// coordinator's lifetime; cancelling it stops any in-flight fetch and
// pending debounce timer.
func New(ctx context.Context, fetch FetchFunc, onDone ResultFunc, opts ...Option) *Coordinator {
	cctx, cancel := context.WithCancel(ctx)
	c := &Coordinator{
		state:            Idle,
		throttleInterval: DefaultThrottleInterval,
		debounceDelay:    DefaultDebounceDelay,
		fetch:            fetch,
		onDone:           onDone,
		ctx:              cctx,
		cancel:           cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops the coordinator: cancels any in-flight fetch and pending timer.
func (c *Coordinator) Close() {
	c.cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	if c.fetchCancel != nil {
		c.fetchCancel()
	}
}

// State returns the coordinator's current state, for tests/diagnostics.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequestViewport records a new user viewport, deduplicating consecutive
// identical bounds at the same epoch (spec.md §4.9). It applies the
// throttle/debounce policy of spec.md §4.6 before actually spawning a fetch.
func (c *Coordinator) RequestViewport(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.haveUser && v.Epoch == c.user.Epoch && v.Equal(c.user) {
		return
	}

	c.user = v
	c.haveUser = true

	switch c.state {
	case Idle:
		if time.Since(c.lastFetchDoneAt) < c.throttleInterval && !c.lastFetchDoneAt.IsZero() {
			c.scheduleDebouncedLocked()
			return
		}
		c.spawnFetchLocked()
	case Fetching:
		c.state = Stale
	case Stale:
		// Already recorded as the new user view above; fetch-done will pick
		// it up per the STALE row of spec.md §4.6's table.
	}
}

// scheduleDebouncedLocked arms (or re-arms) a trailing-edge debounce timer
// that spawns the fetch DebounceDelay after the last call, per spec.md §4.6.
// Must be called with c.mu held.
func (c *Coordinator) scheduleDebouncedLocked() {
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
	gen := c.genCounter
	c.debounceTimer = time.AfterFunc(c.debounceDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.genCounter {
			return // superseded by a newer request or an epoch bump
		}
		if c.state == Idle {
			c.spawnFetchLocked()
		}
	})
}

// spawnFetchLocked transitions to FETCHING and starts the fetch in its own
// goroutine. Must be called with c.mu held.
func (c *Coordinator) spawnFetchLocked() {
	c.state = Fetching
	c.requested = c.user
	c.genCounter++

	fetchCtx, fetchCancel := context.WithCancel(c.ctx)
	c.fetchCancel = fetchCancel
	requested := c.requested

	go func() {
		result, err := c.fetch(fetchCtx, requested)
		c.onFetchDone(requested, result, err)
	}()
}

// onFetchDone implements the fetch-done transitions of spec.md §4.6's table.
func (c *Coordinator) onFetchDone(completed View, result any, err error) {
	c.mu.Lock()

	if completed.Epoch != c.user.Epoch {
		// A bump happened mid-flight; the "any -> epoch-change -> IDLE"
		// transition already reset state. Drop silently.
		c.mu.Unlock()
		return
	}

	c.lastFetchDoneAt = time.Now()

	switch c.state {
	case Fetching:
		if completed.Version == c.user.Version {
			c.state = Idle
			c.mu.Unlock()
			c.onDone(completed, result, err, false)
			return
		}
		// requested.version < user.version: discard, refetch immediately.
		c.spawnFetchLocked()
		c.mu.Unlock()
		c.onDone(completed, nil, nil, true)
	case Stale:
		c.spawnFetchLocked()
		c.mu.Unlock()
		c.onDone(completed, nil, nil, true)
	default:
		c.mu.Unlock()
	}
}

// BumpEpoch implements the "any -> epoch-change -> IDLE" transition: cancels
// any in-flight fetch and pending debounce timer and returns to Idle, per
// spec.md §4.6. The coordinator keeps no displayed-result state to clear.
func (c *Coordinator) BumpEpoch(newEpoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user.Epoch = newEpoch
	c.requested.Epoch = newEpoch
	c.state = Idle
	c.genCounter++
	if c.fetchCancel != nil {
		c.fetchCancel()
		c.fetchCancel = nil
	}
	if c.debounceTimer != nil {
		c.debounceTimer.Stop()
	}
}
