package viewport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/csvtrace/csvtrace/internal/csvtypes"
)

func axis(n int64) csvtypes.AxisValue {
	return csvtypes.AxisValue{Kind: csvtypes.AxisInt64, I64: n}
}

func TestIdleToFetchingSpawnsImmediately(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	done := make(chan struct{}, 1)

	fetch := func(ctx context.Context, v View) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "result", nil
	}
	onDone := func(v View, result any, err error, discarded bool) {
		if discarded {
			t.Error("unexpected discard")
		}
		done <- struct{}{}
	}

	c := New(context.Background(), fetch, onDone, WithIntervals(0, 0))
	defer c.Close()

	c.RequestViewport(View{XStart: axis(0), XEnd: axis(10), Version: 1})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fetch result")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRapidChangesCollapseToLatestVersion(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var seenVersions []uint64
	var discardedVersions []uint64
	finalDone := make(chan View, 1)

	fetch := func(ctx context.Context, v View) (any, error) {
		<-release
		mu.Lock()
		seenVersions = append(seenVersions, v.Version)
		mu.Unlock()
		return nil, nil
	}
	onDone := func(v View, result any, err error, discarded bool) {
		if discarded {
			mu.Lock()
			discardedVersions = append(discardedVersions, v.Version)
			mu.Unlock()
			return
		}
		finalDone <- v
	}

	c := New(context.Background(), fetch, onDone, WithIntervals(0, 0))
	defer c.Close()

	c.RequestViewport(View{XStart: axis(0), XEnd: axis(1), Version: 1})
	// First fetch is now blocked on release; subsequent requests go STALE.
	c.RequestViewport(View{XStart: axis(0), XEnd: axis(2), Version: 2})
	c.RequestViewport(View{XStart: axis(0), XEnd: axis(3), Version: 3})

	close(release)

	// Two fetches run (the in-flight v1 fetch, then the STALE-triggered
	// refetch that picks up the latest user view v3 — v2 was superseded
	// before its own fetch ever started), but only the final one is a live
	// delivery: spec.md §8 scenario 4 requires v1 to arrive as a discard and
	// v3 as the one non-discard result.
	var final View
	select {
	case final = <-finalDone:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for final fetch result")
	}
	if final.Version != 3 {
		t.Fatalf("final delivered version = %d, want 3", final.Version)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seenVersions) != 2 {
		t.Fatalf("fetch count = %d, want 2: %v", len(seenVersions), seenVersions)
	}
	if seenVersions[0] != 1 || seenVersions[1] != 3 {
		t.Fatalf("fetch versions = %v, want [1 3]", seenVersions)
	}
	if len(discardedVersions) != 1 || discardedVersions[0] != 1 {
		t.Fatalf("discarded versions = %v, want [1]", discardedVersions)
	}
}

func TestDuplicateRequestDeduped(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	fetch := func(ctx context.Context, v View) (any, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, nil
	}
	done := make(chan struct{}, 1)
	onDone := func(v View, result any, err error, discarded bool) { done <- struct{}{} }

	c := New(context.Background(), fetch, onDone, WithIntervals(0, 0))
	defer c.Close()

	v := View{XStart: axis(0), XEnd: axis(10), Version: 1}
	c.RequestViewport(v)
	<-done
	c.RequestViewport(v) // identical bounds, same epoch: deduplicated

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (duplicate should be deduped)", calls)
	}
}

func TestEpochBumpCancelsAndResetsToIdle(t *testing.T) {
	fetch := func(ctx context.Context, v View) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	onDone := func(v View, result any, err error, discarded bool) {}

	c := New(context.Background(), fetch, onDone, WithIntervals(0, 0))
	defer c.Close()

	c.RequestViewport(View{XStart: axis(0), XEnd: axis(10), Version: 1})
	time.Sleep(20 * time.Millisecond)
	if c.State() != Fetching {
		t.Fatalf("state = %v, want Fetching", c.State())
	}

	c.BumpEpoch(1)
	if c.State() != Idle {
		t.Fatalf("state = %v, want Idle after epoch bump", c.State())
	}
}
