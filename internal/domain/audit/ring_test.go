package audit

import (
	"fmt"
	"sync"
	"testing"
)

func record(i int) DecisionRecord {
	return DecisionRecord{AgentID: fmt.Sprintf("agent-%d", i), Decision: "allow"}
}

func TestRing_AppendAndSnapshot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		capacity int
		appends  int
		limit    int
		wantLen  int
		// newest is the agent index expected at snapshot[0].
		newest int
	}{
		{name: "under capacity", capacity: 5, appends: 3, limit: 5, wantLen: 3, newest: 2},
		{name: "at capacity", capacity: 5, appends: 5, limit: 5, wantLen: 5, newest: 4},
		{name: "overflow evicts oldest", capacity: 5, appends: 12, limit: 5, wantLen: 5, newest: 11},
		{name: "limit below held", capacity: 5, appends: 5, limit: 2, wantLen: 2, newest: 4},
		{name: "zero limit returns all", capacity: 5, appends: 4, limit: 0, wantLen: 4, newest: 3},
		{name: "empty", capacity: 5, appends: 0, limit: 5, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRing(tt.capacity)
			for i := 0; i < tt.appends; i++ {
				r.Append(record(i))
			}

			snap := r.Snapshot(tt.limit)
			if len(snap) != tt.wantLen {
				t.Fatalf("Snapshot(%d) returned %d records, want %d", tt.limit, len(snap), tt.wantLen)
			}
			if tt.wantLen == 0 {
				return
			}

			// Newest first, strictly descending, no duplicates.
			for i, rec := range snap {
				want := fmt.Sprintf("agent-%d", tt.newest-i)
				if rec.AgentID != want {
					t.Errorf("Snapshot()[%d].AgentID = %q, want %q", i, rec.AgentID, want)
				}
			}
		})
	}
}

func TestRing_DefaultCapacity(t *testing.T) {
	t.Parallel()

	r := NewRing(0)
	if r.Capacity() != DefaultRingSize {
		t.Errorf("NewRing(0).Capacity() = %d, want %d", r.Capacity(), DefaultRingSize)
	}
}

func TestRing_ConcurrentAppendAndSnapshot(t *testing.T) {
	t.Parallel()

	const (
		writers   = 8
		perWriter = 200
	)
	r := NewRing(50)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				r.Append(record(w*perWriter + i))
			}
		}(w)
	}

	// Concurrent readers must always see a consistent, bounded view.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			snap := r.Snapshot(50)
			if len(snap) > 50 {
				t.Errorf("Snapshot() returned %d records, capacity is 50", len(snap))
				return
			}
		}
	}()

	wg.Wait()
	<-done

	if got := r.Len(); got != 50 {
		t.Errorf("Len() after %d appends = %d, want 50", writers*perWriter, got)
	}
}
