package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func docs(n int) []*Document {
	out := make([]*Document, n)
	for i := range out {
		out[i] = NewDocument(fmt.Sprintf("page%d.html", i), ".")
	}
	return out
}

// TestBatchProcessorProcessBatch tests batch processing.
func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("processes all documents", func(t *testing.T) {
		t.Parallel()

		var count atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			return New([]Step{&mockStep{name: "count", doFunc: func(context.Context, *Document) error {
				count.Add(1)
				return nil
			}}}, WithLogger(discard))
		}, WithBatchLogger(discard))

		if err := bp.ProcessBatch(context.Background(), docs(5)); err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if count.Load() != 5 {
			t.Errorf("processed %d, want 5", count.Load())
		}
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		bp := NewBatchProcessor(func() *Pipeline {
			return New([]Step{&mockStep{name: "slow", doFunc: func(context.Context, *Document) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
				return nil
			}}}, WithLogger(discard))
		}, WithConcurrency(2), WithBatchLogger(discard))

		if err := bp.ProcessBatch(context.Background(), docs(8)); err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("peak concurrency %d, want <= 2", peak.Load())
		}
	})

	t.Run("continues after individual failure", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		bp := NewBatchProcessor(func() *Pipeline {
			return New([]Step{&mockStep{name: "maybe", doFunc: func(_ context.Context, d *Document) error {
				if d.Source == "page1.html" {
					return boom
				}
				return nil
			}}}, WithLogger(discard))
		}, WithBatchLogger(discard))

		in := docs(3)
		if err := bp.ProcessBatch(context.Background(), in); err != nil {
			t.Fatalf("ProcessBatch() error = %v", err)
		}
		for i, d := range in {
			failed := d.Err != nil
			if failed != (i == 1) {
				t.Errorf("doc %d: Err = %v", i, d.Err)
			}
		}
	})

	t.Run("calls callback for each document", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		seen := map[int]string{}
		bp := NewBatchProcessor(func() *Pipeline {
			return New([]Step{&mockStep{name: "noop"}}, WithLogger(discard))
		}, WithBatchLogger(discard))

		in := docs(4)
		err := bp.ProcessBatchWithCallback(context.Background(), in, func(d *Document, i int) {
			mu.Lock()
			seen[i] = d.Source
			mu.Unlock()
		})
		if err != nil {
			t.Fatalf("ProcessBatchWithCallback() error = %v", err)
		}
		for i, d := range in {
			if seen[i] != d.Source {
				t.Errorf("callback %d got %q, want %q", i, seen[i], d.Source)
			}
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bp := NewBatchProcessor(func() *Pipeline {
			return New([]Step{&mockStep{name: "noop"}}, WithLogger(discard))
		}, WithBatchLogger(discard))

		in := docs(3)
		if err := bp.ProcessBatch(ctx, in); !errors.Is(err, context.Canceled) {
			t.Errorf("ProcessBatch() error = %v, want context.Canceled", err)
		}
		if countFailed(in) != 3 {
			t.Errorf("failed = %d, want 3", countFailed(in))
		}
	})
}
