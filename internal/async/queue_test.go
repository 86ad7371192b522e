package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueProcessesEveryJob(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	var running, peak int32

	q := NewProcessorQueue(func(ctx context.Context, job Job) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		mu.Lock()
		seen[job.Path] = true
		mu.Unlock()
		if job.Path == "bad" {
			return errors.New("boom")
		}
		return nil
	}, nil, WithWorkers(2), WithQueueSize(1))

	paths := []string{"a", "b", "bad", "c", "d"}
	for _, p := range paths {
		if err := q.Enqueue(context.Background(), Job{Path: p}); err != nil {
			t.Fatalf("Enqueue(%s): %v", p, err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	mu.Lock()
	defer mu.Unlock()
	for _, p := range paths {
		if !seen[p] {
			t.Errorf("job %s not processed", p)
		}
	}
	if peak > 2 {
		t.Errorf("more than 2 jobs ran at once: %d", peak)
	}
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(func(context.Context, Job) error { return nil }, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())
	if err := q.Enqueue(context.Background(), Job{Path: "x"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestHandlerGetsTimeout(t *testing.T) {
	done := make(chan error, 1)
	q := NewProcessorQueue(func(ctx context.Context, _ Job) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}, nil, WithWorkers(1), WithProcessTimeout(20*time.Millisecond))
	if err := q.Enqueue(context.Background(), Job{Path: "slow"}); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler never timed out")
	}
	q.Shutdown(context.Background())
}

func TestBaseContextCancelsRunningJobs(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	done := make(chan error, 1)
	q := NewProcessorQueue(func(ctx context.Context, _ Job) error {
		close(started)
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	}, nil, WithWorkers(1), WithProcessTimeout(time.Minute), WithBaseContext(base))
	if err := q.Enqueue(context.Background(), Job{Path: "long"}); err != nil {
		t.Fatal(err)
	}
	<-started
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("running job ignored the cancelled base context")
	}
	q.Shutdown(context.Background())
}
