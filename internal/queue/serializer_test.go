package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func closeSerializer(t *testing.T, s *Serializer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close serializer: %v", err)
	}
}

func TestSerializerRunsTasksInSubmissionOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)

	s := New(func(_ context.Context, task *Task) (Result, error) {
		mu.Lock()
		order = append(order, task.User)
		mu.Unlock()
		return Result{Content: "ok:" + task.User, Model: "m"}, nil
	}, Options{})
	defer closeSerializer(t, s)

	futures := make([]*Future, 0, 50)
	for i := 0; i < 50; i++ {
		futures = append(futures, s.Submit(context.Background(), "sys", fmt.Sprintf("task-%02d", i), 16))
	}

	for i, f := range futures {
		res, err := f.Wait(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := fmt.Sprintf("ok:task-%02d", i); res.Content != want || res.Model != "m" {
			t.Fatalf("expected %q from model m, got %+v", want, res)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, got := range order {
		if want := fmt.Sprintf("task-%02d", i); got != want {
			t.Fatalf("task %d executed out of order: %q", i, got)
		}
	}
}

func TestSerializerAtMostOneInFlight(t *testing.T) {
	var (
		active  int32
		overlap int32
	)

	s := New(func(_ context.Context, _ *Task) (Result, error) {
		if atomic.AddInt32(&active, 1) != 1 {
			atomic.StoreInt32(&overlap, 1)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&active, -1)
		return Result{Content: "done"}, nil
	}, Options{})
	defer closeSerializer(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Submit(context.Background(), "sys", "user", 16).Wait(context.Background()); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&overlap) != 0 {
		t.Fatal("handler observed concurrent execution")
	}

	stats := s.Stats()
	if stats.MaxInFlight != 1 {
		t.Fatalf("expected max in flight 1, got %d", stats.MaxInFlight)
	}
	if stats.Accepted != 20 || stats.Completed != 20 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
}

func TestSerializerNextTaskWaitsForPrevious(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2)

	s := New(func(_ context.Context, task *Task) (Result, error) {
		started <- task.User
		if task.User == "first" {
			<-release
			return Result{}, errors.New("first failed")
		}
		return Result{Content: "second ok"}, nil
	}, Options{})
	defer closeSerializer(t, s)

	first := s.Submit(context.Background(), "sys", "first", 16)
	if got := <-started; got != "first" {
		t.Fatalf("expected first task to start, got %q", got)
	}

	second := s.Submit(context.Background(), "sys", "second", 16)

	select {
	case got := <-started:
		t.Fatalf("task %q started while another was in flight", got)
	case <-time.After(20 * time.Millisecond):
	}

	stats := s.Stats()
	if stats.InFlight != 1 || stats.Pending != 1 || stats.Completed != 0 || stats.Accepted != 2 {
		t.Fatalf("unexpected stats while first task runs: %+v", stats)
	}

	close(release)

	if _, err := first.Wait(context.Background()); err == nil {
		t.Fatal("expected first task failure to be returned")
	}
	res, err := second.Wait(context.Background())
	if err != nil || res.Content != "second ok" {
		t.Fatalf("unexpected second result: %+v, %v", res, err)
	}
}

func TestSerializerTaskSurvivesCallerCancellation(t *testing.T) {
	var ran atomic.Bool
	release := make(chan struct{})
	s := New(func(ctx context.Context, _ *Task) (Result, error) {
		<-release
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		ran.Store(true)
		return Result{Content: "ok"}, nil
	}, Options{})
	defer closeSerializer(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	future := s.Submit(ctx, "sys", "user", 16)
	if _, err := future.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected waiting caller to observe cancellation, got %v", err)
	}
	close(release)

	<-future.Done()
	if !ran.Load() {
		t.Fatal("expected task to run to completion despite caller cancellation")
	}
}

func TestSerializerRecoversHandlerPanic(t *testing.T) {
	s := New(func(_ context.Context, task *Task) (Result, error) {
		if task.User == "boom" {
			panic("boom")
		}
		return Result{Content: "fine"}, nil
	}, Options{})
	defer closeSerializer(t, s)

	if _, err := s.Submit(context.Background(), "sys", "boom", 16).Wait(context.Background()); err == nil {
		t.Fatal("expected panic to surface as error")
	}
	if res, err := s.Submit(context.Background(), "sys", "next", 16).Wait(context.Background()); err != nil || res.Content != "fine" {
		t.Fatalf("worker did not survive panic: %+v, %v", res, err)
	}
}

func TestSerializerRejectsAfterClose(t *testing.T) {
	s := New(func(context.Context, *Task) (Result, error) { return Result{Content: "ok"}, nil }, Options{})
	closeSerializer(t, s)

	if _, err := s.Submit(context.Background(), "sys", "late", 16).Wait(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSerializerPacing(t *testing.T) {
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	s := New(func(context.Context, *Task) (Result, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return Result{Content: "ok"}, nil
	}, Options{MinInterval: 30 * time.Millisecond})
	defer closeSerializer(t, s)

	a := s.Submit(context.Background(), "sys", "a", 16)
	b := s.Submit(context.Background(), "sys", "b", 16)
	if _, err := b.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-a.Done()

	mu.Lock()
	defer mu.Unlock()
	if gap := starts[1].Sub(starts[0]); gap < 20*time.Millisecond {
		t.Fatalf("expected paced starts, gap was %s", gap)
	}
}
