package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsInOrder(t *testing.T) {
	loop := New()
	defer loop.Close(context.Background())

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		if err := loop.Schedule(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Schedule failed: %v", err)
		}
	}

	if err := loop.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("expected 50 tasks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestLoopNeverRunsInline(t *testing.T) {
	loop := New()
	defer loop.Close(context.Background())

	release := make(chan struct{})
	loop.Schedule(func() { <-release })

	var ran atomic.Bool
	loop.Schedule(func() { ran.Store(true) })
	if ran.Load() {
		t.Fatal("task ran before Schedule returned")
	}
	if n := loop.Len(); n != 2 {
		t.Errorf("expected 2 pending, got %d", n)
	}

	close(release)
	loop.Wait(context.Background())
	if !ran.Load() {
		t.Error("task never ran")
	}
	if n := loop.Len(); n != 0 {
		t.Errorf("expected 0 pending, got %d", n)
	}
}

func TestLoopNestedSchedule(t *testing.T) {
	loop := New()
	defer loop.Close(context.Background())

	var mu sync.Mutex
	var got []string
	add := func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}

	loop.Schedule(func() {
		add("outer")
		loop.Schedule(func() { add("nested") })
		add("outer done")
	})
	loop.Schedule(func() { add("second") })

	loop.Wait(context.Background())
	mu.Lock()
	defer mu.Unlock()
	want := []string{"outer", "outer done", "second", "nested"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLoopWaitContext(t *testing.T) {
	loop := New()
	release := make(chan struct{})
	loop.Schedule(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := loop.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	close(release)
	if err := loop.Close(context.Background()); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestLoopPanicRecovery(t *testing.T) {
	var recovered atomic.Value
	loop := New(WithPanicHandler(func(r any, stack []byte) {
		recovered.Store(r)
	}))
	defer loop.Close(context.Background())

	var ran atomic.Bool
	loop.Schedule(func() { panic("boom") })
	loop.Schedule(func() { ran.Store(true) })
	loop.Wait(context.Background())

	if recovered.Load() != "boom" {
		t.Errorf("expected panic value boom, got %v", recovered.Load())
	}
	if !ran.Load() {
		t.Error("loop must keep running after a panic")
	}
}

func TestLoopClose(t *testing.T) {
	loop := New()

	var count atomic.Int32
	for i := 0; i < 10; i++ {
		loop.Schedule(func() {
			time.Sleep(time.Millisecond)
			count.Add(1)
		})
	}

	if err := loop.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if n := count.Load(); n != 10 {
		t.Errorf("queued tasks must run before Close returns, ran %d", n)
	}
	if err := loop.Schedule(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := loop.Close(context.Background()); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := loop.Wait(context.Background()); err != nil {
		t.Errorf("Wait on closed loop failed: %v", err)
	}
}

func TestScheduleNil(t *testing.T) {
	loop := New()
	defer loop.Close(context.Background())
	if err := loop.Schedule(nil); err != nil {
		t.Errorf("expected nil task to be ignored, got %v", err)
	}
	if n := loop.Len(); n != 0 {
		t.Errorf("expected 0 pending, got %d", n)
	}
}

func TestManualLoopRunsOnDrain(t *testing.T) {
	loop := NewManual()
	ctx := context.Background()

	var got []string
	loop.Schedule(func() {
		got = append(got, "first")
		loop.Schedule(func() { got = append(got, "nested") })
	})
	loop.Schedule(func() { got = append(got, "second") })
	got = append(got, "owner")

	if n := loop.Len(); n != 2 {
		t.Errorf("expected 2 pending, got %d", n)
	}
	if err := loop.Drain(ctx); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	want := []string{"owner", "first", "second", "nested"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if n := loop.Len(); n != 0 {
		t.Errorf("expected 0 pending, got %d", n)
	}
}

func TestManualLoopReentrant(t *testing.T) {
	loop := NewManual()
	ctx := context.Background()

	var drainErr, waitErr error
	loop.Schedule(func() {
		drainErr = loop.Drain(ctx)
		waitErr = loop.Wait(ctx)
	})
	if err := loop.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !errors.Is(drainErr, ErrReentrant) || !errors.Is(waitErr, ErrReentrant) {
		t.Errorf("expected ErrReentrant, got %v and %v", drainErr, waitErr)
	}
}

func TestManualLoopClose(t *testing.T) {
	loop := NewManual()

	var count int
	for i := 0; i < 3; i++ {
		loop.Schedule(func() { count++ })
	}
	if err := loop.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if count != 3 {
		t.Errorf("queued tasks must run before Close returns, ran %d", count)
	}
	if err := loop.Schedule(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestManualLoopDrainContext(t *testing.T) {
	loop := NewManual()
	ctx, cancel := context.WithCancel(context.Background())

	var ran []int
	loop.Schedule(func() {
		ran = append(ran, 1)
		cancel()
	})
	loop.Schedule(func() { ran = append(ran, 2) })

	if err := loop.Drain(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(ran) != 1 {
		t.Errorf("expected drain to stop after the first task, ran %v", ran)
	}
	if err := loop.Drain(context.Background()); err != nil || len(ran) != 2 {
		t.Errorf("expected remaining task to run, ran %v, err %v", ran, err)
	}
}

func TestDrainBackgroundLoop(t *testing.T) {
	loop := New()
	defer loop.Close(context.Background())
	if loop.Manual() {
		t.Error("New must start a background loop")
	}
	if err := loop.Drain(context.Background()); !errors.Is(err, ErrNotManual) {
		t.Errorf("expected ErrNotManual, got %v", err)
	}
}
