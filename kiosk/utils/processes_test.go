package utils

import (
	"context"
	"testing"
	"time"
)

func TestProcessManager_StartAndStatuses(t *testing.T) {
	pm := NewProcessManager()
	defer pm.Shutdown(time.Second)

	started := make(chan struct{})
	pm.Start("feeder", "test feeder loop", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("process never started")
	}

	statuses := pm.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("Statuses() returned %d entries, want 1", len(statuses))
	}
	if statuses[0].Name != "feeder" || statuses[0].Description != "test feeder loop" {
		t.Errorf("status = %+v, want feeder/test feeder loop", statuses[0])
	}
	if statuses[0].StartedAt.IsZero() {
		t.Error("StartedAt not recorded")
	}
}

func TestProcessManager_StartReplacesRunning(t *testing.T) {
	pm := NewProcessManager()
	defer pm.Shutdown(time.Second)

	firstStopped := make(chan struct{})
	pm.Start("worker", "first", func(ctx context.Context) {
		<-ctx.Done()
		close(firstStopped)
	})
	pm.Start("worker", "second", func(ctx context.Context) {
		<-ctx.Done()
	})

	select {
	case <-firstStopped:
	case <-time.After(time.Second):
		t.Fatal("first instance not cancelled on replacement")
	}

	statuses := pm.Statuses()
	if len(statuses) != 1 || statuses[0].Description != "second" {
		t.Errorf("statuses = %+v, want single entry for second instance", statuses)
	}
}

func TestProcessManager_Stop(t *testing.T) {
	pm := NewProcessManager()
	defer pm.Shutdown(time.Second)

	stopped := make(chan struct{})
	pm.Start("worker", "stoppable", func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})

	pm.Stop("worker")

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("process not cancelled by Stop")
	}
	if got := len(pm.Statuses()); got != 0 {
		t.Errorf("Statuses() returned %d entries after Stop, want 0", got)
	}
}

func TestProcessManager_ShutdownDrains(t *testing.T) {
	pm := NewProcessManager()

	for _, name := range []string{"a", "b", "c"} {
		pm.Start(name, "drain test", func(ctx context.Context) {
			<-ctx.Done()
		})
	}

	if err := pm.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestProcessManager_ShutdownTimeout(t *testing.T) {
	pm := NewProcessManager()

	release := make(chan struct{})
	pm.Start("stuck", "ignores cancellation", func(ctx context.Context) {
		<-release
	})
	defer close(release)

	if err := pm.Shutdown(50 * time.Millisecond); err != context.DeadlineExceeded {
		t.Fatalf("Shutdown() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestProcessManager_RecoversPanic(t *testing.T) {
	pm := NewProcessManager()
	defer pm.Shutdown(time.Second)

	done := make(chan struct{})
	pm.Start("panicky", "always panics", func(ctx context.Context) {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking process never ran")
	}
	// The panic must not take down the test process; reaching here is the
	// assertion.
}
