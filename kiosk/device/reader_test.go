package device

import (
	"context"
	"sync"
	"testing"
	"time"
)

type stubSource struct {
	ch chan Scan
}

func (s *stubSource) Scans() <-chan Scan { return s.ch }

func collectScans(t *testing.T, out <-chan Scan, want int) []Scan {
	t.Helper()
	got := make([]Scan, 0, want)
	timeout := time.After(time.Second)
	for len(got) < want {
		select {
		case scan, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, scan)
		case <-timeout:
			t.Fatalf("timed out waiting for scans, got %d of %d", len(got), want)
		}
	}
	return got
}

func TestReader_DebouncesRepeatedScans(t *testing.T) {
	source := &stubSource{ch: make(chan Scan, 8)}
	r := NewReader(source, 2*time.Second)

	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Same card held on the antenna: only the first read survives.
	source.ch <- Scan{TerminalID: "kiosk-1", RawUID: "04A31B9C"}
	source.ch <- Scan{TerminalID: "kiosk-1", RawUID: "04A31B9C"}
	source.ch <- Scan{TerminalID: "kiosk-1", RawUID: "04A31B9C"}

	got := collectScans(t, r.Scans(), 1)
	if got[0].RawUID != "04A31B9C" {
		t.Errorf("got scan %+v, want UID 04A31B9C", got[0])
	}

	select {
	case scan := <-r.Scans():
		t.Errorf("duplicate scan leaked through: %+v", scan)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReader_SameCardAfterWindow(t *testing.T) {
	source := &stubSource{ch: make(chan Scan, 8)}
	r := NewReader(source, 2*time.Second)

	var mu sync.Mutex
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	source.ch <- Scan{TerminalID: "kiosk-1", RawUID: "04A31B9C"}
	collectScans(t, r.Scans(), 1)

	mu.Lock()
	clock = clock.Add(3 * time.Second)
	mu.Unlock()

	source.ch <- Scan{TerminalID: "kiosk-1", RawUID: "04A31B9C"}
	collectScans(t, r.Scans(), 1)
}

func TestReader_TerminalsDebounceIndependently(t *testing.T) {
	source := &stubSource{ch: make(chan Scan, 8)}
	r := NewReader(source, 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	source.ch <- Scan{TerminalID: "kiosk-1", RawUID: "04A31B9C"}
	source.ch <- Scan{TerminalID: "kiosk-2", RawUID: "04A31B9C"}

	got := collectScans(t, r.Scans(), 2)
	if got[0].TerminalID == got[1].TerminalID {
		t.Errorf("expected scans from both terminals, got %+v", got)
	}
}

func TestReader_ClosesOutputOnSourceClose(t *testing.T) {
	source := &stubSource{ch: make(chan Scan)}
	r := NewReader(source, time.Second)

	go r.Run(context.Background())
	close(source.ch)

	select {
	case _, ok := <-r.Scans():
		if ok {
			t.Error("expected closed output channel")
		}
	case <-time.After(time.Second):
		t.Fatal("output channel never closed")
	}
}
