package device

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const (
	scanQueueSize     = 64
	debounceCacheSize = 128
)

// Scan is one raw card read from a terminal.
type Scan struct {
	TerminalID string
	RawUID     string
	At         time.Time
}

// Source produces raw card scans, typically the HTTP endpoint the reader
// firmware posts to.
type Source interface {
	Scans() <-chan Scan
}

// Reader debounces duplicate scans and hands the survivors to a consumer.
// RFID readers repeat the UID for as long as the card sits on the antenna,
// so the same card on the same terminal is ignored inside the debounce
// window.
type Reader struct {
	source   Source
	window   time.Duration
	lastSeen *lru.Cache
	out      chan Scan
	now      func() time.Time
}

func NewReader(source Source, window time.Duration) *Reader {
	lastSeen, _ := lru.New(debounceCacheSize)
	return &Reader{
		source:   source,
		window:   window,
		lastSeen: lastSeen,
		out:      make(chan Scan, scanQueueSize),
		now:      time.Now,
	}
}

// Scans returns the debounced scan stream.
func (r *Reader) Scans() <-chan Scan {
	return r.out
}

// Run consumes the source until the context is cancelled. The output channel
// is closed on return.
func (r *Reader) Run(ctx context.Context) {
	defer close(r.out)

	for {
		select {
		case <-ctx.Done():
			return
		case scan, ok := <-r.source.Scans():
			if !ok {
				return
			}
			if r.duplicate(scan) {
				continue
			}
			select {
			case r.out <- scan:
			default:
				slog.Warn("Scan queue full, dropping scan",
					slog.String("type", "device"),
					slog.String("terminal_id", scan.TerminalID))
			}
		}
	}
}

func (r *Reader) duplicate(scan Scan) bool {
	key := scan.TerminalID + "|" + scan.RawUID
	now := r.now()

	if prev, ok := r.lastSeen.Get(key); ok {
		if now.Sub(prev.(time.Time)) < r.window {
			return true
		}
	}
	r.lastSeen.Add(key, now)
	return false
}
