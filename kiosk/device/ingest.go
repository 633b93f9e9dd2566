package device

import (
	"log/slog"
	"time"
)

// Ingest is the scan source fed by the reader firmware's HTTP reports.
type Ingest struct {
	ch  chan Scan
	now func() time.Time
}

func NewIngest() *Ingest {
	return &Ingest{
		ch:  make(chan Scan, scanQueueSize),
		now: time.Now,
	}
}

func (i *Ingest) Scans() <-chan Scan {
	return i.ch
}

// Push queues one raw reader report. Reports are dropped when the queue is
// full so a wedged consumer cannot back-pressure the reader endpoint.
func (i *Ingest) Push(terminalID, rawUID string) bool {
	scan := Scan{TerminalID: terminalID, RawUID: rawUID, At: i.now()}
	select {
	case i.ch <- scan:
		return true
	default:
		slog.Warn("Ingest queue full, dropping scan",
			slog.String("type", "device"),
			slog.String("terminal_id", terminalID))
		return false
	}
}

// Close ends the scan stream. Call once, after the reader endpoint stops
// accepting reports.
func (i *Ingest) Close() {
	close(i.ch)
}
