package device

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smartvendoplus/smartvendo/kiosk/identity"
	"github.com/smartvendoplus/smartvendo/kiosk/session"
)

// registrationWindow is how long an unknown card scan stays eligible for
// registration before the kiosk forgets it.
const registrationWindow = 2 * time.Minute

type Resolver interface {
	Resolve(ctx context.Context, rawUID string) (*identity.Resolution, error)
}

type Emitter interface {
	Emit(eventType string, payload map[string]any)
}

type unknownScan struct {
	cardUID string
	at      time.Time
}

// Binder consumes debounced scans and turns them into terminal sessions.
// Known cards bind the terminal; unknown cards are parked so the next
// registration request on that terminal can claim them.
type Binder struct {
	scans    <-chan Scan
	resolver Resolver
	sessions *session.Manager
	events   Emitter

	mu      sync.Mutex
	unknown map[string]unknownScan
	now     func() time.Time
}

func NewBinder(scans <-chan Scan, resolver Resolver, sessions *session.Manager, events Emitter) *Binder {
	return &Binder{
		scans:    scans,
		resolver: resolver,
		sessions: sessions,
		events:   events,
		unknown:  make(map[string]unknownScan),
		now:      time.Now,
	}
}

// Run processes scans until the context is cancelled or the scan stream
// closes.
func (b *Binder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case scan, ok := <-b.scans:
			if !ok {
				return
			}
			b.handle(ctx, scan)
		}
	}
}

func (b *Binder) handle(ctx context.Context, scan Scan) {
	res, err := b.resolver.Resolve(ctx, scan.RawUID)
	if err != nil {
		slog.Error("Failed to resolve card scan",
			slog.String("type", "device"),
			slog.String("terminal_id", scan.TerminalID),
			slog.Any("error", err))
		return
	}

	if !res.Known {
		b.parkUnknown(scan.TerminalID, res.CardUID)
		slog.Info("Unknown card scanned, awaiting registration",
			slog.String("type", "device"),
			slog.String("terminal_id", scan.TerminalID),
			slog.String("card_uid", res.CardUID))
		return
	}

	previous, rebound := b.sessions.Terminal(scan.TerminalID).Bind(res.Account.ID)
	if rebound {
		slog.Info("Terminal rebound to new card",
			slog.String("type", "sys"),
			slog.String("terminal_id", scan.TerminalID),
			slog.Int64("previous_account_id", previous),
			slog.Int64("account_id", res.Account.ID))
	}

	if b.events != nil {
		b.events.Emit("user_login", map[string]any{
			"account_id":  res.Account.ID,
			"card_uid":    res.CardUID,
			"terminal_id": scan.TerminalID,
		})
	}
}

func (b *Binder) parkUnknown(terminalID, cardUID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unknown[terminalID] = unknownScan{cardUID: cardUID, at: b.now()}
}

// ClaimUnknown returns and clears the most recent unknown card scanned on a
// terminal, if it is still inside the registration window.
func (b *Binder) ClaimUnknown(terminalID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	scan, ok := b.unknown[terminalID]
	if !ok {
		return "", false
	}
	delete(b.unknown, terminalID)
	if b.now().Sub(scan.at) > registrationWindow {
		return "", false
	}
	return scan.cardUID, true
}
