package device

import (
	"context"
	"testing"
	"time"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
	"github.com/smartvendoplus/smartvendo/kiosk/identity"
	"github.com/smartvendoplus/smartvendo/kiosk/session"
)

type stubResolver struct {
	known map[string]*models.Account
}

func (s *stubResolver) Resolve(ctx context.Context, rawUID string) (*identity.Resolution, error) {
	cardUID := identity.NormalizeUID(rawUID)
	if account, ok := s.known[cardUID]; ok {
		return &identity.Resolution{Account: account, CardUID: cardUID, Known: true}, nil
	}
	return &identity.Resolution{CardUID: cardUID}, nil
}

type eventRecorder struct {
	types []string
}

func (r *eventRecorder) Emit(eventType string, payload map[string]any) {
	r.types = append(r.types, eventType)
}

func TestBinder_KnownCardBindsTerminal(t *testing.T) {
	resolver := &stubResolver{known: map[string]*models.Account{
		"04:A3:1B:9C": {ID: 7, CardUID: "04:A3:1B:9C"},
	}}
	sessions := session.NewManager(time.Hour)
	events := &eventRecorder{}
	b := NewBinder(nil, resolver, sessions, events)

	b.handle(context.Background(), Scan{TerminalID: "kiosk-1", RawUID: "04a31b9c"})

	id, ok := sessions.Terminal("kiosk-1").Active()
	if !ok || id != 7 {
		t.Errorf("terminal binding = (%d, %v), want (7, true)", id, ok)
	}
	if len(events.types) != 1 || events.types[0] != "user_login" {
		t.Errorf("events = %v, want [user_login]", events.types)
	}
}

func TestBinder_UnknownCardParkedForRegistration(t *testing.T) {
	resolver := &stubResolver{}
	sessions := session.NewManager(time.Hour)
	b := NewBinder(nil, resolver, sessions, nil)

	b.handle(context.Background(), Scan{TerminalID: "kiosk-1", RawUID: "deadbeef"})

	if _, ok := sessions.Terminal("kiosk-1").Active(); ok {
		t.Error("unknown card should not bind the terminal")
	}

	cardUID, ok := b.ClaimUnknown("kiosk-1")
	if !ok || cardUID != "DE:AD:BE:EF" {
		t.Errorf("ClaimUnknown() = (%q, %v), want (DE:AD:BE:EF, true)", cardUID, ok)
	}

	// Claims are one-shot.
	if _, ok := b.ClaimUnknown("kiosk-1"); ok {
		t.Error("second ClaimUnknown() should find nothing")
	}
}

func TestBinder_UnknownClaimExpires(t *testing.T) {
	resolver := &stubResolver{}
	b := NewBinder(nil, resolver, session.NewManager(time.Hour), nil)

	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	b.handle(context.Background(), Scan{TerminalID: "kiosk-1", RawUID: "deadbeef"})

	clock = clock.Add(registrationWindow + time.Second)
	if _, ok := b.ClaimUnknown("kiosk-1"); ok {
		t.Error("stale unknown scan should not be claimable")
	}
}

func TestBinder_LaterScanReplacesParkedCard(t *testing.T) {
	resolver := &stubResolver{}
	b := NewBinder(nil, resolver, session.NewManager(time.Hour), nil)

	b.handle(context.Background(), Scan{TerminalID: "kiosk-1", RawUID: "deadbeef"})
	b.handle(context.Background(), Scan{TerminalID: "kiosk-1", RawUID: "0badf00d"})

	cardUID, ok := b.ClaimUnknown("kiosk-1")
	if !ok || cardUID != "0B:AD:F0:0D" {
		t.Errorf("ClaimUnknown() = (%q, %v), want (0B:AD:F0:0D, true)", cardUID, ok)
	}
}
