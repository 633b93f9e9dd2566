// Package session tracks which account is bound to each kiosk terminal.
package session

import (
	"log/slog"
	"sync"
	"time"
)

// Gateway holds the single active binding for one terminal. A new card scan
// always wins: scanning while someone else is bound rebinds the terminal to
// the new account, so a walked-away user can never lock the kiosk.
type Gateway struct {
	mu           sync.Mutex
	terminalID   string
	accountID    int64
	bound        bool
	boundAt      time.Time
	lastActivity time.Time
	timeout      time.Duration
	now          func() time.Time
}

// Binding is a point-in-time snapshot of a terminal's session state.
type Binding struct {
	TerminalID string    `json:"terminal_id"`
	AccountID  int64     `json:"account_id"`
	BoundAt    time.Time `json:"bound_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func NewGateway(terminalID string, timeout time.Duration) *Gateway {
	return &Gateway{
		terminalID: terminalID,
		timeout:    timeout,
		now:        time.Now,
	}
}

// Bind attaches an account to the terminal, replacing any previous binding.
// The previous account ID and whether a rebind happened are returned so the
// caller can log the takeover.
func (g *Gateway) Bind(accountID int64) (previous int64, rebound bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.expireLocked(now)

	if g.bound && g.accountID != accountID {
		previous, rebound = g.accountID, true
	}

	g.accountID = accountID
	g.bound = true
	g.boundAt = now
	g.lastActivity = now
	return previous, rebound
}

// Active returns the bound account, refreshing the inactivity clock. The
// second return is false when nobody is bound or the binding has timed out.
func (g *Gateway) Active() (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.expireLocked(now)
	if !g.bound {
		return 0, false
	}
	g.lastActivity = now
	return g.accountID, true
}

// Peek reports the binding without refreshing the inactivity clock.
func (g *Gateway) Peek() (Binding, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expireLocked(g.now())
	if !g.bound {
		return Binding{}, false
	}
	return Binding{
		TerminalID: g.terminalID,
		AccountID:  g.accountID,
		BoundAt:    g.boundAt,
		ExpiresAt:  g.lastActivity.Add(g.timeout),
	}, true
}

// Unbind clears the binding. Unbinding an already-idle terminal is a no-op.
func (g *Gateway) Unbind() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clearLocked()
}

func (g *Gateway) expireLocked(now time.Time) {
	if !g.bound || now.Sub(g.lastActivity) < g.timeout {
		return
	}
	slog.Info("Session expired from inactivity",
		slog.String("type", "sys"),
		slog.String("terminal_id", g.terminalID),
		slog.Int64("account_id", g.accountID))
	g.clearLocked()
}

func (g *Gateway) clearLocked() {
	g.accountID = 0
	g.bound = false
	g.boundAt = time.Time{}
	g.lastActivity = time.Time{}
}

// Manager hands out one Gateway per terminal ID.
type Manager struct {
	mu       sync.Mutex
	gateways map[string]*Gateway
	timeout  time.Duration
}

func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		gateways: make(map[string]*Gateway),
		timeout:  timeout,
	}
}

func (m *Manager) Terminal(terminalID string) *Gateway {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gateways[terminalID]
	if !ok {
		g = NewGateway(terminalID, m.timeout)
		m.gateways[terminalID] = g
	}
	return g
}
