// Package identity maps raw RFID reader output to kiosk accounts.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
	"github.com/smartvendoplus/smartvendo/kiosk/database/repositories"
	"github.com/smartvendoplus/smartvendo/kiosk/engine"
)

// Accounts is the subset of the account repository the resolver needs.
type Accounts interface {
	GetByCardUID(ctx context.Context, cardUID string) (*models.Account, error)
	TouchLastSeen(ctx context.Context, accountID int64) error
}

// Resolution is the outcome of a card scan lookup.
type Resolution struct {
	Account *models.Account
	CardUID string
	Known   bool
}

type Resolver struct {
	accounts Accounts
}

func NewResolver(accounts Accounts) *Resolver {
	return &Resolver{accounts: accounts}
}

// NormalizeUID canonicalizes a raw reader UID. Readers report the same card
// in wildly different shapes (spaces, dashes, mixed case, extra bytes), so
// everything is reduced to the first 4 bytes as uppercase hex pairs joined
// by colons, e.g. "04:A3:1B:9C".
func NormalizeUID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'a' && r <= 'f':
			b.WriteRune(r - 32)
		case r >= 'A' && r <= 'F':
			b.WriteRune(r)
		}
	}

	hex := b.String()
	if len(hex) > 8 {
		hex = hex[:8]
	}

	pairs := make([]string, 0, 4)
	for i := 0; i+2 <= len(hex); i += 2 {
		pairs = append(pairs, hex[i:i+2])
	}
	if len(hex)%2 == 1 {
		pairs = append(pairs, "0"+hex[len(hex)-1:])
	}
	return strings.Join(pairs, ":")
}

// Resolve looks up the account bound to a scanned card. Unknown cards yield
// Known=false rather than an error so callers can route to registration.
func (r *Resolver) Resolve(ctx context.Context, rawUID string) (*Resolution, error) {
	cardUID := NormalizeUID(rawUID)
	if cardUID == "" {
		return nil, fmt.Errorf("%w: empty card UID after normalization", engine.ErrAccountNotFound)
	}

	account, err := r.accounts.GetByCardUID(ctx, cardUID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return &Resolution{CardUID: cardUID}, nil
		}
		return nil, fmt.Errorf("%w: %v", engine.ErrStoreUnavailable, err)
	}

	// Last-seen is bookkeeping only. A failed touch must not block the scan.
	if err := r.accounts.TouchLastSeen(ctx, account.ID); err != nil {
		slog.Warn("Failed to update last seen",
			slog.String("type", "db"),
			slog.Int64("account_id", account.ID),
			slog.Any("error", err))
	}

	return &Resolution{Account: account, CardUID: cardUID, Known: true}, nil
}
