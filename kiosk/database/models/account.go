package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Account is a registered kiosk user keyed by a physical card UID.
// Accounts are never deleted; deactivation and expiry gate transactions.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	CardUID   string `bun:"card_uid,notnull,unique" json:"card_uid"`
	StudentID string `bun:"student_id" json:"student_id"`
	Email     string `bun:"email" json:"email"`

	// Balance is a non-negative point count. Mutated only inside
	// engine transactions via guarded updates.
	Balance int64 `bun:"balance,notnull,default:0" json:"balance"`

	Active    bool      `bun:"active,notnull,default:true" json:"active"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`

	LastSeenAt time.Time `bun:"last_seen_at" json:"last_seen_at"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Usable reports whether the account may start new transactions at now.
func (a *Account) Usable(now time.Time) bool {
	return a.Active && now.Before(a.ExpiresAt)
}
