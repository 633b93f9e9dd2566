package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	DepositStatusCompleted = "completed"
	DepositStatusRejected  = "rejected"
)

// DepositRecord is one append-only ledger entry for a credited deposit.
// Rows are never mutated after insert.
type DepositRecord struct {
	bun.BaseModel `bun:"table:deposits,alias:d"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	AccountID     int64     `bun:"account_id,notnull" json:"account_id"`
	ItemKind      string    `bun:"item_kind,notnull" json:"item_kind"`
	PointsAwarded int64     `bun:"points_awarded,notnull" json:"points_awarded"`
	Status        string    `bun:"status,notnull,default:'completed'" json:"status"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// RedemptionRecord is one append-only ledger entry for a debited redemption.
type RedemptionRecord struct {
	bun.BaseModel `bun:"table:redemptions,alias:rd"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	AccountID   int64     `bun:"account_id,notnull" json:"account_id"`
	RewardID    int64     `bun:"reward_id,notnull" json:"reward_id"`
	PointsSpent int64     `bun:"points_spent,notnull" json:"points_spent"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
