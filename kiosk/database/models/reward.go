package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Reward is a redeemable physical item stocked in the kiosk.
type Reward struct {
	bun.BaseModel `bun:"table:rewards,alias:r"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Name        string `bun:"name,notnull,unique" json:"name"`
	DisplayName string `bun:"display_name,notnull" json:"display_name"`
	ImageRef    string `bun:"image_ref" json:"image_ref"`

	Cost  int64 `bun:"cost,notnull" json:"cost"`
	Stock int64 `bun:"stock,notnull,default:0" json:"stock"`

	// Soft delete flag. Name uniqueness is permanent, inactive rows included.
	Active bool `bun:"active,notnull,default:true" json:"active"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// RewardUpdate carries a partial catalog update. Only non-nil fields are
// applied; stock set through here is an administrative restock, redemption
// decrements go through the transaction engine.
type RewardUpdate struct {
	DisplayName *string `json:"display_name"`
	ImageRef    *string `json:"image_ref"`
	Cost        *int64  `json:"cost"`
	Stock       *int64  `json:"stock"`
	Active      *bool   `json:"active"`
}

// Empty reports whether the update carries no fields.
func (u RewardUpdate) Empty() bool {
	return u.DisplayName == nil && u.ImageRef == nil && u.Cost == nil && u.Stock == nil && u.Active == nil
}
