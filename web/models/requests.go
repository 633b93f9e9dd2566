package models

import (
	"time"

	kioskmodels "github.com/smartvendoplus/smartvendo/kiosk/database/models"
)

// ScanRequest is what the reader firmware posts for every card read.
type ScanRequest struct {
	UID string `json:"uid"`
}

// RegisterRequest creates an account for the last unknown card scanned on
// the terminal. CardUID may be supplied directly when registration happens
// from the admin panel instead of the kiosk flow.
type RegisterRequest struct {
	CardUID   string `json:"card_uid"`
	StudentID string `json:"student_id"`
	Email     string `json:"email"`
}

// DepositRequest credits the bound account for one recyclable item.
type DepositRequest struct {
	ItemKind string `json:"item_kind"`
}

// RedeemRequest spends points of the bound account on one reward unit.
type RedeemRequest struct {
	RewardName string `json:"reward_name"`
}

// AdminLoginRequest authenticates the admin panel.
type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RewardCreateRequest adds a reward to the catalog.
type RewardCreateRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Cost        int64  `json:"cost"`
	Stock       int64  `json:"stock"`
}

// RewardUpdateRequest applies a partial catalog update.
type RewardUpdateRequest = kioskmodels.RewardUpdate

// DeviceCommandRequest forwards a raw command to the bin controller.
type DeviceCommandRequest struct {
	Command string `json:"command"`
}

// AccountView is the account shape returned to the kiosk UI. It hides the
// audit columns the admin panel gets.
type AccountView struct {
	ID        int64     `json:"id"`
	CardUID   string    `json:"card_uid"`
	StudentID string    `json:"student_id"`
	Balance   int64     `json:"balance"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAccountView projects an account for the kiosk UI.
func NewAccountView(a *kioskmodels.Account) *AccountView {
	return &AccountView{
		ID:        a.ID,
		CardUID:   a.CardUID,
		StudentID: a.StudentID,
		Balance:   a.Balance,
		ExpiresAt: a.ExpiresAt,
	}
}

// DashboardStats aggregates the admin dashboard numbers.
type DashboardStats struct {
	TotalAccounts    int64 `json:"total_accounts"`
	TotalRewards     int64 `json:"total_rewards"`
	DepositsToday    int64 `json:"deposits_today"`
	RedemptionsToday int64 `json:"redemptions_today"`
}
