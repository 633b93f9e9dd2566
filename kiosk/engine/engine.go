package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
)

// AwardTable maps a deposit item kind to the points it credits. The table is
// configuration input; the engine rejects kinds it does not list.
type AwardTable map[string]int64

// Emitter receives structured kiosk events. Implementations must not block;
// the engine fires and forgets.
type Emitter interface {
	Emit(eventType string, payload map[string]any)
}

// Engine orchestrates deposit credits and redemption debits atomically
// against the ledger store and the reward catalog.
type Engine struct {
	store    Store
	awards   AwardTable
	events   Emitter
	validity time.Duration
	now      func() time.Time
}

func New(store Store, awards AwardTable, events Emitter, registrationValidity time.Duration) *Engine {
	return &Engine{
		store:    store,
		awards:   awards,
		events:   events,
		validity: registrationValidity,
		now:      time.Now,
	}
}

// DepositResult reports a completed deposit credit.
type DepositResult struct {
	ItemKind      string `json:"item_kind"`
	PointsAwarded int64  `json:"points_awarded"`
	NewBalance    int64  `json:"new_balance"`
}

// RedeemResult reports a completed redemption debit.
type RedeemResult struct {
	RewardName        string `json:"reward_name"`
	RewardDisplayName string `json:"reward_display_name"`
	PointsSpent       int64  `json:"points_spent"`
	NewBalance        int64  `json:"new_balance"`
	NewStock          int64  `json:"new_stock"`
}

// Deposit credits points for one recyclable item. The balance update and the
// history append commit together or not at all.
func (e *Engine) Deposit(ctx context.Context, accountID int64, itemKind string) (*DepositResult, error) {
	points, ok := e.awards[itemKind]
	if !ok {
		e.emit("deposit_rejected", map[string]any{
			"account_id": accountID,
			"item_kind":  itemKind,
			"code":       ErrInvalidItemKind.Code,
		})
		return nil, ErrInvalidItemKind
	}

	var result *DepositResult
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		account, err := tx.AccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := e.checkAccount(account); err != nil {
			return err
		}

		newBalance, err := tx.AddBalance(ctx, accountID, points)
		if err != nil {
			return err
		}

		if err := tx.AppendDeposit(ctx, &models.DepositRecord{
			AccountID:     accountID,
			ItemKind:      itemKind,
			PointsAwarded: points,
			Status:        models.DepositStatusCompleted,
			CreatedAt:     e.now(),
		}); err != nil {
			return err
		}

		result = &DepositResult{
			ItemKind:      itemKind,
			PointsAwarded: points,
			NewBalance:    newBalance,
		}
		return nil
	})
	if err != nil {
		err = classify(err)
		e.emitRejected("deposit_rejected", accountID, map[string]any{"item_kind": itemKind}, err)
		return nil, err
	}

	e.emit("item_deposit", map[string]any{
		"account_id":  accountID,
		"item_kind":   itemKind,
		"points":      points,
		"new_balance": result.NewBalance,
	})
	return result, nil
}

// Redeem debits points and stock for one reward unit. The balance debit, the
// stock decrement, and the history append commit together or not at all;
// when two requests race for the last unit exactly one commits.
func (e *Engine) Redeem(ctx context.Context, accountID int64, rewardName string) (*RedeemResult, error) {
	var result *RedeemResult
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		// Lock order is reward then account, everywhere.
		reward, err := tx.RewardForUpdate(ctx, rewardName)
		if err != nil {
			return err
		}
		if reward.Stock <= 0 {
			return ErrOutOfStock
		}

		account, err := tx.AccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := e.checkAccount(account); err != nil {
			return err
		}
		if account.Balance < reward.Cost {
			return ErrInsufficientPoints
		}

		// Both rows are locked, so the guards only fire if an implementation
		// runs without row locks; a guard failure here is a lost race.
		newBalance, err := tx.AddBalance(ctx, accountID, -reward.Cost)
		if err != nil {
			if IsDomain(err) {
				return ErrConflict
			}
			return err
		}
		newStock, err := tx.DecrementStock(ctx, reward.ID, 1)
		if err != nil {
			if IsDomain(err) {
				return ErrConflict
			}
			return err
		}

		if err := tx.AppendRedemption(ctx, &models.RedemptionRecord{
			AccountID:   accountID,
			RewardID:    reward.ID,
			PointsSpent: reward.Cost,
			CreatedAt:   e.now(),
		}); err != nil {
			return err
		}

		result = &RedeemResult{
			RewardName:        reward.Name,
			RewardDisplayName: reward.DisplayName,
			PointsSpent:       reward.Cost,
			NewBalance:        newBalance,
			NewStock:          newStock,
		}
		return nil
	})
	if err != nil {
		err = classify(err)
		e.emitRejected("redeem_rejected", accountID, map[string]any{"reward_name": rewardName}, err)
		return nil, err
	}

	e.emit("reward_redeem", map[string]any{
		"account_id":   accountID,
		"reward_name":  result.RewardName,
		"points_spent": result.PointsSpent,
		"new_balance":  result.NewBalance,
		"new_stock":    result.NewStock,
	})
	return result, nil
}

// Register creates an account for an unrecognized card. The account starts
// with zero balance and expires after the configured validity window.
func (e *Engine) Register(ctx context.Context, cardUID, studentID, email string) (*models.Account, error) {
	account := &models.Account{
		CardUID:   cardUID,
		StudentID: studentID,
		Email:     email,
		Balance:   0,
		Active:    true,
		ExpiresAt: e.now().Add(e.validity),
	}

	err := e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateAccount(ctx, account)
	})
	if err != nil {
		return nil, classify(err)
	}

	e.emit("user_register", map[string]any{
		"account_id": account.ID,
		"card_uid":   account.CardUID,
	})
	return account, nil
}

func (e *Engine) checkAccount(account *models.Account) error {
	if !account.Active {
		return ErrAccountInactive
	}
	if !e.now().Before(account.ExpiresAt) {
		return ErrAccountExpired
	}
	return nil
}

func (e *Engine) emit(eventType string, payload map[string]any) {
	if e.events == nil {
		return
	}
	e.events.Emit(eventType, payload)
}

func (e *Engine) emitRejected(eventType string, accountID int64, payload map[string]any, err error) {
	if !IsDomain(err) {
		slog.Error("Transaction failed on storage",
			slog.String("type", "db"),
			slog.Int64("account_id", accountID),
			slog.Any("error", err))
		return
	}
	payload["account_id"] = accountID
	payload["code"] = CodeOf(err)
	e.emit(eventType, payload)
}
