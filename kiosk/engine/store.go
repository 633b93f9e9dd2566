package engine

import (
	"context"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
)

// Store gives the engine transactional access to the ledger and the reward
// catalog. Everything inside one RunInTx call commits together or not at all.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the per-transaction surface. Implementations serialize concurrent
// mutations of the same account or reward (row locks or equivalent) and
// guard every decrement so balance and stock can never go negative.
//
// Error contract:
//   - AccountForUpdate returns ErrAccountNotFound when the row is absent.
//   - RewardForUpdate returns ErrRewardNotFound when the row is absent or
//     inactive.
//   - AddBalance returns ErrInsufficientPoints when the guarded update would
//     drive the balance negative.
//   - DecrementStock returns ErrInsufficientStock when stock < by.
//   - CreateAccount returns ErrAccountAlreadyExists on a duplicate card UID.
//
// Any other failure is infrastructure and surfaces as-is; the engine wraps
// it as ErrStoreUnavailable.
type Tx interface {
	AccountForUpdate(ctx context.Context, accountID int64) (*models.Account, error)
	AddBalance(ctx context.Context, accountID int64, delta int64) (int64, error)

	RewardForUpdate(ctx context.Context, name string) (*models.Reward, error)
	DecrementStock(ctx context.Context, rewardID int64, by int64) (int64, error)

	AppendDeposit(ctx context.Context, record *models.DepositRecord) error
	AppendRedemption(ctx context.Context, record *models.RedemptionRecord) error

	CreateAccount(ctx context.Context, account *models.Account) error
}
