package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
	"github.com/smartvendoplus/smartvendo/kiosk/engine"
	"github.com/uptrace/bun"
)

const defaultTxTimeout = 10 * time.Second

// LedgerTxStore implements engine.Store on top of bun. Row locks
// (SELECT ... FOR UPDATE) serialize concurrent mutations per account and per
// reward; guarded conditional updates are the second line of defense against
// negative balances or stock.
type LedgerTxStore struct {
	db *bun.DB
}

func NewLedgerTxStore(db *bun.DB) *LedgerTxStore {
	return &LedgerTxStore{db: db}
}

func (s *LedgerTxStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx engine.Tx) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, defaultTxTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(timeoutCtx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(timeoutCtx, &ledgerTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type ledgerTx struct {
	tx bun.Tx
}

func (l *ledgerTx) AccountForUpdate(ctx context.Context, accountID int64) (*models.Account, error) {
	account := new(models.Account)
	err := l.tx.NewSelect().
		Model(account).
		Where("id = ?", accountID).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return account, nil
}

func (l *ledgerTx) AddBalance(ctx context.Context, accountID int64, delta int64) (int64, error) {
	var newBalance int64
	err := l.tx.NewUpdate().
		Model((*models.Account)(nil)).
		Set("balance = balance + ?", delta).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND balance + ? >= 0", accountID, delta).
		Returning("balance").
		Scan(ctx, &newBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Guard rejected the update: the debit would go negative.
			return 0, engine.ErrInsufficientPoints
		}
		return 0, fmt.Errorf("failed to update balance: %w", err)
	}
	return newBalance, nil
}

func (l *ledgerTx) RewardForUpdate(ctx context.Context, name string) (*models.Reward, error) {
	reward := new(models.Reward)
	err := l.tx.NewSelect().
		Model(reward).
		Where("name = ?", name).
		Where("active = true").
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrRewardNotFound
		}
		return nil, fmt.Errorf("failed to lock reward: %w", err)
	}
	return reward, nil
}

func (l *ledgerTx) DecrementStock(ctx context.Context, rewardID int64, by int64) (int64, error) {
	var newStock int64
	err := l.tx.NewUpdate().
		Model((*models.Reward)(nil)).
		Set("stock = stock - ?", by).
		Set("updated_at = ?", time.Now()).
		Where("id = ? AND stock >= ?", rewardID, by).
		Returning("stock").
		Scan(ctx, &newStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, engine.ErrInsufficientStock
		}
		return 0, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return newStock, nil
}

func (l *ledgerTx) AppendDeposit(ctx context.Context, record *models.DepositRecord) error {
	if _, err := l.tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("failed to append deposit record: %w", err)
	}
	return nil
}

func (l *ledgerTx) AppendRedemption(ctx context.Context, record *models.RedemptionRecord) error {
	if _, err := l.tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("failed to append redemption record: %w", err)
	}
	return nil
}

func (l *ledgerTx) CreateAccount(ctx context.Context, account *models.Account) error {
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()

	if _, err := l.tx.NewInsert().Model(account).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return engine.ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}
