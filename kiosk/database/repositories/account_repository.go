package repositories

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
	"github.com/uptrace/bun"
)

// AccountRepository is the ledger store's account surface. Balance mutations
// do not live here; they go through the transaction engine.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByCardUID(ctx context.Context, cardUID string) (*models.Account, error)
	TouchLastSeen(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetExpiry(ctx context.Context, id int64, expiresAt time.Time) error
	GetAccounts(ctx context.Context) ([]*models.Account, error)
	GetAccountCount(ctx context.Context) (int64, error)
}

type accountRepository struct {
	*BaseRepository
}

func NewAccountRepository(db *bun.DB) AccountRepository {
	return &accountRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()

	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(account).Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Entity: "account", Field: "card_uid", Value: account.CardUID}
		}
		return r.HandleError("create", "account", err)
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	account := new(models.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "account", id, err)
	}
	return account, nil
}

func (r *accountRepository) GetByCardUID(ctx context.Context, cardUID string) (*models.Account, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	account := new(models.Account)
	err := r.db.NewSelect().
		Model(account).
		Where("card_uid = ?", cardUID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Debug("Card UID not registered",
				slog.String("type", "db"),
				slog.String("operation", "GetByCardUID"),
				slog.String("card_uid", cardUID))
		}
		return nil, r.HandleErrorWithID("get", "account", cardUID, err)
	}
	return account, nil
}

func (r *accountRepository) TouchLastSeen(ctx context.Context, id int64) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set("last_seen_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return r.HandleErrorWithID("touch_last_seen", "account", id, err)
}

func (r *accountRepository) SetActive(ctx context.Context, id int64, active bool) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("set_active", "account", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "account", ID: id}
	}
	return nil
}

func (r *accountRepository) SetExpiry(ctx context.Context, id int64, expiresAt time.Time) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.NewUpdate().
		Model((*models.Account)(nil)).
		Set("expires_at = ?", expiresAt).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("set_expiry", "account", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "account", ID: id}
	}
	return nil
}

func (r *accountRepository) GetAccounts(ctx context.Context) ([]*models.Account, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var accounts []*models.Account
	err := r.db.NewSelect().
		Model(&accounts).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list", "account", err)
	}
	return accounts, nil
}

func (r *accountRepository) GetAccountCount(ctx context.Context) (int64, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	count, err := r.db.NewSelect().
		Model((*models.Account)(nil)).
		Count(ctx)
	if err != nil {
		return 0, r.HandleError("count", "account", err)
	}
	return int64(count), nil
}
