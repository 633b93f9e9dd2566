package repositories

import (
	"context"
	"time"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
	"github.com/uptrace/bun"
)

// RewardRepository is the reward catalog. Stock decrements for redemptions
// do not live here; they go through the transaction engine.
type RewardRepository interface {
	Create(ctx context.Context, reward *models.Reward) error
	GetByID(ctx context.Context, id int64) (*models.Reward, error)
	GetByName(ctx context.Context, name string) (*models.Reward, error)
	ListActive(ctx context.Context) ([]*models.Reward, error)
	ListAll(ctx context.Context) ([]*models.Reward, error)
	UpdatePartial(ctx context.Context, id int64, update models.RewardUpdate) (*models.Reward, error)
	SoftDelete(ctx context.Context, id int64) error
	GetRewardCount(ctx context.Context) (int64, error)
}

type rewardRepository struct {
	*BaseRepository
}

func NewRewardRepository(db *bun.DB) RewardRepository {
	return &rewardRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *rewardRepository) Create(ctx context.Context, reward *models.Reward) error {
	reward.CreatedAt = time.Now()
	reward.UpdatedAt = time.Now()

	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(reward).Exec(ctx)
	if err != nil {
		// Name uniqueness is permanent; the constraint covers soft-deleted
		// rows too.
		if isUniqueViolation(err) {
			return &ConflictError{Entity: "reward", Field: "name", Value: reward.Name}
		}
		return r.HandleError("create", "reward", err)
	}
	return nil
}

func (r *rewardRepository) GetByID(ctx context.Context, id int64) (*models.Reward, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	reward := new(models.Reward)
	err := r.db.NewSelect().
		Model(reward).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "reward", id, err)
	}
	return reward, nil
}

// GetByName looks up an active reward by its unique name.
func (r *rewardRepository) GetByName(ctx context.Context, name string) (*models.Reward, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	reward := new(models.Reward)
	err := r.db.NewSelect().
		Model(reward).
		Where("name = ?", name).
		Where("active = true").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("get", "reward", name, err)
	}
	return reward, nil
}

func (r *rewardRepository) ListActive(ctx context.Context) ([]*models.Reward, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var rewards []*models.Reward
	err := r.db.NewSelect().
		Model(&rewards).
		Where("active = true").
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_active", "reward", err)
	}
	return rewards, nil
}

func (r *rewardRepository) ListAll(ctx context.Context) ([]*models.Reward, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var rewards []*models.Reward
	err := r.db.NewSelect().
		Model(&rewards).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list", "reward", err)
	}
	return rewards, nil
}

// UpdatePartial applies only the fields present in update and returns the
// fresh row.
func (r *rewardRepository) UpdatePartial(ctx context.Context, id int64, update models.RewardUpdate) (*models.Reward, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	q := r.db.NewUpdate().
		Model((*models.Reward)(nil)).
		Where("id = ?", id).
		Set("updated_at = ?", time.Now())

	if update.DisplayName != nil {
		q = q.Set("display_name = ?", *update.DisplayName)
	}
	if update.ImageRef != nil {
		q = q.Set("image_ref = ?", *update.ImageRef)
	}
	if update.Cost != nil {
		q = q.Set("cost = ?", *update.Cost)
	}
	if update.Stock != nil {
		q = q.Set("stock = ?", *update.Stock)
	}
	if update.Active != nil {
		q = q.Set("active = ?", *update.Active)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, r.HandleErrorWithID("update", "reward", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, &NotFoundError{Entity: "reward", ID: id}
	}

	return r.GetByID(ctx, id)
}

// SoftDelete marks the reward inactive. Idempotent; history is preserved.
func (r *rewardRepository) SoftDelete(ctx context.Context, id int64) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	res, err := r.db.NewUpdate().
		Model((*models.Reward)(nil)).
		Set("active = false").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return r.HandleErrorWithID("soft_delete", "reward", id, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "reward", ID: id}
	}
	return nil
}

func (r *rewardRepository) GetRewardCount(ctx context.Context) (int64, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	count, err := r.db.NewSelect().
		Model((*models.Reward)(nil)).
		Count(ctx)
	if err != nil {
		return 0, r.HandleError("count", "reward", err)
	}
	return int64(count), nil
}
