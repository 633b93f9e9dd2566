package repositories

import (
	"context"
	"time"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
	"github.com/uptrace/bun"
)

// DailyDepositStat is one day of deposit activity.
type DailyDepositStat struct {
	Date        time.Time `bun:"date" json:"date"`
	Count       int64     `bun:"count" json:"count"`
	TotalPoints int64     `bun:"total_points" json:"total_points"`
}

// KindDepositStat aggregates deposits per item kind.
type KindDepositStat struct {
	ItemKind    string `bun:"item_kind" json:"item_kind"`
	Count       int64  `bun:"count" json:"count"`
	TotalPoints int64  `bun:"total_points" json:"total_points"`
}

// RewardRedemptionStat aggregates redemptions per reward.
type RewardRedemptionStat struct {
	Name        string `bun:"name" json:"name"`
	DisplayName string `bun:"display_name" json:"display_name"`
	Count       int64  `bun:"count" json:"count"`
	TotalPoints int64  `bun:"total_points" json:"total_points"`
}

// RecordRepository reads the append-only transaction history. Appends happen
// inside engine transactions, never here.
type RecordRepository interface {
	ListDepositsByAccount(ctx context.Context, accountID int64, limit int) ([]*models.DepositRecord, error)
	ListRedemptionsByAccount(ctx context.Context, accountID int64, limit int) ([]*models.RedemptionRecord, error)
	RecentDeposits(ctx context.Context, limit int) ([]*models.DepositRecord, error)
	RecentRedemptions(ctx context.Context, limit int) ([]*models.RedemptionRecord, error)
	DailyDepositStats(ctx context.Context, days int) ([]DailyDepositStat, error)
	DepositsByKind(ctx context.Context) ([]KindDepositStat, error)
	RedemptionsByReward(ctx context.Context) ([]RewardRedemptionStat, error)
	ReconcileBalance(ctx context.Context, accountID int64) (int64, error)
}

type recordRepository struct {
	*BaseRepository
}

func NewRecordRepository(db *bun.DB) RecordRepository {
	return &recordRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *recordRepository) ListDepositsByAccount(ctx context.Context, accountID int64, limit int) ([]*models.DepositRecord, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var records []*models.DepositRecord
	err := r.db.NewSelect().
		Model(&records).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_deposits", "deposit", err)
	}
	return records, nil
}

func (r *recordRepository) ListRedemptionsByAccount(ctx context.Context, accountID int64, limit int) ([]*models.RedemptionRecord, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var records []*models.RedemptionRecord
	err := r.db.NewSelect().
		Model(&records).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_redemptions", "redemption", err)
	}
	return records, nil
}

func (r *recordRepository) RecentDeposits(ctx context.Context, limit int) ([]*models.DepositRecord, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var records []*models.DepositRecord
	err := r.db.NewSelect().
		Model(&records).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("recent_deposits", "deposit", err)
	}
	return records, nil
}

func (r *recordRepository) RecentRedemptions(ctx context.Context, limit int) ([]*models.RedemptionRecord, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var records []*models.RedemptionRecord
	err := r.db.NewSelect().
		Model(&records).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("recent_redemptions", "redemption", err)
	}
	return records, nil
}

func (r *recordRepository) DailyDepositStats(ctx context.Context, days int) ([]DailyDepositStat, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var stats []DailyDepositStat
	err := r.db.NewRaw(`
		SELECT DATE(created_at) AS date,
		       COUNT(*) AS count,
		       COALESCE(SUM(points_awarded), 0) AS total_points
		FROM deposits
		WHERE created_at >= CURRENT_DATE - ? * INTERVAL '1 day'
		  AND status = 'completed'
		GROUP BY DATE(created_at)
		ORDER BY date
	`, days).Scan(ctx, &stats)
	if err != nil {
		return nil, r.HandleError("daily_stats", "deposit", err)
	}
	return stats, nil
}

func (r *recordRepository) DepositsByKind(ctx context.Context) ([]KindDepositStat, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var stats []KindDepositStat
	err := r.db.NewRaw(`
		SELECT item_kind,
		       COUNT(*) AS count,
		       COALESCE(SUM(points_awarded), 0) AS total_points
		FROM deposits
		WHERE status = 'completed'
		GROUP BY item_kind
		ORDER BY item_kind
	`).Scan(ctx, &stats)
	if err != nil {
		return nil, r.HandleError("kind_stats", "deposit", err)
	}
	return stats, nil
}

func (r *recordRepository) RedemptionsByReward(ctx context.Context) ([]RewardRedemptionStat, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var stats []RewardRedemptionStat
	err := r.db.NewRaw(`
		SELECT r.name,
		       r.display_name,
		       COUNT(*) AS count,
		       COALESCE(SUM(rd.points_spent), 0) AS total_points
		FROM redemptions rd
		JOIN rewards r ON r.id = rd.reward_id
		GROUP BY r.id, r.name, r.display_name
		ORDER BY count DESC
	`).Scan(ctx, &stats)
	if err != nil {
		return nil, r.HandleError("reward_stats", "redemption", err)
	}
	return stats, nil
}

// ReconcileBalance recomputes an account balance from its history. The result
// must always match accounts.balance; a mismatch means corruption.
func (r *recordRepository) ReconcileBalance(ctx context.Context, accountID int64) (int64, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var balance int64
	err := r.db.NewRaw(`
		SELECT COALESCE((
			SELECT SUM(points_awarded) FROM deposits
			WHERE account_id = ? AND status = 'completed'
		), 0) - COALESCE((
			SELECT SUM(points_spent) FROM redemptions
			WHERE account_id = ?
		), 0)
	`, accountID, accountID).Scan(ctx, &balance)
	if err != nil {
		return 0, r.HandleErrorWithID("reconcile", "account", accountID, err)
	}
	return balance, nil
}
