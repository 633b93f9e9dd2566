package repositories

import (
	"context"

	"github.com/smartvendoplus/smartvendo/kiosk/database/models"
	"github.com/uptrace/bun"
)

// SystemLogRepository persists kiosk events for the admin panel.
type SystemLogRepository interface {
	Insert(ctx context.Context, entry *models.SystemLog) error
	ListRecent(ctx context.Context, limit int) ([]*models.SystemLog, error)
	ListByType(ctx context.Context, eventType string, limit int) ([]*models.SystemLog, error)
}

type systemLogRepository struct {
	*BaseRepository
}

func NewSystemLogRepository(db *bun.DB) SystemLogRepository {
	return &systemLogRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *systemLogRepository) Insert(ctx context.Context, entry *models.SystemLog) error {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	_, err := r.db.NewInsert().Model(entry).Exec(ctx)
	return r.HandleError("insert", "system_log", err)
}

func (r *systemLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.SystemLog, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var entries []*models.SystemLog
	err := r.db.NewSelect().
		Model(&entries).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_recent", "system_log", err)
	}
	return entries, nil
}

func (r *systemLogRepository) ListByType(ctx context.Context, eventType string, limit int) ([]*models.SystemLog, error) {
	ctx, cancel := r.WithTimeout(ctx)
	defer cancel()

	var entries []*models.SystemLog
	err := r.db.NewSelect().
		Model(&entries).
		Where("event_type = ?", eventType).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, r.HandleError("list_by_type", "system_log", err)
	}
	return entries, nil
}
