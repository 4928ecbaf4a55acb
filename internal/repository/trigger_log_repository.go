package repository

import (
	"fmt"
	"time"

	"bomflow/internal/dbctx"
	"bomflow/internal/models"

	"gorm.io/gorm"
)

// TriggerLogFilter 执行记录查询条件
type TriggerLogFilter struct {
	TriggerID uint
	TaskID    uint
	Success   *bool
	Page      int
	PageSize  int
}

// TriggerLogRepository is the append-only execution audit store.
type TriggerLogRepository interface {
	Create(dbc dbctx.Context, entry *models.BomTriggerLog) error
	List(dbc dbctx.Context, filter TriggerLogFilter) ([]models.BomTriggerLog, int64, error)
	CountByTrigger(dbc dbctx.Context, triggerID uint) (int64, error)
}

type triggerLogRepo struct {
	db *gorm.DB
}

func NewTriggerLogRepository(db *gorm.DB) TriggerLogRepository {
	return &triggerLogRepo{db: db}
}

func (r *triggerLogRepo) Create(dbc dbctx.Context, entry *models.BomTriggerLog) error {
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now()
	}
	if err := dbc.DB(r.db).Create(entry).Error; err != nil {
		return fmt.Errorf("create trigger log: %w", err)
	}
	return nil
}

func (r *triggerLogRepo) List(dbc dbctx.Context, filter TriggerLogFilter) ([]models.BomTriggerLog, int64, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.TriggerID != 0 {
			q = q.Where("trigger_id = ?", filter.TriggerID)
		}
		if filter.TaskID != 0 {
			q = q.Where("task_id = ?", filter.TaskID)
		}
		if filter.Success != nil {
			q = q.Where("success = ?", *filter.Success)
		}
		return q
	}

	var total int64
	if err := dbc.DB(r.db).Model(&models.BomTriggerLog{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count trigger logs: %w", err)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	var logs []models.BomTriggerLog
	if err := dbc.DB(r.db).Scopes(scope).
		Order("executed_at DESC").Order("id DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("list trigger logs: %w", err)
	}
	return logs, total, nil
}

func (r *triggerLogRepo) CountByTrigger(dbc dbctx.Context, triggerID uint) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&models.BomTriggerLog{}).Where("trigger_id = ?", triggerID).Count(&n).Error
	return n, err
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	return page, size
}
