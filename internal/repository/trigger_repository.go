package repository

import (
	"errors"
	"fmt"

	"bomflow/internal/apperrors"
	"bomflow/internal/dbctx"
	"bomflow/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TriggerFilter restricts List; nil fields are not applied.
type TriggerFilter struct {
	IsActive     *bool
	TriggerEvent *string
}

// TriggerRepository persists BOM trigger definitions.
type TriggerRepository interface {
	List(dbc dbctx.Context, filter TriggerFilter) ([]models.BomTrigger, error)
	GetByID(dbc dbctx.Context, id uint) (*models.BomTrigger, error)
	GetByUUID(dbc dbctx.Context, uuid string) (*models.BomTrigger, error)
	Create(dbc dbctx.Context, trigger *models.BomTrigger) error
	Update(dbc dbctx.Context, id uint, fields map[string]interface{}) (*models.BomTrigger, error)
	SetActive(dbc dbctx.Context, id uint, active bool) error
	Delete(dbc dbctx.Context, id uint) error
}

type triggerRepo struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewTriggerRepository(db *gorm.DB, logger *logrus.Logger) TriggerRepository {
	if logger == nil {
		logger = logrus.New()
	}
	return &triggerRepo{db: db, log: logger.WithField("repo", "TriggerRepository")}
}

// List orders by priority, then newest first; id breaks remaining ties.
func (r *triggerRepo) List(dbc dbctx.Context, filter TriggerFilter) ([]models.BomTrigger, error) {
	q := dbc.DB(r.db).Model(&models.BomTrigger{})
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	if filter.TriggerEvent != nil {
		q = q.Where("trigger_event = ?", *filter.TriggerEvent)
	}
	var triggers []models.BomTrigger
	if err := q.Order("priority DESC").Order("created_at DESC").Order("id DESC").Find(&triggers).Error; err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	return triggers, nil
}

func (r *triggerRepo) GetByID(dbc dbctx.Context, id uint) (*models.BomTrigger, error) {
	var trigger models.BomTrigger
	if err := dbc.DB(r.db).First(&trigger, id).Error; err != nil {
		return nil, notFound(err, id)
	}
	return &trigger, nil
}

func (r *triggerRepo) GetByUUID(dbc dbctx.Context, uuid string) (*models.BomTrigger, error) {
	var trigger models.BomTrigger
	if err := dbc.DB(r.db).Where("uuid = ?", uuid).First(&trigger).Error; err != nil {
		return nil, notFound(err, uuid)
	}
	return &trigger, nil
}

func (r *triggerRepo) Create(dbc dbctx.Context, trigger *models.BomTrigger) error {
	if err := dbc.DB(r.db).Create(trigger).Error; err != nil {
		return fmt.Errorf("create trigger: %w", err)
	}
	return nil
}

// Update merges fields into the row; keys are column names.
func (r *triggerRepo) Update(dbc dbctx.Context, id uint, fields map[string]interface{}) (*models.BomTrigger, error) {
	if len(fields) > 0 {
		res := dbc.DB(r.db).Model(&models.BomTrigger{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, fmt.Errorf("update trigger %d: %w", id, res.Error)
		}
	}
	// A missing row surfaces here as ErrTriggerNotFound.
	return r.GetByID(dbc, id)
}

func (r *triggerRepo) SetActive(dbc dbctx.Context, id uint, active bool) error {
	// Updates with a map so that false is written.
	res := dbc.DB(r.db).Model(&models.BomTrigger{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_active": active})
	if res.Error != nil {
		return fmt.Errorf("set trigger %d active: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// Same value rewritten still counts on postgres, not on every driver.
		if _, err := r.GetByID(dbc, id); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the trigger and its execution logs.
func (r *triggerRepo) Delete(dbc dbctx.Context, id uint) error {
	return dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trigger_id = ?", id).Delete(&models.BomTriggerLog{}).Error; err != nil {
			return fmt.Errorf("delete trigger logs: %w", err)
		}
		res := tx.Delete(&models.BomTrigger{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete trigger %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %d", apperrors.ErrTriggerNotFound, id)
		}
		r.log.WithField("trigger_id", id).Info("trigger hard-deleted")
		return nil
	})
}

func notFound(err error, key interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", apperrors.ErrTriggerNotFound, key)
	}
	return fmt.Errorf("load trigger %v: %w", key, err)
}
