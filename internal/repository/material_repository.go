package repository

import (
	"errors"
	"fmt"

	"bomflow/internal/apperrors"
	"bomflow/internal/dbctx"
	"bomflow/internal/models"

	"gorm.io/gorm"
)

// MaterialRepository 任务物料（BOM 行）存取
type MaterialRepository interface {
	Create(dbc dbctx.Context, material *models.TaskMaterial) error
	GetByID(dbc dbctx.Context, id uint) (*models.TaskMaterial, error)
	FindByTaskAndName(dbc dbctx.Context, taskID uint, name string) (*models.TaskMaterial, error)
	ListByTask(dbc dbctx.Context, taskID uint) ([]models.TaskMaterial, error)
	// UpdatePlannedQuantity writes the quantity only when the row still has
	// expectedVersion, and bumps the version.
	UpdatePlannedQuantity(dbc dbctx.Context, id uint, expectedVersion int, quantity float64) error
}

type materialRepo struct {
	db *gorm.DB
}

func NewMaterialRepository(db *gorm.DB) MaterialRepository {
	return &materialRepo{db: db}
}

func (r *materialRepo) Create(dbc dbctx.Context, material *models.TaskMaterial) error {
	if material.Version == 0 {
		material.Version = 1
	}
	if err := dbc.DB(r.db).Create(material).Error; err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

func (r *materialRepo) GetByID(dbc dbctx.Context, id uint) (*models.TaskMaterial, error) {
	var m models.TaskMaterial
	if err := dbc.DB(r.db).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", apperrors.ErrMaterialNotFound, id)
		}
		return nil, fmt.Errorf("load material %d: %w", id, err)
	}
	return &m, nil
}

func (r *materialRepo) FindByTaskAndName(dbc dbctx.Context, taskID uint, name string) (*models.TaskMaterial, error) {
	var m models.TaskMaterial
	err := dbc.DB(r.db).Where("task_id = ? AND material_name = ?", taskID, name).
		Order("id ASC").First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %q on task %d", apperrors.ErrMaterialNotFound, name, taskID)
		}
		return nil, fmt.Errorf("load material %q: %w", name, err)
	}
	return &m, nil
}

func (r *materialRepo) ListByTask(dbc dbctx.Context, taskID uint) ([]models.TaskMaterial, error) {
	var materials []models.TaskMaterial
	if err := dbc.DB(r.db).Preload("BomTemplate").
		Where("task_id = ?", taskID).Order("id ASC").
		Find(&materials).Error; err != nil {
		return nil, fmt.Errorf("list materials for task %d: %w", taskID, err)
	}
	return materials, nil
}

func (r *materialRepo) UpdatePlannedQuantity(dbc dbctx.Context, id uint, expectedVersion int, quantity float64) error {
	res := dbc.DB(r.db).Model(&models.TaskMaterial{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"planned_quantity": quantity,
			"version":          gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return fmt.Errorf("update material %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d version %d", apperrors.ErrConcurrentUpdate, id, expectedVersion)
	}
	return nil
}

// BomTemplateRepository BOM 模板与单价查询
type BomTemplateRepository interface {
	ListActiveByTaskType(dbc dbctx.Context, taskTypeID uint) ([]models.BomTemplate, error)
	Create(dbc dbctx.Context, template *models.BomTemplate) error
}

type bomTemplateRepo struct {
	db *gorm.DB
}

func NewBomTemplateRepository(db *gorm.DB) BomTemplateRepository {
	return &bomTemplateRepo{db: db}
}

func (r *bomTemplateRepo) ListActiveByTaskType(dbc dbctx.Context, taskTypeID uint) ([]models.BomTemplate, error) {
	var templates []models.BomTemplate
	if err := dbc.DB(r.db).
		Where("task_type_id = ? AND is_active = ?", taskTypeID, true).
		Order("sort_order ASC").Order("id ASC").
		Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("list bom templates for task type %d: %w", taskTypeID, err)
	}
	return templates, nil
}

func (r *bomTemplateRepo) Create(dbc dbctx.Context, template *models.BomTemplate) error {
	return dbc.DB(r.db).Create(template).Error
}
