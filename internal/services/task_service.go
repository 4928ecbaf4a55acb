package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bomflow/internal/apperrors"
	"bomflow/internal/automation"
	"bomflow/internal/dbctx"
	"bomflow/internal/models"
	"bomflow/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EventFirer 业务操作完成后触发自动化事件
type EventFirer interface {
	FireEvent(ctx context.Context, event automation.TriggerEvent, data automation.EventData) *automation.FiringReport
}

// TaskService 任务与任务物料的业务操作，变更提交后触发相应事件
type TaskService struct {
	db        *gorm.DB
	materials repository.MaterialRepository
	events    EventFirer
	logger    *logrus.Logger
}

func NewTaskService(db *gorm.DB, materials repository.MaterialRepository, events EventFirer, logger *logrus.Logger) *TaskService {
	if logger == nil {
		logger = logrus.New()
	}
	return &TaskService{db: db, materials: materials, events: events, logger: logger}
}

// TaskCreateRequest 创建任务请求
type TaskCreateRequest struct {
	TaskNumber string `json:"task_number" binding:"required"`
	Title      string `json:"title" binding:"required"`
	TaskTypeID *uint  `json:"task_type_id"`
	Status     string `json:"status"`
}

// MaterialCreateRequest 向任务添加物料
type MaterialCreateRequest struct {
	MaterialName    string  `json:"material_name" binding:"required"`
	PlannedQuantity float64 `json:"planned_quantity"`
	Unit            string  `json:"unit"`
	Category        string  `json:"category"`
}

// QuantityUpdateRequest Version 为空时使用当前版本
type QuantityUpdateRequest struct {
	PlannedQuantity float64 `json:"planned_quantity"`
	Version         *int    `json:"version"`
}

func (s *TaskService) CreateTask(ctx context.Context, req *TaskCreateRequest) (*models.Task, error) {
	if req.Status == "" {
		req.Status = "new"
	}
	task := &models.Task{
		TaskNumber: strings.TrimSpace(req.TaskNumber),
		Title:      strings.TrimSpace(req.Title),
		TaskTypeID: req.TaskTypeID,
		Status:     req.Status,
	}
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.logger.Infof("Created task %d (%s)", task.ID, task.TaskNumber)

	data := automation.EventData{automation.KeyTaskID: task.ID, "status": task.Status}
	if task.TaskTypeID != nil {
		data["taskTypeId"] = *task.TaskTypeID
	}
	s.fire(ctx, automation.EventTaskCreate, data)
	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Preload("TaskType").First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", apperrors.ErrTaskNotFound, id)
		}
		return nil, err
	}
	return &task, nil
}

// UpdateTaskStatus 状态未变化时不触发事件
func (s *TaskService) UpdateTaskStatus(ctx context.Context, id uint, status string) (*models.Task, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, fmt.Errorf("%w: status", apperrors.ErrMissingField)
	}
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := task.Status
	if previous == status {
		return task, nil
	}
	if err := s.db.WithContext(ctx).Model(task).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}
	task.Status = status

	s.fire(ctx, automation.EventStatusChange, automation.EventData{
		automation.KeyTaskID: task.ID,
		"status":             status,
		"previousStatus":     previous,
	})
	return task, nil
}

func (s *TaskService) ListMaterials(ctx context.Context, taskID uint) ([]models.TaskMaterial, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.materials.ListByTask(dbctx.New(ctx), taskID)
}

func (s *TaskService) AddMaterial(ctx context.Context, taskID uint, req *MaterialCreateRequest) (*models.TaskMaterial, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	if req.PlannedQuantity < 0 {
		return nil, fmt.Errorf("%w: planned_quantity must not be negative", apperrors.ErrInvalidArgument)
	}
	material := &models.TaskMaterial{
		TaskID:          taskID,
		MaterialName:    strings.TrimSpace(req.MaterialName),
		PlannedQuantity: req.PlannedQuantity,
		Unit:            req.Unit,
		Category:        req.Category,
	}
	if err := s.materials.Create(dbctx.New(ctx), material); err != nil {
		return nil, err
	}

	s.fire(ctx, automation.EventMaterialAdd, automation.EventData{
		automation.KeyTaskID:     taskID,
		automation.KeyMaterialID: material.ID,
		"materialName":           material.MaterialName,
		"category":               material.Category,
	})
	s.fire(ctx, automation.EventBomUpdate, automation.EventData{automation.KeyTaskID: taskID})
	return material, nil
}

// UpdateMaterialQuantity 带乐观锁更新计划数量
func (s *TaskService) UpdateMaterialQuantity(ctx context.Context, materialID uint, req *QuantityUpdateRequest) (*models.TaskMaterial, error) {
	if req.PlannedQuantity < 0 {
		return nil, fmt.Errorf("%w: planned_quantity must not be negative", apperrors.ErrInvalidArgument)
	}
	dbc := dbctx.New(ctx)
	material, err := s.materials.GetByID(dbc, materialID)
	if err != nil {
		return nil, err
	}
	version := material.Version
	if req.Version != nil {
		version = *req.Version
	}
	previous := material.PlannedQuantity
	if err := s.materials.UpdatePlannedQuantity(dbc, materialID, version, req.PlannedQuantity); err != nil {
		return nil, err
	}
	updated, err := s.materials.GetByID(dbc, materialID)
	if err != nil {
		return nil, err
	}

	s.fire(ctx, automation.EventQuantityChange, automation.EventData{
		automation.KeyTaskID:     updated.TaskID,
		automation.KeyMaterialID: updated.ID,
		"quantity":               updated.PlannedQuantity,
		"previousQuantity":       previous,
	})
	s.fire(ctx, automation.EventBomUpdate, automation.EventData{automation.KeyTaskID: updated.TaskID})
	return updated, nil
}

// fire 触发失败只记录日志，不影响业务操作结果
func (s *TaskService) fire(ctx context.Context, event automation.TriggerEvent, data automation.EventData) {
	if s.events == nil {
		return
	}
	report := s.events.FireEvent(ctx, event, data)
	if report != nil && report.Failed() > 0 {
		s.logger.WithFields(logrus.Fields{
			"event":  event,
			"failed": report.Failed(),
		}).Warn("some bom triggers failed")
	}
}
