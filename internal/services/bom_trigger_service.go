package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"bomflow/internal/apperrors"
	"bomflow/internal/automation"
	"bomflow/internal/dbctx"
	"bomflow/internal/models"
	"bomflow/internal/repository"
	"bomflow/pkg/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// BomTriggerService 触发器定义的管理接口
type BomTriggerService struct {
	triggers repository.TriggerRepository
	logs     repository.TriggerLogRepository
	engine   *automation.Engine
	logger   *logrus.Logger
}

func NewBomTriggerService(triggers repository.TriggerRepository, logs repository.TriggerLogRepository, engine *automation.Engine, logger *logrus.Logger) *BomTriggerService {
	if logger == nil {
		logger = logrus.New()
	}
	return &BomTriggerService{triggers: triggers, logs: logs, engine: engine, logger: logger}
}

// BomTriggerRequest 创建触发器的请求
type BomTriggerRequest struct {
	Name             string          `json:"name" binding:"required"`
	Description      string          `json:"description"`
	TriggerEvent     string          `json:"trigger_event" binding:"required"`
	TriggerCondition json.RawMessage `json:"trigger_condition"`
	ActionType       string          `json:"action_type" binding:"required"`
	ActionConfig     json.RawMessage `json:"action_config"`
	SourceTaskTypeID *uint           `json:"source_task_type_id"`
	TargetTaskTypeID *uint           `json:"target_task_type_id"`
	Priority         *int            `json:"priority"`
	IsActive         *bool           `json:"is_active"`
	CreatedByID      *uint           `json:"created_by"`
}

// BomTriggerUpdateRequest 部分更新，nil 字段保持不变
type BomTriggerUpdateRequest struct {
	Name             *string         `json:"name"`
	Description      *string         `json:"description"`
	TriggerEvent     *string         `json:"trigger_event"`
	TriggerCondition json.RawMessage `json:"trigger_condition"`
	ActionType       *string         `json:"action_type"`
	ActionConfig     json.RawMessage `json:"action_config"`
	SourceTaskTypeID *uint           `json:"source_task_type_id"`
	TargetTaskTypeID *uint           `json:"target_task_type_id"`
	Priority         *int            `json:"priority"`
	IsActive         *bool           `json:"is_active"`
}

// TriggerListQuery 列表过滤条件
type TriggerListQuery struct {
	IsActive     *bool
	TriggerEvent string
}

// TriggerMetadata 管理界面需要的枚举与默认值
type TriggerMetadata struct {
	Events          []automation.TriggerEvent `json:"events"`
	ActionTypes     []automation.ActionType   `json:"action_types"`
	DefaultPriority int                       `json:"default_priority"`
	ActionDefaults  map[string]interface{}    `json:"action_defaults"`
}

func (s *BomTriggerService) ListTriggers(ctx context.Context, q TriggerListQuery) ([]models.BomTrigger, error) {
	filter := repository.TriggerFilter{IsActive: q.IsActive}
	if q.TriggerEvent != "" {
		event := q.TriggerEvent
		filter.TriggerEvent = &event
	}
	return s.triggers.List(dbctx.New(ctx), filter)
}

// GetTrigger 按数字 ID 或 UUID 查询
func (s *BomTriggerService) GetTrigger(ctx context.Context, ref string) (*models.BomTrigger, error) {
	if id, ok := utils.ParseID(ref); ok {
		return s.triggers.GetByID(dbctx.New(ctx), id)
	}
	return s.triggers.GetByUUID(dbctx.New(ctx), strings.TrimSpace(ref))
}

func (s *BomTriggerService) CreateTrigger(ctx context.Context, req *BomTriggerRequest) (*models.BomTrigger, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name", apperrors.ErrMissingField)
	}
	if err := validateEvent(req.TriggerEvent); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ActionType) == "" {
		return nil, fmt.Errorf("%w: action_type", apperrors.ErrMissingField)
	}
	cond, err := normalizeCondition(req.TriggerCondition)
	if err != nil {
		return nil, err
	}
	cfg, err := s.normalizeActionConfig(req.ActionType, req.ActionConfig)
	if err != nil {
		return nil, err
	}

	trigger := &models.BomTrigger{
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		TriggerEvent:     req.TriggerEvent,
		TriggerCondition: cond,
		ActionType:       req.ActionType,
		ActionConfig:     cfg,
		SourceTaskTypeID: req.SourceTaskTypeID,
		TargetTaskTypeID: req.TargetTaskTypeID,
		Priority:         models.DefaultTriggerPriority,
		IsActive:         true,
		CreatedByID:      req.CreatedByID,
	}
	if req.Priority != nil {
		trigger.Priority = *req.Priority
	}
	if req.IsActive != nil {
		trigger.IsActive = *req.IsActive
	}
	if err := s.triggers.Create(dbctx.New(ctx), trigger); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"trigger_id":  trigger.ID,
		"event":       trigger.TriggerEvent,
		"action_type": trigger.ActionType,
	}).Info("bom trigger created")
	return trigger, nil
}

func (s *BomTriggerService) UpdateTrigger(ctx context.Context, id uint, req *BomTriggerUpdateRequest) (*models.BomTrigger, error) {
	dbc := dbctx.New(ctx)
	existing, err := s.triggers.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fmt.Errorf("%w: name", apperrors.ErrMissingField)
		}
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.TriggerEvent != nil {
		if err := validateEvent(*req.TriggerEvent); err != nil {
			return nil, err
		}
		updates["trigger_event"] = *req.TriggerEvent
	}
	if req.TriggerCondition != nil {
		cond, err := normalizeCondition(req.TriggerCondition)
		if err != nil {
			return nil, err
		}
		updates["trigger_condition"] = cond
	}

	// 动作类型或配置任一变化时，按最终组合校验
	actionType, rawConfig := existing.ActionType, json.RawMessage(existing.ActionConfig)
	if req.ActionType != nil {
		if strings.TrimSpace(*req.ActionType) == "" {
			return nil, fmt.Errorf("%w: action_type", apperrors.ErrMissingField)
		}
		actionType = *req.ActionType
		updates["action_type"] = actionType
	}
	if req.ActionConfig != nil {
		rawConfig = req.ActionConfig
	}
	if req.ActionType != nil || req.ActionConfig != nil {
		cfg, err := s.normalizeActionConfig(actionType, rawConfig)
		if err != nil {
			return nil, err
		}
		updates["action_config"] = cfg
	}

	if req.SourceTaskTypeID != nil {
		updates["source_task_type_id"] = *req.SourceTaskTypeID
	}
	if req.TargetTaskTypeID != nil {
		updates["target_task_type_id"] = *req.TargetTaskTypeID
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	updated, err := s.triggers.Update(dbc, id, updates)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("trigger_id", id).Info("bom trigger updated")
	return updated, nil
}

// ToggleTrigger 翻转启用状态
func (s *BomTriggerService) ToggleTrigger(ctx context.Context, id uint) (*models.BomTrigger, error) {
	trigger, err := s.triggers.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, err
	}
	return s.SetTriggerActive(ctx, id, !trigger.IsActive)
}

func (s *BomTriggerService) SetTriggerActive(ctx context.Context, id uint, active bool) (*models.BomTrigger, error) {
	dbc := dbctx.New(ctx)
	if err := s.triggers.SetActive(dbc, id, active); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"trigger_id": id, "is_active": active}).Info("bom trigger active flag changed")
	return s.triggers.GetByID(dbc, id)
}

// DeleteTrigger 默认逻辑删除（停用）；hard 为 true 时连同执行记录物理删除
func (s *BomTriggerService) DeleteTrigger(ctx context.Context, id uint, hard bool) error {
	if hard {
		return s.triggers.Delete(dbctx.New(ctx), id)
	}
	_, err := s.SetTriggerActive(ctx, id, false)
	return err
}

// TestTrigger 手动执行一次触发器，忽略启用状态与条件；执行同样记录日志
func (s *BomTriggerService) TestTrigger(ctx context.Context, id uint, data automation.EventData) (automation.ActionResult, error) {
	return s.engine.ExecuteTriggerByID(ctx, id, data)
}

func (s *BomTriggerService) ListLogs(ctx context.Context, filter repository.TriggerLogFilter) ([]models.BomTriggerLog, int64, error) {
	return s.logs.List(dbctx.New(ctx), filter)
}

// FireEvent 供业务操作调用；从不返回错误，报告可忽略
func (s *BomTriggerService) FireEvent(ctx context.Context, event string, data automation.EventData) *automation.FiringReport {
	return s.engine.FireEvent(ctx, automation.TriggerEvent(event), data)
}

// Metadata 动作类型与默认配置来自引擎当前注册的处理器
func (s *BomTriggerService) Metadata() TriggerMetadata {
	dispatcher := s.engine.Dispatcher()
	types := dispatcher.ActionTypes()
	defaults := make(map[string]interface{}, len(types))
	for _, t := range types {
		if cfg, err := dispatcher.DecodeConfig(t, nil); err == nil {
			defaults[string(t)] = cfg
		}
	}
	return TriggerMetadata{
		Events:          automation.Events(),
		ActionTypes:     types,
		DefaultPriority: models.DefaultTriggerPriority,
		ActionDefaults:  defaults,
	}
}

// LogCount 触发器的执行记录条数
func (s *BomTriggerService) LogCount(ctx context.Context, triggerID uint) (int64, error) {
	return s.logs.CountByTrigger(dbctx.New(ctx), triggerID)
}

func validateEvent(event string) error {
	if event == "" {
		return fmt.Errorf("%w: trigger_event", apperrors.ErrMissingField)
	}
	if !automation.TriggerEvent(event).Valid() {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownEvent, event)
	}
	return nil
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// normalizeCondition 条件必须是对象；缺省存为 {}
func normalizeCondition(raw json.RawMessage) (datatypes.JSON, error) {
	if isNullJSON(raw) {
		return datatypes.JSON("{}"), nil
	}
	if _, err := automation.ParseCondition(datatypes.JSON(raw)); err != nil {
		return nil, err
	}
	return datatypes.JSON(bytes.TrimSpace(raw)), nil
}

// normalizeActionConfig 已注册的动作类型按其处理器校验配置；未知类型原样保存，执行时才失败
func (s *BomTriggerService) normalizeActionConfig(actionType string, raw json.RawMessage) (datatypes.JSON, error) {
	if isNullJSON(raw) {
		raw = json.RawMessage("{}")
	}
	dispatcher := s.engine.Dispatcher()
	if dispatcher.Supports(automation.ActionType(actionType)) {
		if _, err := dispatcher.DecodeConfig(automation.ActionType(actionType), datatypes.JSON(raw)); err != nil {
			return nil, err
		}
	} else if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: action_config is not valid JSON", apperrors.ErrInvalidActionConfig)
	}
	return datatypes.JSON(bytes.TrimSpace(raw)), nil
}
