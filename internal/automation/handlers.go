package automation

import (
	"fmt"
	"math"
	"time"

	"bomflow/internal/dbctx"
	"bomflow/internal/models"
	"bomflow/internal/repository"

	"github.com/sirupsen/logrus"
)

// HandlerDeps are the collaborators the built-in handlers need.
type HandlerDeps struct {
	Materials repository.MaterialRepository
	Templates repository.BomTemplateRepository
	Notifier  Notifier
	Logger    *logrus.Logger
}

// DefaultHandlers returns one handler per built-in action type.
func DefaultHandlers(deps HandlerDeps) []ActionHandler {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return []ActionHandler{
		&AddMaterialHandler{materials: deps.Materials},
		&UpdateQuantityHandler{materials: deps.Materials},
		&CopyBomHandler{materials: deps.Materials, templates: deps.Templates},
		&NotifyHandler{notifier: deps.Notifier, logger: deps.Logger},
		&CalculateCostHandler{materials: deps.Materials},
	}
}

// NewDefaultDispatcher wires the built-in handlers.
func NewDefaultDispatcher(deps HandlerDeps) *Dispatcher {
	return NewDispatcher(DefaultHandlers(deps)...)
}

func configAs[T ActionConfig](cfg ActionConfig) (T, error) {
	c, ok := cfg.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: expected %T, got %T", ErrInvalidActionConfig, zero, cfg)
	}
	return c, nil
}

// AddMaterialHandler attaches one new material to the task.
type AddMaterialHandler struct {
	materials repository.MaterialRepository
}

func (h *AddMaterialHandler) Type() ActionType        { return ActionAddMaterial }
func (h *AddMaterialHandler) NewConfig() ActionConfig { return newAddMaterialConfig() }

func (h *AddMaterialHandler) Handle(dbc dbctx.Context, _ *models.BomTrigger, c ActionConfig, input EventData) (ActionResult, error) {
	cfg, err := configAs[*AddMaterialConfig](c)
	if err != nil {
		return nil, err
	}
	taskID, err := requireID(input, KeyTaskID)
	if err != nil {
		return nil, err
	}
	material := &models.TaskMaterial{
		TaskID:          taskID,
		MaterialName:    cfg.MaterialName,
		PlannedQuantity: cfg.DefaultQuantity,
		UsedQuantity:    0,
		Unit:            cfg.Unit,
		Category:        cfg.Category,
	}
	if err := h.materials.Create(dbc, material); err != nil {
		return nil, err
	}
	return ActionResult{
		"materialId":      material.ID,
		"materialName":    material.MaterialName,
		"plannedQuantity": material.PlannedQuantity,
		"taskId":          taskID,
	}, nil
}

// UpdateQuantityHandler changes the planned quantity of exactly one material.
type UpdateQuantityHandler struct {
	materials repository.MaterialRepository
}

func (h *UpdateQuantityHandler) Type() ActionType        { return ActionUpdateQuantity }
func (h *UpdateQuantityHandler) NewConfig() ActionConfig { return &UpdateQuantityConfig{} }

func (h *UpdateQuantityHandler) Handle(dbc dbctx.Context, _ *models.BomTrigger, c ActionConfig, input EventData) (ActionResult, error) {
	cfg, err := configAs[*UpdateQuantityConfig](c)
	if err != nil {
		return nil, err
	}
	materialID, hasMaterial, err := idField(input, KeyMaterialID)
	if err != nil {
		return nil, err
	}
	taskID, hasTask, err := idField(input, KeyTaskID)
	if err != nil {
		return nil, err
	}
	if !hasMaterial && !hasTask {
		return nil, fmt.Errorf("%w: %s or %s", ErrMissingField, KeyMaterialID, KeyTaskID)
	}

	var material *models.TaskMaterial
	switch {
	case hasMaterial:
		material, err = h.materials.GetByID(dbc, materialID)
	case cfg.MaterialName != "":
		material, err = h.materials.FindByTaskAndName(dbc, taskID, cfg.MaterialName)
	default:
		err = fmt.Errorf("%w: no %s given for task %d", ErrMaterialNotFound, KeyMaterialID, taskID)
	}
	if err != nil {
		return nil, err
	}

	oldQuantity := material.PlannedQuantity
	newQuantity := cfg.Apply(oldQuantity)
	if err := h.materials.UpdatePlannedQuantity(dbc, material.ID, material.Version, newQuantity); err != nil {
		return nil, err
	}
	return ActionResult{
		"materialId":  material.ID,
		"oldQuantity": oldQuantity,
		"newQuantity": newQuantity,
	}, nil
}

// CopyBomHandler copies the active BOM templates of a task type onto a task.
type CopyBomHandler struct {
	materials repository.MaterialRepository
	templates repository.BomTemplateRepository
}

func (h *CopyBomHandler) Type() ActionType        { return ActionCopyBom }
func (h *CopyBomHandler) NewConfig() ActionConfig { return &CopyBomConfig{} }

func (h *CopyBomHandler) Handle(dbc dbctx.Context, trigger *models.BomTrigger, c ActionConfig, input EventData) (ActionResult, error) {
	cfg, err := configAs[*CopyBomConfig](c)
	if err != nil {
		return nil, err
	}
	taskID, err := requireID(input, KeyTaskID)
	if err != nil {
		return nil, err
	}
	sourceTypeID := cfg.SourceTaskTypeID
	if sourceTypeID == nil {
		sourceTypeID = trigger.SourceTaskTypeID
	}
	if sourceTypeID == nil {
		return nil, fmt.Errorf("%w: sourceTaskTypeId", ErrMissingField)
	}

	templates, err := h.templates.ListActiveByTaskType(dbc, *sourceTypeID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(templates))
	for i := range templates {
		tpl := templates[i]
		material := &models.TaskMaterial{
			TaskID:          taskID,
			BomTemplateID:   &tpl.ID,
			MaterialName:    tpl.MaterialName,
			PlannedQuantity: tpl.DefaultQuantity,
			UsedQuantity:    0,
			Unit:            tpl.Unit,
			Category:        tpl.Category,
		}
		if err := h.materials.Create(dbc, material); err != nil {
			return nil, fmt.Errorf("copy template %d: %w", tpl.ID, err)
		}
		ids = append(ids, material.ID)
	}
	return ActionResult{
		"copiedCount":      len(ids),
		"materialIds":      ids,
		"sourceTaskTypeId": *sourceTypeID,
	}, nil
}

// NotifyHandler hands a notification to the side channel. Delivery problems
// are logged and do not fail the trigger.
type NotifyHandler struct {
	notifier Notifier
	logger   *logrus.Logger
}

func (h *NotifyHandler) Type() ActionType        { return ActionNotify }
func (h *NotifyHandler) NewConfig() ActionConfig { return &NotifyConfig{} }

func (h *NotifyHandler) Handle(dbc dbctx.Context, trigger *models.BomTrigger, c ActionConfig, input EventData) (ActionResult, error) {
	cfg, err := configAs[*NotifyConfig](c)
	if err != nil {
		return nil, err
	}
	if h.notifier != nil {
		n := Notification{
			TriggerID:   trigger.ID,
			TriggerName: trigger.Name,
			Message:     cfg.Message,
			Recipients:  cfg.Recipients,
			TaskID:      taskIDOf(input),
			Data:        input,
			CreatedAt:   time.Now(),
		}
		// dropped if the attempt rolls back
		dbc.AfterCommit(func() {
			if err := h.notifier.Notify(dbc.Ctx, n); err != nil {
				h.logger.WithFields(logrus.Fields{
					"trigger_id": trigger.ID,
					"error":      err,
				}).Warn("automation: notification delivery failed")
			}
		})
	}
	return ActionResult{
		"notified": true,
		"message":  cfg.Message,
	}, nil
}

// CalculateCostHandler sums planned quantity × unit price over the task's
// materials whose template carries a price.
type CalculateCostHandler struct {
	materials repository.MaterialRepository
}

func (h *CalculateCostHandler) Type() ActionType        { return ActionCalculateCost }
func (h *CalculateCostHandler) NewConfig() ActionConfig { return &CalculateCostConfig{} }

func (h *CalculateCostHandler) Handle(dbc dbctx.Context, _ *models.BomTrigger, _ ActionConfig, input EventData) (ActionResult, error) {
	taskID, err := requireID(input, KeyTaskID)
	if err != nil {
		return nil, err
	}
	materials, err := h.materials.ListByTask(dbc, taskID)
	if err != nil {
		return nil, err
	}
	var total float64
	priced := 0
	for _, m := range materials {
		if m.BomTemplate == nil || m.BomTemplate.UnitPrice == nil {
			continue
		}
		total += m.PlannedQuantity * *m.BomTemplate.UnitPrice
		priced++
	}
	return ActionResult{
		"totalCost":   math.Round(total*100) / 100,
		"itemCount":   len(materials),
		"pricedCount": priced,
		"taskId":      taskID,
	}, nil
}
