package automation

import (
	"fmt"
	"sort"
	"sync"

	"bomflow/internal/dbctx"
	"bomflow/internal/models"

	"gorm.io/datatypes"
)

// ActionHandler implements one action type.
type ActionHandler interface {
	Type() ActionType
	// NewConfig returns an empty config carrying the handler's defaults.
	NewConfig() ActionConfig
	Handle(dbc dbctx.Context, trigger *models.BomTrigger, cfg ActionConfig, input EventData) (ActionResult, error)
}

// Dispatcher maps action types to handlers. It holds no business logic.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[ActionType]ActionHandler
}

func NewDispatcher(handlers ...ActionHandler) *Dispatcher {
	d := &Dispatcher{handlers: make(map[ActionType]ActionHandler)}
	for _, h := range handlers {
		d.Register(h)
	}
	return d
}

// Register adds or replaces the handler for h.Type().
func (d *Dispatcher) Register(h ActionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[h.Type()] = h
}

func (d *Dispatcher) handler(t ActionType) (ActionHandler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[t]
	return h, ok
}

// Supports reports whether t has a registered handler.
func (d *Dispatcher) Supports(t ActionType) bool {
	_, ok := d.handler(t)
	return ok
}

// ActionTypes returns the registered action types, sorted.
func (d *Dispatcher) ActionTypes() []ActionType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]ActionType, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// DecodeConfig turns a stored action_config into the handler's typed variant.
func (d *Dispatcher) DecodeConfig(actionType ActionType, raw datatypes.JSON) (ActionConfig, error) {
	h, ok := d.handler(actionType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActionType, actionType)
	}
	cfg := h.NewConfig()
	if err := decodeInto(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Execute decodes the trigger's config and runs its handler.
func (d *Dispatcher) Execute(dbc dbctx.Context, trigger *models.BomTrigger, input EventData) (ActionResult, error) {
	actionType := ActionType(trigger.ActionType)
	h, ok := d.handler(actionType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActionType, trigger.ActionType)
	}
	cfg := h.NewConfig()
	if err := decodeInto(trigger.ActionConfig, cfg); err != nil {
		return nil, err
	}
	if input == nil {
		input = EventData{}
	}
	return h.Handle(dbc, trigger, cfg, input)
}
