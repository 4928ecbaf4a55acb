package automation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"gorm.io/datatypes"
)

// ActionConfig is the decoded, typed action_config of a trigger. There is one
// implementation per ActionType; handlers receive their own variant.
type ActionConfig interface {
	ActionType() ActionType
	Validate() error
}

// Defaults for ADD_MATERIAL.
const (
	DefaultMaterialName     = "Nowy materiał"
	DefaultMaterialQuantity = 1.0
	DefaultMaterialUnit     = "szt"
	DefaultMaterialCategory = "default"
)

type AddMaterialConfig struct {
	MaterialName    string  `json:"materialName"`
	DefaultQuantity float64 `json:"defaultQuantity"`
	Unit            string  `json:"unit"`
	Category        string  `json:"category"`
}

func newAddMaterialConfig() *AddMaterialConfig {
	return &AddMaterialConfig{
		MaterialName:    DefaultMaterialName,
		DefaultQuantity: DefaultMaterialQuantity,
		Unit:            DefaultMaterialUnit,
		Category:        DefaultMaterialCategory,
	}
}

func (c *AddMaterialConfig) ActionType() ActionType { return ActionAddMaterial }

func (c *AddMaterialConfig) Validate() error {
	// Blank strings fall back to defaults, like absent keys.
	if strings.TrimSpace(c.MaterialName) == "" {
		c.MaterialName = DefaultMaterialName
	}
	if strings.TrimSpace(c.Unit) == "" {
		c.Unit = DefaultMaterialUnit
	}
	if strings.TrimSpace(c.Category) == "" {
		c.Category = DefaultMaterialCategory
	}
	if c.DefaultQuantity < 0 {
		return fmt.Errorf("%w: defaultQuantity must not be negative", ErrInvalidActionConfig)
	}
	return nil
}

// UpdateQuantityConfig: NewQuantity wins over QuantityMultiplier.
type UpdateQuantityConfig struct {
	NewQuantity        *float64 `json:"newQuantity"`
	QuantityMultiplier *float64 `json:"quantityMultiplier"`
	// MaterialName locates the material on the task when the event carries no materialId.
	MaterialName string `json:"materialName"`
}

func (c *UpdateQuantityConfig) ActionType() ActionType { return ActionUpdateQuantity }

func (c *UpdateQuantityConfig) Validate() error {
	if c.NewQuantity != nil && *c.NewQuantity < 0 {
		return fmt.Errorf("%w: newQuantity must not be negative", ErrInvalidActionConfig)
	}
	if c.QuantityMultiplier != nil && *c.QuantityMultiplier < 0 {
		return fmt.Errorf("%w: quantityMultiplier must not be negative", ErrInvalidActionConfig)
	}
	return nil
}

// Apply computes the new planned quantity from the current one.
func (c *UpdateQuantityConfig) Apply(current float64) float64 {
	if c.NewQuantity != nil {
		return *c.NewQuantity
	}
	if c.QuantityMultiplier != nil {
		return current * *c.QuantityMultiplier
	}
	return current
}

type CopyBomConfig struct {
	SourceTaskTypeID *uint `json:"sourceTaskTypeId"`
}

func (c *CopyBomConfig) ActionType() ActionType { return ActionCopyBom }
func (c *CopyBomConfig) Validate() error        { return nil }

type NotifyConfig struct {
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

func (c *NotifyConfig) ActionType() ActionType { return ActionNotify }
func (c *NotifyConfig) Validate() error        { return nil }

type CalculateCostConfig struct{}

func (c *CalculateCostConfig) ActionType() ActionType { return ActionCalculateCost }
func (c *CalculateCostConfig) Validate() error        { return nil }

var builtinDispatcher = sync.OnceValue(func() *Dispatcher {
	return NewDefaultDispatcher(HandlerDeps{})
})

// DecodeActionConfig decodes raw into the config variant of a built-in
// action type. Use Dispatcher.DecodeConfig to include registered handlers.
func DecodeActionConfig(actionType ActionType, raw datatypes.JSON) (ActionConfig, error) {
	return builtinDispatcher().DecodeConfig(actionType, raw)
}

// decodeInto unmarshals raw over cfg, keeping cfg's defaults for absent keys.
// Unknown keys are ignored so older/newer definitions still load.
func decodeInto(raw datatypes.JSON, cfg ActionConfig) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, cfg); err != nil {
			return fmt.Errorf("%w for %s: %v", ErrInvalidActionConfig, cfg.ActionType(), err)
		}
	}
	return cfg.Validate()
}
