// Package automation implements the BOM trigger engine: condition matching,
// action dispatch and the per-firing orchestration with its audit log.
package automation

// TriggerEvent is a business moment that can raise triggers.
type TriggerEvent string

const (
	EventTaskCreate     TriggerEvent = "ON_TASK_CREATE"
	EventStatusChange   TriggerEvent = "ON_STATUS_CHANGE"
	EventBomUpdate      TriggerEvent = "ON_BOM_UPDATE"
	EventMaterialAdd    TriggerEvent = "ON_MATERIAL_ADD"
	EventQuantityChange TriggerEvent = "ON_QUANTITY_CHANGE"
)

// Events lists every supported event in display order.
func Events() []TriggerEvent {
	return []TriggerEvent{EventTaskCreate, EventStatusChange, EventBomUpdate, EventMaterialAdd, EventQuantityChange}
}

func (e TriggerEvent) Valid() bool {
	switch e {
	case EventTaskCreate, EventStatusChange, EventBomUpdate, EventMaterialAdd, EventQuantityChange:
		return true
	}
	return false
}

// ActionType is the kind of side effect a trigger performs.
type ActionType string

const (
	ActionAddMaterial    ActionType = "ADD_MATERIAL"
	ActionUpdateQuantity ActionType = "UPDATE_QUANTITY"
	ActionCopyBom        ActionType = "COPY_BOM"
	ActionNotify         ActionType = "NOTIFY"
	ActionCalculateCost  ActionType = "CALCULATE_COST"
)

// EventData is the payload a business operation passes with an event.
// Conventional keys: taskId, materialId, status, quantity.
type EventData map[string]interface{}

// ActionResult is what a handler returns; it is stored verbatim in the log.
type ActionResult map[string]interface{}

// Keys used in event data.
const (
	KeyTaskID     = "taskId"
	KeyMaterialID = "materialId"
)
