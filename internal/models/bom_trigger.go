package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BomTrigger BOM 自动化触发器定义
type BomTrigger struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UUID             string         `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	Name             string         `gorm:"not null" json:"name"`
	Description      string         `gorm:"type:text" json:"description"`
	TriggerEvent     string         `gorm:"index;not null" json:"trigger_event"`    // ON_TASK_CREATE, ON_STATUS_CHANGE, ...
	TriggerCondition datatypes.JSON `json:"trigger_condition"`                      // {"field": scalar}
	ActionType       string         `gorm:"not null" json:"action_type"`            // ADD_MATERIAL, UPDATE_QUANTITY, ...
	ActionConfig     datatypes.JSON `json:"action_config"`                          // 结构取决于 action_type
	SourceTaskTypeID *uint          `gorm:"index" json:"source_task_type_id,omitempty"`
	TargetTaskTypeID *uint          `gorm:"index" json:"target_task_type_id,omitempty"`
	Priority         int            `gorm:"index;not null" json:"priority"`
	IsActive         bool           `gorm:"index" json:"is_active"`
	CreatedByID      *uint          `gorm:"index" json:"created_by,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	CreatedBy *User `gorm:"foreignKey:CreatedByID" json:"creator,omitempty"`
}

// DefaultTriggerPriority 新建触发器的默认优先级
const DefaultTriggerPriority = 10

func (t *BomTrigger) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == "" {
		t.UUID = uuid.NewString()
	}
	return nil
}

// BomTriggerLog 触发器执行记录，仅追加
type BomTriggerLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	TriggerID    uint           `gorm:"index;not null" json:"trigger_id"`
	TaskID       *uint          `gorm:"index" json:"task_id,omitempty"`
	ExecutedAt   time.Time      `gorm:"index;not null" json:"executed_at"`
	Success      bool           `gorm:"index" json:"success"`
	InputData    datatypes.JSON `json:"input_data"`
	ResultData   datatypes.JSON `json:"result_data,omitempty"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`

	Trigger *BomTrigger `gorm:"foreignKey:TriggerID;constraint:OnDelete:CASCADE" json:"trigger,omitempty"`
}
