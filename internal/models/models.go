package models

import (
	"time"

	"gorm.io/gorm"
)

// 用户模型（触发器创建人引用）
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"unique;not null" json:"username"`
	Email     string         `gorm:"unique;not null" json:"email"`
	Name      string         `json:"name"`
	Role      string         `gorm:"default:'user'" json:"role"` // admin, manager, user
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// 任务类型（BOM 模板按任务类型归组）
type TaskType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Code      string    `gorm:"uniqueIndex" json:"code"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// 任务
type Task struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TaskNumber string    `gorm:"uniqueIndex" json:"task_number"`
	Title      string    `gorm:"not null" json:"title"`
	TaskTypeID *uint     `gorm:"index" json:"task_type_id,omitempty"`
	Status     string    `gorm:"index" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	TaskType *TaskType `gorm:"foreignKey:TaskTypeID" json:"task_type,omitempty"`
}

// BOM 模板：某任务类型的标准物料清单条目
type BomTemplate struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TaskTypeID      uint      `gorm:"index;not null" json:"task_type_id"`
	MaterialName    string    `gorm:"not null" json:"material_name"`
	Description     string    `gorm:"type:text" json:"description"`
	DefaultQuantity float64   `json:"default_quantity"`
	Unit            string    `json:"unit"`
	Category        string    `json:"category"`
	UnitPrice       *float64  `json:"unit_price,omitempty"`
	IsActive        bool      `gorm:"index" json:"is_active"`
	SortOrder       int       `json:"sort_order"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// 任务物料：任务上的实际 BOM 行
type TaskMaterial struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TaskID          uint      `gorm:"index;not null" json:"task_id"`
	BomTemplateID   *uint     `gorm:"index" json:"bom_template_id,omitempty"`
	MaterialName    string    `gorm:"not null" json:"material_name"`
	PlannedQuantity float64   `json:"planned_quantity"`
	UsedQuantity    float64   `json:"used_quantity"`
	Unit            string    `json:"unit"`
	Category        string    `json:"category"`
	Version         int       `gorm:"not null;default:1" json:"version"` // 乐观锁
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	BomTemplate *BomTemplate `gorm:"foreignKey:BomTemplateID" json:"bom_template,omitempty"`
}

// All 返回需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&User{}, &TaskType{}, &Task{}, &BomTemplate{}, &TaskMaterial{},
		&BomTrigger{}, &BomTriggerLog{},
	}
}
