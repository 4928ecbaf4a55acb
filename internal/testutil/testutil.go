// Package testutil 提供测试用的 sqlite 数据库与种子数据
package testutil

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"bomflow/internal/models"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with every model migrated.
// A single connection keeps the shared-cache database alive for the test.
func NewDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(models.All()...); err != nil {
		tb.Fatalf("auto migrate: %v", err)
	}
	return db
}

// JSON marshals v for a datatypes.JSON column.
func JSON(tb testing.TB, v interface{}) datatypes.JSON {
	tb.Helper()
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		tb.Fatalf("marshal json: %v", err)
	}
	return datatypes.JSON(b)
}

func SeedTaskType(tb testing.TB, db *gorm.DB, code string) *models.TaskType {
	tb.Helper()
	tt := &models.TaskType{Name: "Typ " + code, Code: code, IsActive: true}
	if err := db.Create(tt).Error; err != nil {
		tb.Fatalf("seed task type: %v", err)
	}
	return tt
}

func SeedTask(tb testing.TB, db *gorm.DB, number string, taskTypeID *uint) *models.Task {
	tb.Helper()
	task := &models.Task{TaskNumber: number, Title: "Zadanie " + number, TaskTypeID: taskTypeID, Status: "new"}
	if err := db.Create(task).Error; err != nil {
		tb.Fatalf("seed task: %v", err)
	}
	return task
}

// SeedTemplate creates an active template; price may be nil.
func SeedTemplate(tb testing.TB, db *gorm.DB, taskTypeID uint, name string, qty float64, price *float64, sort int) *models.BomTemplate {
	tb.Helper()
	tpl := &models.BomTemplate{
		TaskTypeID:      taskTypeID,
		MaterialName:    name,
		DefaultQuantity: qty,
		Unit:            "szt",
		Category:        "default",
		UnitPrice:       price,
		IsActive:        true,
		SortOrder:       sort,
	}
	if err := db.Create(tpl).Error; err != nil {
		tb.Fatalf("seed template: %v", err)
	}
	return tpl
}

func SeedMaterial(tb testing.TB, db *gorm.DB, taskID uint, name string, planned float64) *models.TaskMaterial {
	tb.Helper()
	m := &models.TaskMaterial{TaskID: taskID, MaterialName: name, PlannedQuantity: planned, Unit: "szt", Category: "default", Version: 1}
	if err := db.Create(m).Error; err != nil {
		tb.Fatalf("seed material: %v", err)
	}
	return m
}

// TriggerSpec describes a trigger to seed; zero Priority means the default.
type TriggerSpec struct {
	Name             string
	Event            string
	Condition        interface{}
	ActionType       string
	ActionConfig     interface{}
	Priority         int
	Inactive         bool
	SourceTaskTypeID *uint
}

func SeedTrigger(tb testing.TB, db *gorm.DB, spec TriggerSpec) *models.BomTrigger {
	tb.Helper()
	priority := spec.Priority
	if priority == 0 {
		priority = models.DefaultTriggerPriority
	}
	name := spec.Name
	if name == "" {
		name = spec.ActionType + " on " + spec.Event
	}
	trig := &models.BomTrigger{
		Name:             name,
		TriggerEvent:     spec.Event,
		TriggerCondition: JSON(tb, spec.Condition),
		ActionType:       spec.ActionType,
		ActionConfig:     JSON(tb, spec.ActionConfig),
		SourceTaskTypeID: spec.SourceTaskTypeID,
		Priority:         priority,
		IsActive:         !spec.Inactive,
	}
	if err := db.Create(trig).Error; err != nil {
		tb.Fatalf("seed trigger: %v", err)
	}
	return trig
}

func Float(v float64) *float64 { return &v }

func Uint(v uint) *uint { return &v }
