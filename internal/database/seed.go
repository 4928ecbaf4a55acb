package database

import (
	"errors"
	"fmt"

	"bomflow/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedResult 演示数据写入结果
type SeedResult struct {
	TaskTypes int
	Templates int
	Triggers  int
}

type seedTemplate struct {
	name     string
	qty      float64
	unit     string
	category string
	price    float64
}

var seedTaskTypes = []struct {
	code, name string
	templates  []seedTemplate
}{
	{"INSTALACJA", "Instalacja", []seedTemplate{
		{"Kabel YDY 3x2.5", 50, "m", "elektryka", 4.2},
		{"Puszka podtynkowa", 10, "szt", "elektryka", 1.35},
		{"Gniazdo 230V", 6, "szt", "osprzęt", 18.9},
	}},
	{"SERWIS", "Serwis", []seedTemplate{
		{"Bezpiecznik 16A", 2, "szt", "zabezpieczenia", 22.5},
	}},
}

// Seed 写入演示任务类型、BOM 模板和触发器；已存在的任务类型跳过
func Seed(db *gorm.DB) (SeedResult, error) {
	var res SeedResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var firstTypeID uint
		for _, st := range seedTaskTypes {
			var tt models.TaskType
			err := tx.Where("code = ?", st.code).First(&tt).Error
			if err == nil {
				if firstTypeID == 0 {
					firstTypeID = tt.ID
				}
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			tt = models.TaskType{Code: st.code, Name: st.name, IsActive: true}
			if err := tx.Create(&tt).Error; err != nil {
				return fmt.Errorf("seed task type %s: %w", st.code, err)
			}
			res.TaskTypes++
			if firstTypeID == 0 {
				firstTypeID = tt.ID
			}
			for i, t := range st.templates {
				price := t.price
				tpl := models.BomTemplate{
					TaskTypeID:      tt.ID,
					MaterialName:    t.name,
					DefaultQuantity: t.qty,
					Unit:            t.unit,
					Category:        t.category,
					UnitPrice:       &price,
					IsActive:        true,
					SortOrder:       i + 1,
				}
				if err := tx.Create(&tpl).Error; err != nil {
					return fmt.Errorf("seed template %s: %w", t.name, err)
				}
				res.Templates++
			}
		}

		var count int64
		if err := tx.Model(&models.BomTrigger{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		triggers := []models.BomTrigger{
			{
				Name:             "Kopiuj BOM instalacji",
				TriggerEvent:     "ON_TASK_CREATE",
				TriggerCondition: datatypes.JSON(`{}`),
				ActionType:       "COPY_BOM",
				ActionConfig:     datatypes.JSON(`{}`),
				SourceTaskTypeID: &firstTypeID,
				Priority:         20,
				IsActive:         true,
			},
			{
				Name:             "Przelicz koszt",
				TriggerEvent:     "ON_TASK_CREATE",
				TriggerCondition: datatypes.JSON(`{}`),
				ActionType:       "CALCULATE_COST",
				ActionConfig:     datatypes.JSON(`{}`),
				Priority:         models.DefaultTriggerPriority,
				IsActive:         true,
			},
			{
				Name:             "Powiadom o zakończeniu",
				TriggerEvent:     "ON_STATUS_CHANGE",
				TriggerCondition: datatypes.JSON(`{"status":"done"}`),
				ActionType:       "NOTIFY",
				ActionConfig:     datatypes.JSON(`{"message":"Zadanie zakończone"}`),
				Priority:         models.DefaultTriggerPriority,
				IsActive:         true,
			},
		}
		for i := range triggers {
			if err := tx.Create(&triggers[i]).Error; err != nil {
				return fmt.Errorf("seed trigger %s: %w", triggers[i].Name, err)
			}
			res.Triggers++
		}
		return nil
	})
	return res, err
}
