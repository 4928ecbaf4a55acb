package services

import (
	"context"
	"encoding/json"
	"testing"

	"bomflow/internal/apperrors"
	"bomflow/internal/automation"
	"bomflow/internal/dbctx"
	"bomflow/internal/models"
	"bomflow/internal/repository"
	"bomflow/internal/testutil"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type BomTriggerServiceSuite struct {
	suite.Suite
	db  *gorm.DB
	svc *BomTriggerService
	ctx context.Context
}

func (s *BomTriggerServiceSuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.ctx = context.Background()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	s.svc = newTestService(s.db, logger, automation.NotifierFunc(func(context.Context, automation.Notification) error { return nil }))
}

func newTestService(db *gorm.DB, logger *logrus.Logger, notifier automation.Notifier) *BomTriggerService {
	triggers := repository.NewTriggerRepository(db, logger)
	logs := repository.NewTriggerLogRepository(db)
	dispatcher := automation.NewDefaultDispatcher(automation.HandlerDeps{
		Materials: repository.NewMaterialRepository(db),
		Templates: repository.NewBomTemplateRepository(db),
		Notifier:  notifier,
		Logger:    logger,
	})
	engine := automation.NewEngine(db, triggers, logs, dispatcher, automation.WithLogger(logger))
	return NewBomTriggerService(triggers, logs, engine, logger)
}

func TestBomTriggerServiceSuite(t *testing.T) {
	suite.Run(t, new(BomTriggerServiceSuite))
}

func (s *BomTriggerServiceSuite) create(req BomTriggerRequest) *models.BomTrigger {
	trig, err := s.svc.CreateTrigger(s.ctx, &req)
	s.Require().NoError(err)
	return trig
}

func (s *BomTriggerServiceSuite) TestCreateDefaults() {
	trig := s.create(BomTriggerRequest{Name: " Powiadom ", TriggerEvent: "ON_STATUS_CHANGE", ActionType: "NOTIFY"})
	s.Equal("Powiadom", trig.Name)
	s.Equal(models.DefaultTriggerPriority, trig.Priority)
	s.True(trig.IsActive)
	s.JSONEq(`{}`, string(trig.TriggerCondition))
	s.JSONEq(`{}`, string(trig.ActionConfig))
	s.NotEmpty(trig.UUID)

	off := false
	prio := 0
	trig = s.create(BomTriggerRequest{Name: "n", TriggerEvent: "ON_TASK_CREATE", ActionType: "NOTIFY", IsActive: &off, Priority: &prio})
	s.False(trig.IsActive)
	s.Equal(0, trig.Priority)
}

func (s *BomTriggerServiceSuite) TestCreateValidation() {
	tests := []struct {
		name string
		req  BomTriggerRequest
		want error
	}{
		{"unknown event", BomTriggerRequest{Name: "n", TriggerEvent: "ON_DELETE", ActionType: "NOTIFY"}, apperrors.ErrUnknownEvent},
		{"blank name", BomTriggerRequest{Name: " ", TriggerEvent: "ON_TASK_CREATE", ActionType: "NOTIFY"}, apperrors.ErrMissingField},
		{"condition not an object", BomTriggerRequest{Name: "n", TriggerEvent: "ON_TASK_CREATE", ActionType: "NOTIFY", TriggerCondition: json.RawMessage(`[1]`)}, apperrors.ErrInvalidCondition},
		{"condition with nested value", BomTriggerRequest{Name: "n", TriggerEvent: "ON_TASK_CREATE", ActionType: "NOTIFY", TriggerCondition: json.RawMessage(`{"taskId":{"gt":5}}`)}, apperrors.ErrInvalidCondition},
		{"bad config for known type", BomTriggerRequest{Name: "n", TriggerEvent: "ON_TASK_CREATE", ActionType: "ADD_MATERIAL", ActionConfig: json.RawMessage(`{"defaultQuantity":"abc"}`)}, apperrors.ErrInvalidActionConfig},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := tt.req
			_, err := s.svc.CreateTrigger(s.ctx, &req)
			s.ErrorIs(err, tt.want)
			s.True(apperrors.IsValidation(err))
		})
	}
}

func (s *BomTriggerServiceSuite) TestUnknownActionTypeIsStoredAndFailsAtExecution() {
	trig := s.create(BomTriggerRequest{Name: "sms", TriggerEvent: "ON_TASK_CREATE", ActionType: "SEND_SMS", ActionConfig: json.RawMessage(`{"to":"123"}`)})

	_, err := s.svc.TestTrigger(s.ctx, trig.ID, automation.EventData{"taskId": 1})
	s.ErrorIs(err, apperrors.ErrUnknownActionType)

	logs, total, err := s.svc.ListLogs(s.ctx, repository.TriggerLogFilter{TriggerID: trig.ID})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.False(logs[0].Success)
	s.Equal("unknown action type: SEND_SMS", *logs[0].ErrorMessage)
}

type stampConfig struct {
	Count int `json:"count"`
}

func (c *stampConfig) ActionType() automation.ActionType { return "STAMP" }
func (c *stampConfig) Validate() error                   { return nil }

type stampHandler struct{}

func (stampHandler) Type() automation.ActionType        { return "STAMP" }
func (stampHandler) NewConfig() automation.ActionConfig { return &stampConfig{} }
func (stampHandler) Handle(_ dbctx.Context, _ *models.BomTrigger, cfg automation.ActionConfig, _ automation.EventData) (automation.ActionResult, error) {
	return automation.ActionResult{"count": cfg.(*stampConfig).Count}, nil
}

func (s *BomTriggerServiceSuite) TestRegisteredHandlerConfigIsValidated() {
	s.svc.engine.Dispatcher().Register(stampHandler{})

	_, err := s.svc.CreateTrigger(s.ctx, &BomTriggerRequest{Name: "n", TriggerEvent: "ON_TASK_CREATE", ActionType: "STAMP", ActionConfig: json.RawMessage(`{"count":"abc"}`)})
	s.ErrorIs(err, apperrors.ErrInvalidActionConfig)

	trig := s.create(BomTriggerRequest{Name: "n", TriggerEvent: "ON_TASK_CREATE", ActionType: "STAMP", ActionConfig: json.RawMessage(`{"count":3}`)})
	result, err := s.svc.TestTrigger(s.ctx, trig.ID, nil)
	s.Require().NoError(err)
	s.Equal(3, result["count"])

	meta := s.svc.Metadata()
	s.Contains(meta.ActionTypes, automation.ActionType("STAMP"))
	s.Contains(meta.ActionDefaults, "STAMP")

	n, err := s.svc.LogCount(s.ctx, trig.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *BomTriggerServiceSuite) TestGetByIDOrUUID() {
	trig := s.create(BomTriggerRequest{Name: "n", TriggerEvent: "ON_TASK_CREATE", ActionType: "NOTIFY"})

	byID, err := s.svc.GetTrigger(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal(trig.ID, byID.ID)

	byUUID, err := s.svc.GetTrigger(s.ctx, trig.UUID)
	s.Require().NoError(err)
	s.Equal(trig.ID, byUUID.ID)

	_, err = s.svc.GetTrigger(s.ctx, "missing")
	s.True(apperrors.IsNotFound(err))
}

func (s *BomTriggerServiceSuite) TestUpdatePartial() {
	trig := s.create(BomTriggerRequest{
		Name:         "n",
		TriggerEvent: "ON_TASK_CREATE",
		ActionType:   "ADD_MATERIAL",
		ActionConfig: json.RawMessage(`{"materialName":"Cement"}`),
		Priority:     intPtr(30),
	})

	name := "nowa nazwa"
	updated, err := s.svc.UpdateTrigger(s.ctx, trig.ID, &BomTriggerUpdateRequest{Name: &name, TriggerCondition: json.RawMessage(`{"status":"done"}`)})
	s.Require().NoError(err)
	s.Equal("nowa nazwa", updated.Name)
	s.Equal(30, updated.Priority)
	s.JSONEq(`{"status":"done"}`, string(updated.TriggerCondition))
	s.JSONEq(`{"materialName":"Cement"}`, string(updated.ActionConfig))

	notify := "NOTIFY"
	updated, err = s.svc.UpdateTrigger(s.ctx, trig.ID, &BomTriggerUpdateRequest{ActionType: &notify, ActionConfig: json.RawMessage(`{"message":"x"}`)})
	s.Require().NoError(err)
	s.Equal("NOTIFY", updated.ActionType)

	_, err = s.svc.UpdateTrigger(s.ctx, trig.ID, &BomTriggerUpdateRequest{ActionConfig: json.RawMessage(`{"message":5}`)})
	s.ErrorIs(err, apperrors.ErrInvalidActionConfig)

	_, err = s.svc.UpdateTrigger(s.ctx, 999, &BomTriggerUpdateRequest{Name: &name})
	s.ErrorIs(err, apperrors.ErrTriggerNotFound)
}

func (s *BomTriggerServiceSuite) TestToggleAndDelete() {
	trig := s.create(BomTriggerRequest{Name: "n", TriggerEvent: "ON_TASK_CREATE", ActionType: "NOTIFY"})

	toggled, err := s.svc.ToggleTrigger(s.ctx, trig.ID)
	s.Require().NoError(err)
	s.False(toggled.IsActive)
	toggled, err = s.svc.ToggleTrigger(s.ctx, trig.ID)
	s.Require().NoError(err)
	s.True(toggled.IsActive)

	// 逻辑删除只停用
	s.Require().NoError(s.svc.DeleteTrigger(s.ctx, trig.ID, false))
	kept, err := s.svc.GetTrigger(s.ctx, trig.UUID)
	s.Require().NoError(err)
	s.False(kept.IsActive)

	s.svc.TestTrigger(s.ctx, trig.ID, nil)
	s.Require().NoError(s.svc.DeleteTrigger(s.ctx, trig.ID, true))
	_, err = s.svc.GetTrigger(s.ctx, trig.UUID)
	s.ErrorIs(err, apperrors.ErrTriggerNotFound)
	_, total, err := s.svc.ListLogs(s.ctx, repository.TriggerLogFilter{TriggerID: trig.ID})
	s.Require().NoError(err)
	s.Zero(total)

	s.ErrorIs(s.svc.DeleteTrigger(s.ctx, 999, false), apperrors.ErrTriggerNotFound)
}

func (s *BomTriggerServiceSuite) TestFireEventAndList() {
	s.create(BomTriggerRequest{Name: "a", TriggerEvent: "ON_BOM_UPDATE", ActionType: "NOTIFY", ActionConfig: json.RawMessage(`{"message":"m"}`)})
	s.create(BomTriggerRequest{Name: "b", TriggerEvent: "ON_TASK_CREATE", ActionType: "NOTIFY", IsActive: boolPtr(false)})

	report := s.svc.FireEvent(s.ctx, "ON_BOM_UPDATE", automation.EventData{"taskId": 4})
	s.Len(report.Attempts, 1)
	s.Zero(report.Failed())

	inactive, err := s.svc.ListTriggers(s.ctx, TriggerListQuery{IsActive: boolPtr(false)})
	s.Require().NoError(err)
	s.Len(inactive, 1)
	byEvent, err := s.svc.ListTriggers(s.ctx, TriggerListQuery{TriggerEvent: "ON_BOM_UPDATE"})
	s.Require().NoError(err)
	s.Len(byEvent, 1)

	_, total, err := s.svc.ListLogs(s.ctx, repository.TriggerLogFilter{TaskID: 4})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
}

func (s *BomTriggerServiceSuite) TestMetadata() {
	meta := s.svc.Metadata()
	s.Len(meta.Events, 5)
	s.Len(meta.ActionTypes, 5)
	s.Equal(10, meta.DefaultPriority)
	add := meta.ActionDefaults["ADD_MATERIAL"].(*automation.AddMaterialConfig)
	s.Equal("Nowy materiał", add.MaterialName)
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }
