package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bomflow/internal/dbctx"
	"bomflow/internal/models"
	"bomflow/internal/repository"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Engine runs active triggers for fired events and records every attempt.
type Engine struct {
	db            *gorm.DB
	triggers      repository.TriggerRepository
	logs          repository.TriggerLogRepository
	dispatcher    *Dispatcher
	logger        *logrus.Logger
	observer      Observer
	tracer        trace.Tracer
	transactional bool
}

type EngineOption func(*Engine)

func WithLogger(l *logrus.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithTransactionalAttempts runs handler and success log in one transaction.
// Off, they are two independent writes.
func WithTransactionalAttempts(on bool) EngineOption {
	return func(e *Engine) { e.transactional = on }
}

func NewEngine(db *gorm.DB, triggers repository.TriggerRepository, logs repository.TriggerLogRepository, dispatcher *Dispatcher, opts ...EngineOption) *Engine {
	e := &Engine{
		db:            db,
		triggers:      triggers,
		logs:          logs,
		dispatcher:    dispatcher,
		logger:        logrus.New(),
		observer:      nopObserver{},
		tracer:        otel.Tracer("bomflow/automation"),
		transactional: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatcher exposes the action registry, e.g. for config validation.
func (e *Engine) Dispatcher() *Dispatcher { return e.dispatcher }

// AttemptOutcome describes one executed trigger within a firing.
type AttemptOutcome struct {
	TriggerID  uint         `json:"trigger_id"`
	Name       string       `json:"name"`
	ActionType string       `json:"action_type"`
	Success    bool         `json:"success"`
	Result     ActionResult `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
	LogID      uint         `json:"log_id,omitempty"`
}

// FiringReport summarises a firing. Callers may ignore it entirely.
type FiringReport struct {
	Event    TriggerEvent     `json:"event"`
	Selected int              `json:"selected"`
	Skipped  int              `json:"skipped"`
	Attempts []AttemptOutcome `json:"attempts"`
	Err      error            `json:"-"`
}

func (r *FiringReport) Failed() int {
	n := 0
	for _, a := range r.Attempts {
		if !a.Success {
			n++
		}
	}
	return n
}

// FireEvent evaluates the active triggers of event in priority order and
// executes those whose condition matches data. It never fails: each trigger's
// error is recorded in its log row and the next trigger still runs.
func (e *Engine) FireEvent(ctx context.Context, event TriggerEvent, data EventData) *FiringReport {
	report := &FiringReport{Event: event, Attempts: []AttemptOutcome{}}
	if data == nil {
		data = EventData{}
	}
	if !event.Valid() {
		report.Err = fmt.Errorf("%w: %s", ErrUnknownEvent, event)
		e.logger.Warnf("automation: %v", report.Err)
		return report
	}

	ctx, span := e.tracer.Start(ctx, "bom_trigger.fire_event",
		trace.WithAttributes(attribute.String("bom_trigger.event", string(event))))
	defer span.End()

	active := true
	eventName := string(event)
	triggers, err := e.triggers.List(dbctx.New(ctx), repository.TriggerFilter{IsActive: &active, TriggerEvent: &eventName})
	if err != nil {
		report.Err = err
		span.RecordError(err)
		e.logger.Warnf("automation: load triggers for %s failed: %v", event, err)
		return report
	}
	report.Selected = len(triggers)

	for i := range triggers {
		trig := &triggers[i]
		cond, err := ParseCondition(trig.TriggerCondition)
		if err != nil {
			// A broken condition counts as a failed attempt, not a silent skip.
			report.Attempts = append(report.Attempts, e.recordFailure(ctx, event, trig, data, err, time.Now()))
			continue
		}
		if !Matches(cond, data) {
			report.Skipped++
			continue
		}
		outcome, _ := e.attempt(ctx, event, trig, data)
		report.Attempts = append(report.Attempts, outcome)
	}

	span.SetAttributes(
		attribute.Int("bom_trigger.selected", report.Selected),
		attribute.Int("bom_trigger.attempted", len(report.Attempts)),
		attribute.Int("bom_trigger.failed", report.Failed()),
	)
	e.observer.RecordFiring(event, report.Selected, len(report.Attempts))
	if len(report.Attempts) > 0 {
		e.logger.WithFields(logrus.Fields{
			"event":     event,
			"selected":  report.Selected,
			"attempted": len(report.Attempts),
			"failed":    report.Failed(),
		}).Info("automation: event processed")
	}
	return report
}

// ExecuteTrigger runs one trigger outside event selection, ignoring its
// active flag and condition. The attempt is logged like any other, and the
// handler's error is returned.
func (e *Engine) ExecuteTrigger(ctx context.Context, trigger *models.BomTrigger, input EventData) (ActionResult, error) {
	if input == nil {
		input = EventData{}
	}
	outcome, err := e.attempt(ctx, TriggerEvent(trigger.TriggerEvent), trigger, input)
	if err != nil {
		return nil, err
	}
	return outcome.Result, nil
}

// ExecuteTriggerByID loads the trigger and runs ExecuteTrigger.
func (e *Engine) ExecuteTriggerByID(ctx context.Context, id uint, input EventData) (ActionResult, error) {
	trigger, err := e.triggers.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, err
	}
	return e.ExecuteTrigger(ctx, trigger, input)
}

// attempt dispatches one trigger and writes exactly one log row for it.
func (e *Engine) attempt(ctx context.Context, event TriggerEvent, trig *models.BomTrigger, input EventData) (AttemptOutcome, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "bom_trigger.attempt", trace.WithAttributes(
		attribute.Int64("bom_trigger.id", int64(trig.ID)),
		attribute.String("bom_trigger.action_type", trig.ActionType),
	))
	defer span.End()

	inputJSON := e.encodeJSON(trig, "input", input)
	var result ActionResult
	var entry *models.BomTriggerLog
	run := func(dbc dbctx.Context) error {
		res, err := e.safeExecute(dbc, trig, input)
		if err != nil {
			return err
		}
		success := &models.BomTriggerLog{
			TriggerID:  trig.ID,
			TaskID:     taskIDOf(input),
			Success:    true,
			InputData:  inputJSON,
			ResultData: e.encodeJSON(trig, "result", res),
		}
		if err := e.logs.Create(dbc, success); err != nil {
			return fmt.Errorf("record trigger log: %w", err)
		}
		result, entry = res, success
		return nil
	}

	var err error
	if e.transactional && e.db != nil {
		var dbc dbctx.Context
		err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			dbc = dbctx.WithTx(ctx, tx)
			return run(dbc)
		})
		if err == nil {
			// side effects outside the database wait for the commit
			dbc.Commit()
		}
	} else {
		err = run(dbctx.New(ctx))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return e.recordFailure(ctx, event, trig, input, err, start), err
	}

	e.observer.RecordAttempt(event, trig.ActionType, time.Since(start), nil)
	e.logger.WithFields(logrus.Fields{
		"trigger_id":  trig.ID,
		"event":       event,
		"action_type": trig.ActionType,
	}).Debug("automation: trigger executed")
	return AttemptOutcome{
		TriggerID:  trig.ID,
		Name:       trig.Name,
		ActionType: trig.ActionType,
		Success:    true,
		Result:     result,
		LogID:      entry.ID,
	}, nil
}

func (e *Engine) recordFailure(ctx context.Context, event TriggerEvent, trig *models.BomTrigger, input EventData, cause error, start time.Time) AttemptOutcome {
	msg := cause.Error()
	failed := &models.BomTriggerLog{
		TriggerID:    trig.ID,
		TaskID:       taskIDOf(input),
		Success:      false,
		InputData:    e.encodeJSON(trig, "input", input),
		ErrorMessage: &msg,
	}
	if err := e.logs.Create(dbctx.New(ctx), failed); err != nil {
		e.logger.Errorf("automation: record failure for trigger %d failed: %v", trig.ID, err)
	}
	e.observer.RecordAttempt(event, trig.ActionType, time.Since(start), cause)
	e.logger.WithFields(logrus.Fields{
		"trigger_id":  trig.ID,
		"event":       event,
		"action_type": trig.ActionType,
	}).Warnf("automation: trigger %s failed: %v", trig.Name, cause)
	return AttemptOutcome{
		TriggerID:  trig.ID,
		Name:       trig.Name,
		ActionType: trig.ActionType,
		Success:    false,
		Error:      msg,
		LogID:      failed.ID,
	}
}

func (e *Engine) safeExecute(dbc dbctx.Context, trig *models.BomTrigger, input EventData) (res ActionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %s panicked: %v", trig.ActionType, r)
		}
	}()
	return e.dispatcher.Execute(dbc, trig, input)
}

// encodeJSON stores values that cannot be marshalled (NaN, channels) as
// {"encodeError": ...} and warns, so the log row is still written.
func (e *Engine) encodeJSON(trig *models.BomTrigger, what string, v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"trigger_id": trig.ID,
			"error":      err,
		}).Warnf("automation: %s data could not be stored verbatim", what)
		b, _ = json.Marshal(map[string]string{"encodeError": err.Error()})
	}
	return datatypes.JSON(b)
}
