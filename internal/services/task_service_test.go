package services

import (
	"context"
	"sync"
	"testing"

	"bomflow/internal/apperrors"
	"bomflow/internal/automation"
	"bomflow/internal/models"
	"bomflow/internal/repository"
	"bomflow/internal/testutil"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type firedEvent struct {
	event automation.TriggerEvent
	data  automation.EventData
}

type recordingFirer struct {
	mu    sync.Mutex
	fired []firedEvent
}

func (r *recordingFirer) FireEvent(_ context.Context, event automation.TriggerEvent, data automation.EventData) *automation.FiringReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, firedEvent{event, data})
	return &automation.FiringReport{Event: event}
}

func (r *recordingFirer) events() []automation.TriggerEvent {
	var out []automation.TriggerEvent
	for _, f := range r.fired {
		out = append(out, f.event)
	}
	return out
}

func TestTaskService_FiresEvents(t *testing.T) {
	db := testutil.NewDB(t)
	firer := &recordingFirer{}
	svc := NewTaskService(db, repository.NewMaterialRepository(db), firer, logrus.New())
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, &TaskCreateRequest{TaskNumber: "T-1", Title: "Montaż"})
	require.NoError(t, err)
	assert.Equal(t, "new", task.Status)
	require.Len(t, firer.fired, 1)
	assert.Equal(t, automation.EventTaskCreate, firer.fired[0].event)
	assert.Equal(t, task.ID, firer.fired[0].data[automation.KeyTaskID])

	_, err = svc.UpdateTaskStatus(ctx, task.ID, "new")
	require.NoError(t, err)
	assert.Len(t, firer.fired, 1, "unchanged status fires nothing")

	_, err = svc.UpdateTaskStatus(ctx, task.ID, "done")
	require.NoError(t, err)
	assert.Equal(t, "new", firer.fired[1].data["previousStatus"])

	m, err := svc.AddMaterial(ctx, task.ID, &MaterialCreateRequest{MaterialName: "Cement", PlannedQuantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)

	updated, err := svc.UpdateMaterialQuantity(ctx, m.ID, &QuantityUpdateRequest{PlannedQuantity: 15})
	require.NoError(t, err)
	assert.Equal(t, 15.0, updated.PlannedQuantity)
	assert.Equal(t, 2, updated.Version)

	assert.Equal(t, []automation.TriggerEvent{
		automation.EventTaskCreate,
		automation.EventStatusChange,
		automation.EventMaterialAdd,
		automation.EventBomUpdate,
		automation.EventQuantityChange,
		automation.EventBomUpdate,
	}, firer.events())

	stale := 1
	_, err = svc.UpdateMaterialQuantity(ctx, m.ID, &QuantityUpdateRequest{PlannedQuantity: 20, Version: &stale})
	assert.ErrorIs(t, err, apperrors.ErrConcurrentUpdate)
	assert.Len(t, firer.fired, 6)
}

func TestTaskService_Errors(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewTaskService(db, repository.NewMaterialRepository(db), nil, nil)
	ctx := context.Background()

	_, err := svc.GetTask(ctx, 404)
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
	_, err = svc.AddMaterial(ctx, 404, &MaterialCreateRequest{MaterialName: "x"})
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
	_, err = svc.UpdateMaterialQuantity(ctx, 404, &QuantityUpdateRequest{PlannedQuantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrMaterialNotFound)
	_, err = svc.UpdateMaterialQuantity(ctx, 1, &QuantityUpdateRequest{PlannedQuantity: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

// 端到端：创建任务时 COPY_BOM 与 CALCULATE_COST 依次执行
func TestTaskService_WithEngine(t *testing.T) {
	db := testutil.NewDB(t)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	materials := repository.NewMaterialRepository(db)
	triggers := repository.NewTriggerRepository(db, logger)
	logs := repository.NewTriggerLogRepository(db)
	engine := automation.NewEngine(db, triggers, logs, automation.NewDefaultDispatcher(automation.HandlerDeps{
		Materials: materials,
		Templates: repository.NewBomTemplateRepository(db),
		Logger:    logger,
	}), automation.WithLogger(logger))
	svc := NewTaskService(db, materials, engine, logger)

	tt := testutil.SeedTaskType(t, db, "INST")
	testutil.SeedTemplate(t, db, tt.ID, "Kabel", 10, testutil.Float(2), 1)
	testutil.SeedTrigger(t, db, testutil.TriggerSpec{
		Event:            string(automation.EventTaskCreate),
		ActionType:       string(automation.ActionCopyBom),
		SourceTaskTypeID: &tt.ID,
		Priority:         20,
	})

	task, err := svc.CreateTask(context.Background(), &TaskCreateRequest{TaskNumber: "T-9", Title: "x", TaskTypeID: &tt.ID})
	require.NoError(t, err)

	list, err := svc.ListMaterials(context.Background(), task.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Kabel", list[0].MaterialName)
	require.NotNil(t, list[0].BomTemplate)

	var count int64
	require.NoError(t, db.Model(&models.BomTriggerLog{}).Where("success = ?", true).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
