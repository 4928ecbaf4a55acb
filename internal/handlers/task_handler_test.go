package handlers

import (
	"net/http"
	"testing"

	"bomflow/internal/models"
	"bomflow/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskHandler_TaskLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/tasks", map[string]interface{}{"task_number": "T-1", "title": "Montaż"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var task models.Task
	decodeBody(t, w, &task)
	assert.NotZero(t, task.ID)

	w = s.do(t, http.MethodPatch, "/api/tasks/1/status", map[string]string{"status": "done"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeBody(t, w, &task)
	assert.Equal(t, "done", task.Status)

	w = s.do(t, http.MethodGet, "/api/tasks/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/tasks/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, "/api/tasks", map[string]interface{}{"title": "bez numeru"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskHandler_Materials(t *testing.T) {
	s := newTestServer(t)
	task := testutil.SeedTask(t, s.db, "T-1", nil)

	w := s.do(t, http.MethodPost, "/api/tasks/1/materials", map[string]interface{}{"material_name": "Kabel", "planned_quantity": 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var material models.TaskMaterial
	decodeBody(t, w, &material)
	assert.Equal(t, task.ID, material.TaskID)
	assert.Equal(t, 1, material.Version)

	w = s.do(t, http.MethodPatch, "/api/materials/1/quantity", map[string]interface{}{"planned_quantity": 8, "version": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeBody(t, w, &material)
	assert.Equal(t, 8.0, material.PlannedQuantity)
	assert.Equal(t, 2, material.Version)

	// 过期版本
	w = s.do(t, http.MethodPatch, "/api/materials/1/quantity", map[string]interface{}{"planned_quantity": 9, "version": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPatch, "/api/materials/1/quantity", map[string]interface{}{"planned_quantity": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/tasks/1/materials", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var materials []models.TaskMaterial
	decodeBody(t, w, &materials)
	assert.Len(t, materials, 1)
}
