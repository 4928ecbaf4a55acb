package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"bomflow/internal/models"
	"bomflow/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBomTriggerHandler_CRUD(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/bom-triggers", map[string]interface{}{
		"name":              "Dodaj cement",
		"trigger_event":     "ON_TASK_CREATE",
		"trigger_condition": map[string]interface{}{"status": "new"},
		"action_type":       "ADD_MATERIAL",
		"action_config":     map[string]interface{}{"materialName": "Cement", "defaultQuantity": 5},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.BomTrigger
	decodeBody(t, w, &created)
	assert.Equal(t, 10, created.Priority)
	assert.True(t, created.IsActive)

	w = s.do(t, http.MethodGet, "/api/bom-triggers/"+created.UUID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPut, fmt.Sprintf("/api/bom-triggers/%d", created.ID), map[string]interface{}{"priority": 40})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.BomTrigger
	decodeBody(t, w, &updated)
	assert.Equal(t, 40, updated.Priority)
	assert.Equal(t, "Dodaj cement", updated.Name)

	w = s.do(t, http.MethodPatch, fmt.Sprintf("/api/bom-triggers/%d/toggle", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var toggled models.BomTrigger
	decodeBody(t, w, &toggled)
	assert.False(t, toggled.IsActive)

	w = s.do(t, http.MethodGet, "/api/bom-triggers?is_active=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.BomTrigger
	decodeBody(t, w, &list)
	assert.Len(t, list, 1)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/bom-triggers/%d?hard=true", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/bom-triggers/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBomTriggerHandler_ErrorMapping(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"missing required fields", http.MethodPost, "/api/bom-triggers", map[string]interface{}{"name": "x"}, http.StatusBadRequest},
		{"unknown event", http.MethodPost, "/api/bom-triggers", map[string]interface{}{"name": "x", "trigger_event": "ON_X", "action_type": "NOTIFY"}, http.StatusBadRequest},
		{"bad config", http.MethodPost, "/api/bom-triggers", map[string]interface{}{"name": "x", "trigger_event": "ON_TASK_CREATE", "action_type": "ADD_MATERIAL", "action_config": map[string]interface{}{"defaultQuantity": "abc"}}, http.StatusBadRequest},
		{"invalid id", http.MethodPut, "/api/bom-triggers/abc", map[string]interface{}{}, http.StatusBadRequest},
		{"update missing", http.MethodPut, "/api/bom-triggers/404", map[string]interface{}{"priority": 1}, http.StatusNotFound},
		{"toggle missing", http.MethodPatch, "/api/bom-triggers/404/toggle", nil, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/bom-triggers/404", nil, http.StatusNotFound},
		{"test missing", http.MethodPost, "/api/bom-triggers/404/test", nil, http.StatusNotFound},
		{"unknown event fired", http.MethodPost, "/api/bom-triggers/events", map[string]interface{}{"event": "ON_X"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestBomTriggerHandler_TestTrigger(t *testing.T) {
	s := newTestServer(t)
	trig := testutil.SeedTrigger(t, s.db, testutil.TriggerSpec{
		Event:        "ON_TASK_CREATE",
		ActionType:   "ADD_MATERIAL",
		ActionConfig: map[string]interface{}{"materialName": "Cement"},
	})

	w := s.do(t, http.MethodPost, fmt.Sprintf("/api/bom-triggers/%d/test", trig.ID), map[string]interface{}{
		"data": map[string]interface{}{"taskId": 42},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ok SuccessResponse
	decodeBody(t, w, &ok)
	assert.Equal(t, "Cement", ok.Data.(map[string]interface{})["materialName"])

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/bom-triggers/%d/test", trig.ID), nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var failed ErrorResponse
	decodeBody(t, w, &failed)
	assert.Contains(t, failed.Message, "taskId")

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/bom-triggers/%d/logs?page_size=1", trig.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page PaginatedResponse
	decodeBody(t, w, &page)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Data, 1)

	w = s.do(t, http.MethodGet, "/api/bom-triggers/logs?success=false", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &page)
	assert.Equal(t, int64(1), page.Total)
}

func TestBomTriggerHandler_FireEvent(t *testing.T) {
	s := newTestServer(t)
	testutil.SeedTrigger(t, s.db, testutil.TriggerSpec{
		Event:        "ON_STATUS_CHANGE",
		Condition:    map[string]interface{}{"status": "done"},
		ActionType:   "NOTIFY",
		ActionConfig: map[string]interface{}{"message": "Task done"},
	})
	testutil.SeedTrigger(t, s.db, testutil.TriggerSpec{Event: "ON_STATUS_CHANGE", ActionType: "SEND_SMS"})

	w := s.do(t, http.MethodPost, "/api/bom-triggers/events", map[string]interface{}{
		"event": "ON_STATUS_CHANGE",
		"data":  map[string]interface{}{"taskId": 1, "status": "done"},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var report struct {
		Selected int `json:"selected"`
		Attempts []struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		} `json:"attempts"`
	}
	decodeBody(t, w, &report)
	assert.Equal(t, 2, report.Selected)
	require.Len(t, report.Attempts, 2)

	var failures []string
	for _, a := range report.Attempts {
		if !a.Success {
			failures = append(failures, a.Error)
		}
	}
	assert.Equal(t, []string{"unknown action type: SEND_SMS"}, failures)
}

func TestBomTriggerHandler_Metadata(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/bom-triggers/meta", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var meta struct {
		Events      []string `json:"events"`
		ActionTypes []string `json:"action_types"`
	}
	decodeBody(t, w, &meta)
	assert.Contains(t, meta.Events, "ON_QUANTITY_CHANGE")
	assert.Contains(t, meta.ActionTypes, "CALCULATE_COST")
}
