package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bomflow/internal/automation"
	"bomflow/internal/config"
	"bomflow/internal/repository"
	"bomflow/internal/services"
	"bomflow/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
	reg    *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	reg := prometheus.NewRegistry()
	observer, err := automation.NewPrometheusObserver("bomflow", reg)
	require.NoError(t, err)

	triggers := repository.NewTriggerRepository(db, logger)
	logs := repository.NewTriggerLogRepository(db)
	dispatcher := automation.NewDefaultDispatcher(automation.HandlerDeps{
		Materials: repository.NewMaterialRepository(db),
		Templates: repository.NewBomTemplateRepository(db),
		Notifier:  automation.NotifierFunc(func(context.Context, automation.Notification) error { return nil }),
		Logger:    logger,
	})
	engine := automation.NewEngine(db, triggers, logs, dispatcher, automation.WithLogger(logger), automation.WithObserver(observer))
	svc := services.NewBomTriggerService(triggers, logs, engine, logger)
	tasks := services.NewTaskService(db, repository.NewMaterialRepository(db), engine, logger)

	cfg := config.GetDefaultConfig()
	router := NewRouter(RouterDeps{Config: cfg, DB: db, Triggers: svc, Tasks: tasks, Gatherer: reg, Version: "test"})
	return &testServer{db: db, router: router, reg: reg}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}
