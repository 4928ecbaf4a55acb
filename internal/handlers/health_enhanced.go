package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HubStatus 通知中心状态来源
type HubStatus interface {
	ClientCount() int
}

// EnhancedHealthHandler 健康检查处理器
type EnhancedHealthHandler struct {
	db      *gorm.DB
	hub     HubStatus
	version string
	logger  *logrus.Logger
}

// NewEnhancedHealthHandler 创建健康检查处理器；hub 可为 nil
func NewEnhancedHealthHandler(db *gorm.DB, hub HubStatus, version string) *EnhancedHealthHandler {
	return &EnhancedHealthHandler{
		db:      db,
		hub:     hub,
		version: version,
		logger:  logrus.StandardLogger(),
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]ServiceInfo `json:"services"`
	System    SystemInfo             `json:"system"`
}

// ServiceInfo 服务信息
type ServiceInfo struct {
	Status  string      `json:"status"`
	Latency string      `json:"latency,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// SystemInfo 系统信息
type SystemInfo struct {
	Uptime    string `json:"uptime"`
	GoVersion string `json:"go_version"`
}

var startTime = time.Now()

// Health 健康检查端点
func (h *EnhancedHealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now(),
		Services:  make(map[string]ServiceInfo),
		System: SystemInfo{
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			GoVersion: runtime.Version(),
		},
	}

	// 数据库不可用时整体不可用
	if !h.checkDatabase(ctx, &response) {
		response.Status = "unhealthy"
	}
	h.checkNotifications(&response)

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// Ready 就绪检查端点，只检查数据库
func (h *EnhancedHealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	var response HealthResponse
	response.Services = make(map[string]ServiceInfo)
	ready := h.checkDatabase(ctx, &response)

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, gin.H{
		"ready":     ready,
		"timestamp": time.Now(),
		"services":  response.Services,
	})
}

// checkDatabase 执行 Ping 检查数据库连接
func (h *EnhancedHealthHandler) checkDatabase(ctx context.Context, response *HealthResponse) bool {
	start := time.Now()
	info := ServiceInfo{Status: "healthy"}
	healthy := true

	if h.db == nil {
		info.Status, info.Error, healthy = "unhealthy", "database connection not initialized", false
	} else if sqlDB, err := h.db.DB(); err != nil {
		info.Status, info.Error, healthy = "unhealthy", err.Error(), false
	} else if err := sqlDB.PingContext(ctx); err != nil {
		info.Status, info.Error, healthy = "unhealthy", err.Error(), false
	} else {
		info.Details = map[string]interface{}{
			"driver":           h.db.Dialector.Name(),
			"open_connections": sqlDB.Stats().OpenConnections,
		}
	}
	info.Latency = time.Since(start).String()
	if !healthy {
		h.logger.Warnf("health: database check failed: %s", info.Error)
	}
	response.Services["database"] = info
	return healthy
}

// checkNotifications 通知中心不影响整体健康状态
func (h *EnhancedHealthHandler) checkNotifications(response *HealthResponse) {
	if h.hub == nil {
		response.Services["notifications"] = ServiceInfo{Status: "disabled"}
		return
	}
	response.Services["notifications"] = ServiceInfo{
		Status:  "healthy",
		Details: map[string]interface{}{"clients": h.hub.ClientCount()},
	}
}
