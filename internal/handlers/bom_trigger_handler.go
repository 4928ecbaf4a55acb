package handlers

import (
	"errors"
	"net/http"

	"bomflow/internal/apperrors"
	"bomflow/internal/automation"
	"bomflow/internal/repository"
	"bomflow/internal/services"
	"bomflow/pkg/utils"

	"github.com/gin-gonic/gin"
)

// BomTriggerHandler BOM 触发器管理接口
type BomTriggerHandler struct {
	service *services.BomTriggerService
}

func NewBomTriggerHandler(service *services.BomTriggerService) *BomTriggerHandler {
	return &BomTriggerHandler{service: service}
}

// RegisterRoutes 挂载到 /api/bom-triggers
func (h *BomTriggerHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/bom-triggers")
	g.GET("", h.ListTriggers)
	g.POST("", h.CreateTrigger)
	g.GET("/meta", h.Metadata)
	g.GET("/logs", h.ListLogs)
	g.POST("/events", h.FireEvent)
	g.GET("/:id", h.GetTrigger)
	g.PUT("/:id", h.UpdateTrigger)
	g.PATCH("/:id/toggle", h.ToggleTrigger)
	g.DELETE("/:id", h.DeleteTrigger)
	g.POST("/:id/test", h.TestTrigger)
	g.GET("/:id/logs", h.ListTriggerLogs)
}

// FireEventRequest 手动触发事件
type FireEventRequest struct {
	Event string               `json:"event" binding:"required"`
	Data  automation.EventData `json:"data"`
}

// TestTriggerRequest 手动执行触发器的输入
type TestTriggerRequest struct {
	Data automation.EventData `json:"data"`
}

// ListTriggers 获取触发器列表
func (h *BomTriggerHandler) ListTriggers(c *gin.Context) {
	triggers, err := h.service.ListTriggers(c.Request.Context(), services.TriggerListQuery{
		IsActive:     utils.ParseBool(c.Query("is_active")),
		TriggerEvent: c.Query("trigger_event"),
	})
	if err != nil {
		respondError(c, err, "Failed to list triggers")
		return
	}
	c.JSON(http.StatusOK, triggers)
}

// GetTrigger 按 ID 或 UUID 获取触发器
func (h *BomTriggerHandler) GetTrigger(c *gin.Context) {
	trigger, err := h.service.GetTrigger(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get trigger")
		return
	}
	c.JSON(http.StatusOK, trigger)
}

// CreateTrigger 创建触发器
func (h *BomTriggerHandler) CreateTrigger(c *gin.Context) {
	var req services.BomTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	trigger, err := h.service.CreateTrigger(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create trigger")
		return
	}
	c.JSON(http.StatusCreated, trigger)
}

// UpdateTrigger 部分更新触发器
func (h *BomTriggerHandler) UpdateTrigger(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req services.BomTriggerUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	trigger, err := h.service.UpdateTrigger(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to update trigger")
		return
	}
	c.JSON(http.StatusOK, trigger)
}

// ToggleTrigger 切换启用状态
func (h *BomTriggerHandler) ToggleTrigger(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	trigger, err := h.service.ToggleTrigger(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to toggle trigger")
		return
	}
	c.JSON(http.StatusOK, trigger)
}

// DeleteTrigger 删除触发器，?hard=true 时物理删除
func (h *BomTriggerHandler) DeleteTrigger(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	hard := false
	if v := utils.ParseBool(c.Query("hard")); v != nil {
		hard = *v
	}
	if err := h.service.DeleteTrigger(c.Request.Context(), id, hard); err != nil {
		respondError(c, err, "Failed to delete trigger")
		return
	}
	msg := "Trigger deactivated"
	if hard {
		msg = "Trigger deleted"
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: msg})
}

// TestTrigger 用给定数据执行一次触发器
func (h *BomTriggerHandler) TestTrigger(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req TestTriggerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	result, err := h.service.TestTrigger(c.Request.Context(), id, req.Data)
	if err != nil {
		if errors.Is(err, apperrors.ErrTriggerNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Trigger not found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "Trigger execution failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Trigger executed", Data: result})
}

// ListLogs 查询执行记录
func (h *BomTriggerHandler) ListLogs(c *gin.Context) {
	filter := logFilterFromQuery(c)
	if v, ok := utils.ParseID(c.Query("trigger_id")); ok {
		filter.TriggerID = v
	}
	h.respondLogs(c, filter)
}

// ListTriggerLogs 查询单个触发器的执行记录
func (h *BomTriggerHandler) ListTriggerLogs(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	filter := logFilterFromQuery(c)
	filter.TriggerID = id
	h.respondLogs(c, filter)
}

func (h *BomTriggerHandler) respondLogs(c *gin.Context, filter repository.TriggerLogFilter) {
	logs, total, err := h.service.ListLogs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "Failed to list trigger logs")
		return
	}
	c.JSON(http.StatusOK, newPaginatedResponse(logs, total, filter.Page, filter.PageSize))
}

// FireEvent 触发事件；触发器失败不影响响应状态
func (h *BomTriggerHandler) FireEvent(c *gin.Context) {
	var req FireEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	report := h.service.FireEvent(c.Request.Context(), req.Event, req.Data)
	if report.Err != nil && errors.Is(report.Err, apperrors.ErrUnknownEvent) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown event", Message: report.Err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, report)
}

// Metadata 返回事件、动作类型和默认配置
func (h *BomTriggerHandler) Metadata(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Metadata())
}

func logFilterFromQuery(c *gin.Context) repository.TriggerLogFilter {
	page, size := utils.ParsePage(c.Query("page"), c.Query("page_size"), 20, 200)
	filter := repository.TriggerLogFilter{
		Success:  utils.ParseBool(c.Query("success")),
		Page:     page,
		PageSize: size,
	}
	if v, ok := utils.ParseID(c.Query("task_id")); ok {
		filter.TaskID = v
	}
	return filter
}
