package handlers

import (
	"net/http"

	"bomflow/internal/services"

	"github.com/gin-gonic/gin"
)

// TaskHandler 任务与物料接口，变更会触发 BOM 自动化事件
type TaskHandler struct {
	service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// RegisterRoutes 挂载到 /api/tasks
func (h *TaskHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/tasks")
	g.POST("", h.CreateTask)
	g.GET("/:id", h.GetTask)
	g.PATCH("/:id/status", h.UpdateStatus)
	g.GET("/:id/materials", h.ListMaterials)
	g.POST("/:id/materials", h.AddMaterial)
	r.PATCH("/materials/:id/quantity", h.UpdateQuantity)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req services.TaskCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	task, err := h.service.CreateTask(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err, "Failed to create task")
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	task, err := h.service.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to get task")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	task, err := h.service.UpdateTaskStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err, "Failed to update task status")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ListMaterials(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	materials, err := h.service.ListMaterials(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Failed to list materials")
		return
	}
	c.JSON(http.StatusOK, materials)
}

func (h *TaskHandler) AddMaterial(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req services.MaterialCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	material, err := h.service.AddMaterial(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to add material")
		return
	}
	c.JSON(http.StatusCreated, material)
}

// UpdateQuantity 版本冲突返回 409
func (h *TaskHandler) UpdateQuantity(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req services.QuantityUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	material, err := h.service.UpdateMaterialQuantity(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err, "Failed to update quantity")
		return
	}
	c.JSON(http.StatusOK, material)
}
