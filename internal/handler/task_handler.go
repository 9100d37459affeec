package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moolah-app/moolah-api/internal/models"
	"github.com/moolah-app/moolah-api/internal/service"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
	"github.com/moolah-app/moolah-api/pkg/response"
)

// TaskHandler exposes task lifecycle endpoints.
type TaskHandler struct {
	tasks *service.TaskService
}

// NewTaskHandler constructs TaskHandler.
func NewTaskHandler(tasks *service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// List godoc
// @Summary List tasks
// @Tags Tasks
// @Produce json
// @Param status query string false "Filter by status"
// @Param assignedTo query string false "Filter by assigned student"
// @Success 200 {object} response.Envelope
// @Router /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	filter := models.TaskFilter{
		Status:     models.TaskStatus(c.Query("status")),
		AssignedTo: c.Query("assignedTo"),
	}
	tasks, err := h.tasks.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, nil)
}

// ListPending godoc
// @Summary List tasks awaiting review
// @Tags Tasks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tasks/pending [get]
func (h *TaskHandler) ListPending(c *gin.Context) {
	tasks, err := h.tasks.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tasks, nil)
}

// Create godoc
// @Summary Create a task template
// @Tags Tasks
// @Accept json
// @Produce json
// @Param payload body service.CreateTaskRequest true "Task payload"
// @Success 201 {object} response.Envelope
// @Router /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	task, err := h.tasks.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// Assign godoc
// @Summary Copy a task template to one or more students
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body service.AssignTaskRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Router /tasks/{id}/assign [put]
func (h *TaskHandler) Assign(c *gin.Context) {
	var req service.AssignTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	copies, err := h.tasks.Assign(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, copies)
}

// Complete godoc
// @Summary Mark an assigned task as done, moving it to pending review
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id}/complete [put]
func (h *TaskHandler) Complete(c *gin.Context) {
	task, err := h.tasks.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// Review godoc
// @Summary Approve or reject a pending task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body service.ReviewTaskRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /tasks/{id}/approve [put]
func (h *TaskHandler) Review(c *gin.Context) {
	var req service.ReviewTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	task, err := h.tasks.Review(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, task, nil)
}

// Delete godoc
// @Summary Delete a task
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 204
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
