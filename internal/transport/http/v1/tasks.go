package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetTask retrieves a task by ID.
// GET /v1/tasks/:task_id
func (h *Handler) GetTask(c echo.Context) error {
	taskID := c.Param("task_id")

	task, err := h.service.GetTask(c.Request().Context(), taskID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if task == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "task not found"})
	}

	return c.JSON(http.StatusOK, task)
}

type emergencyPauseRequest struct {
	PlanID string `json:"plan_id,omitempty"`
}

// EmergencyPause bulk-pauses active tasks.
// POST /v1/admin/emergency-pause
func (h *Handler) EmergencyPause(c echo.Context) error {
	var req emergencyPauseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	paused, err := h.service.EmergencyPause(c.Request().Context(), req.PlanID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"paused": paused,
	})
}
