// Package v1 provides HTTP handlers for the orchestrator.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vmont3/veramkt-sub001/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Request/response generation path
	e.POST("/v1/requests", h.ProcessRequest)

	// Task API
	e.GET("/v1/tasks/:task_id", h.GetTask)
	e.POST("/v1/admin/emergency-pause", h.EmergencyPause)

	// Agent health API
	e.POST("/v1/agents/feedback", h.SubmitFeedback)
	e.POST("/v1/agents/:agent_id/restore", h.RestoreAgent)
	e.POST("/v1/agents/:agent_id/pause", h.PauseAgent)

	// Finance guard API
	e.POST("/v1/campaigns/evaluate", h.EvaluateCampaign)

	// Credits API
	e.GET("/v1/users/:user_id/balance", h.GetBalance)
	e.POST("/v1/users/:user_id/credits", h.AddCredits)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
