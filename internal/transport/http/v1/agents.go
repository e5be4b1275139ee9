package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vmont3/veramkt-sub001/domain"
	"github.com/vmont3/veramkt-sub001/internal/service"
)

type feedbackRequest struct {
	AgentID   string           `json:"agent_id"`
	Platform  string           `json:"platform"`
	BrandID   string           `json:"brand_id,omitempty"`
	Sentiment domain.Sentiment `json:"sentiment"`
}

// SubmitFeedback applies a feedback event to an agent's health score.
// POST /v1/agents/feedback
func (h *Handler) SubmitFeedback(c echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	result, err := h.service.SubmitFeedback(c.Request().Context(), req.AgentID, req.Platform, req.BrandID, req.Sentiment)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, result)
}

type restoreRequest struct {
	BrandID string `json:"brand_id"`
}

// RestoreAgent resets an agent's trust signal from its latest snapshot.
// POST /v1/agents/:agent_id/restore
func (h *Handler) RestoreAgent(c echo.Context) error {
	agentID := c.Param("agent_id")

	var req restoreRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	snap, err := h.service.RestoreAgent(c.Request().Context(), agentID, req.BrandID)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	resp := map[string]interface{}{
		"agent_id":     agentID,
		"health_score": 100,
	}
	if snap != nil {
		resp["snapshot"] = snap
	}
	return c.JSON(http.StatusOK, resp)
}

type pauseAgentRequest struct {
	Platform string `json:"platform"`
}

// PauseAgent administratively pauses an agent on a platform.
// POST /v1/agents/:agent_id/pause
func (h *Handler) PauseAgent(c echo.Context) error {
	agentID := c.Param("agent_id")

	var req pauseAgentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.service.PauseAgent(c.Request().Context(), agentID, req.Platform); err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"agent_id":     agentID,
		"platform":     req.Platform,
		"health_score": domain.HealthScorePaused,
	})
}
