package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vmont3/veramkt-sub001/domain"
)

// EvaluateCampaign runs campaign metrics through the finance guard.
// POST /v1/campaigns/evaluate
func (h *Handler) EvaluateCampaign(c echo.Context) error {
	var metrics domain.CampaignMetrics
	if err := c.Bind(&metrics); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	verdict := h.service.EvaluateCampaign(c.Request().Context(), metrics)
	return c.JSON(http.StatusOK, verdict)
}
