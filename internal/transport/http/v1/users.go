package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vmont3/veramkt-sub001/internal/service"
)

// GetBalance returns a user's current credit balance.
// GET /v1/users/:user_id/balance
func (h *Handler) GetBalance(c echo.Context) error {
	userID := c.Param("user_id")

	balance, err := h.service.GetBalance(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"balance": balance,
	})
}

type addCreditsRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

// AddCredits tops up a user's balance.
// POST /v1/users/:user_id/credits
func (h *Handler) AddCredits(c echo.Context) error {
	userID := c.Param("user_id")

	var req addCreditsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.service.AddCredits(c.Request().Context(), userID, req.Amount, req.Reason); err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	balance, err := h.service.GetBalance(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"balance": balance,
	})
}
