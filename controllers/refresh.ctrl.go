package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/memopay/invoicehub/lib/responses"
	"github.com/memopay/invoicehub/lib/service"
)

type RefreshController struct {
	svc *service.InvoicehubService
}

func NewRefreshController(svc *service.InvoicehubService) *RefreshController {
	return &RefreshController{svc: svc}
}

type RefreshResponseBody struct {
	Marked int `json:"marked"`
}

// Refresh triggers a backfill pass over the lookback window. The lookback
// query parameter overrides the configured default and is clamped to the
// hard maximum.
func (controller *RefreshController) Refresh(c echo.Context) error {
	var lookback uint64
	if raw := c.QueryParam("lookback"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
		}
		lookback = parsed
	}
	marked, err := controller.svc.Backfill(c.Request().Context(), lookback)
	if err != nil {
		c.Logger().Errorf("Backfill pass failed: %v", err)
		return c.JSON(responses.LedgerUnavailableError.HttpStatusCode, responses.LedgerUnavailableError)
	}
	return c.JSON(http.StatusOK, &RefreshResponseBody{Marked: marked})
}
