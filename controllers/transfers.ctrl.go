package controllers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/memopay/invoicehub/lib/responses"
	"github.com/memopay/invoicehub/lib/service"
)

type TransfersController struct {
	svc *service.InvoicehubService
}

func NewTransfersController(svc *service.InvoicehubService) *TransfersController {
	return &TransfersController{svc: svc}
}

type GetTransfersResponseBody struct {
	Transfers []service.Transfer `json:"transfers"`
}

// GetTransfers godoc
// @Summary      Retrieve recent transfers
// @Description  Returns recent token movements touching an address, newest first, deduplicated by transaction
// @Produce      json
// @Tags         Transfer
// @Param        address   query     string  true   "Address"
// @Param        lookback  query     int     false  "Lookback window in blocks"
// @Success      200       {object}  GetTransfersResponseBody
// @Failure      400       {object}  responses.ErrorResponse
// @Router       /v2/transfers [get]
func (controller *TransfersController) GetTransfers(c echo.Context) error {
	address := c.QueryParam("address")
	if address == "" {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	var lookback uint64
	if raw := c.QueryParam("lookback"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
		}
		lookback = parsed
	}
	transfers, err := controller.svc.ListTransfers(c.Request().Context(), address, lookback)
	if err != nil {
		c.Logger().Errorf("Failed to list transfers for %s: %v", address, err)
		return c.JSON(responses.LedgerUnavailableError.HttpStatusCode, responses.LedgerUnavailableError)
	}
	return c.JSON(http.StatusOK, &GetTransfersResponseBody{Transfers: transfers})
}
