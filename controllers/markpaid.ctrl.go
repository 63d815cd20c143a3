package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/memopay/invoicehub/lib/responses"
	"github.com/memopay/invoicehub/lib/service"
)

type MarkPaidController struct {
	svc *service.InvoicehubService
}

func NewMarkPaidController(svc *service.InvoicehubService) *MarkPaidController {
	return &MarkPaidController{svc: svc}
}

type MarkPaidRequestBody struct {
	TxHash string `json:"tx_hash" validate:"required"`
}

type MarkPaidResponseBody struct {
	Result  string          `json:"result"`
	Invoice service.Invoice `json:"invoice"`
}

// MarkPaid godoc
// @Summary      Mark an invoice paid
// @Description  Verifies the supplied transaction contains a matching transfer and marks the invoice paid. Already-paid invoices return a no-op result.
// @Accept       json
// @Produce      json
// @Tags         Invoice
// @Param        number   path      int                  true  "Invoice number"
// @Param        payment  body      MarkPaidRequestBody  True  "Settling transaction"
// @Success      200      {object}  MarkPaidResponseBody
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      404      {object}  responses.ErrorResponse
// @Failure      422      {object}  responses.ErrorResponse
// @Router       /v2/invoices/{number}/markpaid [post]
func (controller *MarkPaidController) MarkPaid(c echo.Context) error {
	number, err := strconv.ParseUint(c.Param("number"), 10, 64)
	if err != nil || number == 0 {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	var body MarkPaidRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load mark paid request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid mark paid request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	result, invoice, err := controller.svc.MarkPaidWithTx(c.Request().Context(), number, body.TxHash)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvoiceNotFound):
			return c.JSON(responses.InvoiceNotFoundError.HttpStatusCode, responses.InvoiceNotFoundError)
		case errors.Is(err, service.ErrNoMatchingTransfer):
			return c.JSON(responses.NoMatchingTransferError.HttpStatusCode, responses.NoMatchingTransferError)
		default:
			c.Logger().Errorf("Failed to mark invoice %d paid: %v", number, err)
			return c.JSON(responses.LedgerUnavailableError.HttpStatusCode, responses.LedgerUnavailableError)
		}
	}
	return c.JSON(http.StatusOK, &MarkPaidResponseBody{Result: result, Invoice: invoice})
}
