package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/memopay/invoicehub/lib/responses"
	"github.com/memopay/invoicehub/lib/service"
)

// InvoiceController : Invoice controller struct
type InvoiceController struct {
	svc *service.InvoicehubService
}

func NewInvoiceController(svc *service.InvoicehubService) *InvoiceController {
	return &InvoiceController{svc: svc}
}

type AddInvoiceRequestBody struct {
	Payee string `json:"payee" validate:"required,hexadecimal|startswith=0x"`
}

type AddInvoiceResponseBody struct {
	Invoice service.Invoice `json:"invoice"`
	TxHash  string          `json:"tx_hash"`
}

// AddInvoice godoc
// @Summary      Create an invoice
// @Description  Creates a demo invoice for a payee with a random amount and returns it together with the registry transaction
// @Accept       json
// @Produce      json
// @Tags         Invoice
// @Param        invoice  body      AddInvoiceRequestBody  True  "Create invoice"
// @Success      200      {object}  AddInvoiceResponseBody
// @Failure      400      {object}  responses.ErrorResponse
// @Failure      500      {object}  responses.ErrorResponse
// @Router       /v2/invoices [post]
func (controller *InvoiceController) AddInvoice(c echo.Context) error {
	var body AddInvoiceRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		c.Logger().Errorf("Invalid create invoice request body: %v", err)
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}

	invoice, txHash, err := controller.svc.CreateInvoice(c.Request().Context(), body.Payee)
	if err != nil {
		c.Logger().Errorf("Failed to create invoice: %v", err)
		return c.JSON(responses.LedgerUnavailableError.HttpStatusCode, responses.LedgerUnavailableError)
	}
	return c.JSON(http.StatusOK, &AddInvoiceResponseBody{Invoice: invoice, TxHash: txHash})
}

type GetInvoicesResponseBody struct {
	Invoices []service.Invoice `json:"invoices"`
}

// GetInvoices godoc
// @Summary      Retrieve invoices
// @Description  Returns the refreshed invoice collection, ordered by number
// @Produce      json
// @Tags         Invoice
// @Success      200  {object}  GetInvoicesResponseBody
// @Failure      500  {object}  responses.ErrorResponse
// @Router       /v2/invoices [get]
func (controller *InvoiceController) GetInvoices(c echo.Context) error {
	invoices, err := controller.svc.ListInvoices(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Failed to list invoices: %v", err)
		return c.JSON(responses.LedgerUnavailableError.HttpStatusCode, responses.LedgerUnavailableError)
	}
	return c.JSON(http.StatusOK, &GetInvoicesResponseBody{Invoices: invoices})
}

// GetInvoice godoc
// @Summary      Retrieve an invoice
// @Produce      json
// @Tags         Invoice
// @Param        number  path      int  true  "Invoice number"
// @Success      200     {object}  service.Invoice
// @Failure      404     {object}  responses.ErrorResponse
// @Router       /v2/invoices/{number} [get]
func (controller *InvoiceController) GetInvoice(c echo.Context) error {
	number, err := strconv.ParseUint(c.Param("number"), 10, 64)
	if err != nil || number == 0 {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	invoice, err := controller.svc.GetInvoice(c.Request().Context(), number)
	if err != nil {
		if errors.Is(err, service.ErrInvoiceNotFound) {
			return c.JSON(responses.InvoiceNotFoundError.HttpStatusCode, responses.InvoiceNotFoundError)
		}
		c.Logger().Errorf("Failed to get invoice %d: %v", number, err)
		return c.JSON(responses.LedgerUnavailableError.HttpStatusCode, responses.LedgerUnavailableError)
	}
	return c.JSON(http.StatusOK, &invoice)
}
