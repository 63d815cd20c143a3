package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/memopay/invoicehub/lib/responses"
	"github.com/memopay/invoicehub/lib/service"
)

type QRController struct {
	svc *service.InvoicehubService
}

func NewQRController(svc *service.InvoicehubService) *QRController {
	return &QRController{svc: svc}
}

// InvoiceQR renders the invoice's payment URI as a PNG QR code. The URI
// carries everything a wallet needs to settle: token, merchant address,
// amount and the encoded memo.
func (controller *QRController) InvoiceQR(c echo.Context) error {
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

	uri := fmt.Sprintf("memopay:%s?to=%s&amount=%s&memo=%s",
		invoice.Currency, controller.svc.MerchantAddress(), invoice.Amount, invoice.Memo)
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		c.Logger().Errorf("Failed to render QR for invoice %d: %v", number, err)
		return c.JSON(responses.GeneralServerError.HttpStatusCode, responses.GeneralServerError)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}
