package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memopay/invoicehub/lib/responses"
	"github.com/memopay/invoicehub/lib/service"
)

type GetInfoController struct {
	svc *service.InvoicehubService
}

func NewGetInfoController(svc *service.InvoicehubService) *GetInfoController {
	return &GetInfoController{svc: svc}
}

type GetInfoResponseBody struct {
	MerchantAddress string `json:"merchant_address"`
	TokenAddress    string `json:"token_address"`
	RegistryAddress string `json:"registry_address"`
	ChainHead       uint64 `json:"chain_head"`
	TrackedInvoices int    `json:"tracked_invoices"`
}

func (controller *GetInfoController) GetInfo(c echo.Context) error {
	head, err := controller.svc.Ledger.BlockNumber(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("Failed to read chain head: %v", err)
		return c.JSON(responses.LedgerUnavailableError.HttpStatusCode, responses.LedgerUnavailableError)
	}
	return c.JSON(http.StatusOK, &GetInfoResponseBody{
		MerchantAddress: controller.svc.MerchantAddress(),
		TokenAddress:    controller.svc.Config.TokenAddress,
		RegistryAddress: controller.svc.Config.RegistryAddress,
		ChainHead:       head,
		TrackedInvoices: controller.svc.Projection.Len(),
	})
}
