package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memopay/invoicehub/lib/responses"
	"github.com/memopay/invoicehub/lib/service"
)

type FaucetController struct {
	svc *service.InvoicehubService
}

func NewFaucetController(svc *service.InvoicehubService) *FaucetController {
	return &FaucetController{svc: svc}
}

type FaucetRequestBody struct {
	Address string `json:"address" validate:"required"`
}

// Fund proxies a test-funding request to the configured faucet.
func (controller *FaucetController) Fund(c echo.Context) error {
	var body FaucetRequestBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := c.Validate(&body); err != nil {
		return c.JSON(http.StatusBadRequest, responses.BadArgumentsError)
	}
	if err := controller.svc.RequestFunds(c.Request().Context(), body.Address); err != nil {
		c.Logger().Errorf("Faucet request for %s failed: %v", body.Address, err)
		return c.JSON(responses.FaucetUnavailableError.HttpStatusCode, responses.FaucetUnavailableError)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
