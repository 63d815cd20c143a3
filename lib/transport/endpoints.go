package transport

import (
	"github.com/labstack/echo/v4"

	"github.com/memopay/invoicehub/controllers"
	"github.com/memopay/invoicehub/lib/service"
)

func RegisterEndpoints(svc *service.InvoicehubService, e *echo.Echo, strictRateLimitMiddleware echo.MiddlewareFunc, adminMw echo.MiddlewareFunc, logMw echo.MiddlewareFunc) {
	invoiceCtrl := controllers.NewInvoiceController(svc)
	markPaidCtrl := controllers.NewMarkPaidController(svc)
	refreshCtrl := controllers.NewRefreshController(svc)
	transfersCtrl := controllers.NewTransfersController(svc)
	streamCtrl := controllers.NewInvoiceStreamController(svc)
	qrCtrl := controllers.NewQRController(svc)
	infoCtrl := controllers.NewGetInfoController(svc)

	cacheClient := CreateCacheClient()

	e.POST("/v2/invoices", invoiceCtrl.AddInvoice, strictRateLimitMiddleware, logMw)
	e.GET("/v2/invoices", invoiceCtrl.GetInvoices, logMw)
	e.GET("/v2/invoices/:number", invoiceCtrl.GetInvoice, logMw)
	e.GET("/v2/invoices/:number/qr", qrCtrl.InvoiceQR, logMw)
	e.POST("/v2/invoices/:number/markpaid", markPaidCtrl.MarkPaid, strictRateLimitMiddleware, logMw)
	// backfill is expensive; gate it behind the admin token when configured
	e.POST("/v2/refresh", refreshCtrl.Refresh, strictRateLimitMiddleware, adminMw, logMw)
	e.GET("/v2/transfers", transfersCtrl.GetTransfers, cacheClient.Middleware(), logMw)
	e.GET("/v2/stream", streamCtrl.StreamInvoices)
	e.GET("/v2/info", infoCtrl.GetInfo, logMw)

	if svc.Config.FaucetUrl != "" {
		faucetCtrl := controllers.NewFaucetController(svc)
		e.POST("/v2/faucet", faucetCtrl.Fund, strictRateLimitMiddleware, logMw)
	}
}
