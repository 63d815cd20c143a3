package responses

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error          bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

var GeneralServerError = ErrorResponse{
	Error:          true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

var BadArgumentsError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: 400,
}

var BadAuthError = ErrorResponse{
	Error:          true,
	Code:           1,
	Message:        "bad auth",
	HttpStatusCode: 401,
}

var InvoiceNotFoundError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "invoice not found",
	HttpStatusCode: 404,
}

// NoMatchingTransferError is distinct from BadArgumentsError: the request was
// well-formed but the supplied transaction contains no transfer satisfying
// the invoice's payee, memo and merchant-address constraints.
var NoMatchingTransferError = ErrorResponse{
	Error:          true,
	Code:           3,
	Message:        "transaction contains no matching transfer for this invoice",
	HttpStatusCode: 422,
}

var LedgerUnavailableError = ErrorResponse{
	Error:          true,
	Code:           5,
	Message:        "ledger temporarily unavailable. Please try again later",
	HttpStatusCode: 502,
}

var FaucetUnavailableError = ErrorResponse{
	Error:          true,
	Code:           5,
	Message:        "faucet temporarily unavailable. Please try again later",
	HttpStatusCode: 502,
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("RequestID", c.Response().Header().Get(echo.HeaderXRequestID))
			hub.CaptureException(err)
		})
	}
	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, he.Message)
	} else {
		c.JSON(http.StatusInternalServerError, GeneralServerError)
	}
}
