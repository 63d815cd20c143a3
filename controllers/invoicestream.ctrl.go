package controllers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/memopay/invoicehub/common"
	"github.com/memopay/invoicehub/lib/service"
)

type InvoiceStreamController struct {
	svc *service.InvoicehubService
}

func NewInvoiceStreamController(svc *service.InvoicehubService) *InvoiceStreamController {
	return &InvoiceStreamController{svc: svc}
}

// StreamInvoices pushes invoice-state deltas to the client over a websocket.
// New connections receive a full snapshot first so their view doesn't start
// empty.
func (controller *InvoiceStreamController) StreamInvoices(c echo.Context) error {
	events := make(chan service.Event, 16)
	subID := controller.svc.InvoicePubSub.Subscribe(events)

	upgrader := websocket.Upgrader{}
	upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		controller.svc.InvoicePubSub.Unsubscribe(subID)
		return err
	}
	defer ws.Close()

	//start listening for close messages
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	//push-on-connect snapshot
	err = ws.WriteJSON(&service.Event{
		Name:    common.EventInvoicesSnapshot,
		Payload: controller.svc.Projection.All(),
	})
	if err != nil {
		controller.svc.Logger.Error(err)
		controller.svc.InvoicePubSub.Unsubscribe(subID)
		return err
	}
SocketLoop:
	for {
		select {
		case <-done:
			break SocketLoop
		case <-ticker.C:
			if err := ws.WriteJSON(&service.Event{Name: common.EventKeepalive}); err != nil {
				controller.svc.Logger.Error(err)
				break SocketLoop
			}
		case ev, ok := <-events:
			if !ok {
				break SocketLoop
			}
			if err := ws.WriteJSON(&ev); err != nil {
				controller.svc.Logger.Error(err)
				break SocketLoop
			}
		}
	}
	controller.svc.InvoicePubSub.Unsubscribe(subID)
	return nil
}
