package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/memopay/invoicehub/common"
)

// StartWebhookSubscription posts every paid invoice to the configured
// webhook URL until the context ends.
func (svc *InvoicehubService) StartWebhookSubscription(ctx context.Context) {
	svc.Logger.Infof("Starting webhook subscription with webhook url %s", svc.Config.WebhookUrl)
	events := make(chan Event, 16)
	subID := svc.InvoicePubSub.Subscribe(events)
	defer svc.InvoicePubSub.Unsubscribe(subID)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Name != common.EventInvoicePaid {
				continue
			}
			svc.postToWebhook(ev)
		}
	}
}

func (svc *InvoicehubService) postToWebhook(ev Event) {
	payload := new(bytes.Buffer)
	if err := json.NewEncoder(payload).Encode(ev); err != nil {
		svc.Logger.Error(err)
		return
	}

	resp, err := http.Post(svc.Config.WebhookUrl, "application/json", payload)
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			svc.Logger.Error(err)
		}
		svc.Logger.Errorf("Webhook status code was %d, body: %s", resp.StatusCode, msg)
	}
}
