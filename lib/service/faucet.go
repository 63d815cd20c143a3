package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// RequestFunds proxies a test-funding request to the configured faucet.
func (svc *InvoicehubService) RequestFunds(ctx context.Context, address string) error {
	if svc.Config.FaucetUrl == "" {
		return fmt.Errorf("no faucet configured")
	}
	payload := new(bytes.Buffer)
	if err := json.NewEncoder(payload).Encode(map[string]string{"address": address}); err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, svc.Config.FaucetUrl, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("faucet returned status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
