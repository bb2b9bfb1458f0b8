package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SMSProvider posts messages to an SMS relay over HTTP.
type SMSProvider struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewSMSProvider(name, baseURL, apiKey string, timeout time.Duration) *SMSProvider {
	return &SMSProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *SMSProvider) Name() string {
	return p.name
}

func (p *SMSProvider) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(map[string]string{
		"recipient": msg.BuyerID,
		"body":      msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshalling sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("sms relay returned %d", resp.StatusCode)
	}
	return nil
}
