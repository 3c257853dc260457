package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v18.0"
	defaultHTTPTimeout  = 10 * time.Second
)

// CloudClient sends messages through the WhatsApp Cloud API.
type CloudClient struct {
	accessToken   string
	phoneNumberID string
	graphAPIBase  string
	httpClient    *http.Client
}

// CloudOption customises a CloudClient.
type CloudOption func(*CloudClient)

// WithGraphAPIBase overrides the Graph API base URL.
func WithGraphAPIBase(base string) CloudOption {
	return func(c *CloudClient) {
		if base != "" {
			c.graphAPIBase = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient replaces the default client with its 10s timeout.
func WithHTTPClient(client *http.Client) CloudOption {
	return func(c *CloudClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewCloudClient builds a Cloud API client for one business phone number.
func NewCloudClient(accessToken, phoneNumberID string, opts ...CloudOption) *CloudClient {
	c := &CloudClient{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		graphAPIBase:  defaultGraphAPIBase,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendText sends a plain text message.
func (c *CloudClient) SendText(ctx context.Context, to, text string) error {
	if c.accessToken == "" || c.phoneNumberID == "" {
		return fmt.Errorf("whatsapp: cloud client not configured")
	}
	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: text},
	})
	if err != nil {
		return fmt.Errorf("whatsapp: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.graphAPIBase, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("whatsapp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("whatsapp: read response: %w", err)
	}
	var out sendResponse
	if err := json.Unmarshal(body, &out); err == nil && out.Error != nil {
		return fmt.Errorf("whatsapp: API error %d: %s", out.Error.Code, out.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp: unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
