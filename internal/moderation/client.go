// Package moderation talks to the text moderation endpoint that decides
// whether post descriptions and usernames are publishable.
package moderation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sujalbistaa/allgood/internal/apperr"
)

const serviceName = "moderation"

// maxResponseSize caps the body read from the endpoint.
const maxResponseSize = 64 << 10

// Client posts text to the moderation endpoint.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

func NewClient(url, apiKey string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
	}
}

type checkRequest struct {
	Text string `json:"text"`
}

type checkResponse struct {
	Allowed *bool `json:"allowed"`
}

// CheckText reports whether text is allowed. Transport errors, non-2xx
// responses and bodies without an "allowed" flag are failures, never a
// "disallowed" verdict.
func (c *Client) CheckText(ctx context.Context, text string) (bool, error) {
	payload, err := json.Marshal(checkRequest{Text: text})
	if err != nil {
		return false, apperr.Collaborator(serviceName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return false, apperr.Collaborator(serviceName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, apperr.Collaborator(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return false, apperr.Collaborator(serviceName, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body checkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&body); err != nil {
		return false, apperr.Collaborator(serviceName, fmt.Errorf("decode response: %w", err))
	}
	if body.Allowed == nil {
		return false, apperr.Collaborator(serviceName, fmt.Errorf("response missing allowed flag"))
	}
	return *body.Allowed, nil
}

// AllowAll approves every text. It backs local development when no
// moderation endpoint is configured.
type AllowAll struct{}

func (AllowAll) CheckText(context.Context, string) (bool, error) { return true, nil }
