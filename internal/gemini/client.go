package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/growmate-app/growmate/internal/config"
	"github.com/growmate-app/growmate/internal/metrics"
)

// ProviderError is returned when the generateContent call fails or yields
// no usable text. Detail carries whatever the provider exposed, for the
// response's diagnostics field.
type ProviderError struct {
	Detail string
}

func (e *ProviderError) Error() string {
	return "AI provider call failed: " + e.Detail
}

// Client talks to the generativelanguage REST API. One call per request,
// no internal retries; retry policy belongs to callers.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.GeminiConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether a provider API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// GenerateContent issues one generateContent call and extracts the first
// candidate's text. An empty candidate list or text is a *ProviderError.
func (c *Client) GenerateContent(ctx context.Context, model string, req *GenerateRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &ProviderError{Detail: err.Error()}
	}
	defer resp.Body.Close()
	metrics.AIProviderDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &ProviderError{Detail: "reading provider response: " + err.Error()}
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", &ProviderError{Detail: fmt.Sprintf("non-JSON provider response (status %d)", resp.StatusCode)}
	}

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("provider returned status %d", resp.StatusCode)
		if genResp.Error != nil && genResp.Error.Message != "" {
			detail = genResp.Error.Message
		}
		return "", &ProviderError{Detail: detail}
	}

	text := genResp.Text()
	if text == "" {
		return "", &ProviderError{Detail: "provider response contained no text"}
	}
	return text, nil
}
