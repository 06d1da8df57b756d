package ytmusic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"EchoFM/core/auth"
	"EchoFM/logger"
)

const (
	clientName    = "WEB_REMIX"
	clientVersion = "1.20240101.00.00"
)

// ErrAuthRequired is returned by library operations when no upstream
// credentials are stored.
var ErrAuthRequired = fmt.Errorf("upstream authentication required")

// Client talks to the music catalog API. All requests flow through a
// shared rate limiter so a burst of frontend traffic cannot get the
// account throttled upstream.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      *auth.CredentialStore
	limiter    *rate.Limiter
}

// NewClient creates an API client. creds may hold no credentials yet;
// public operations still work.
func NewClient(baseURL string, creds *auth.CredentialStore, rps float64) *Client {
	if rps <= 0 {
		rps = 4
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Second * 30,
		},
		creds:   creds,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

// SetBaseURL overrides the API base URL.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// IsAuthenticated reports whether upstream credentials are available.
func (c *Client) IsAuthenticated() bool {
	return c.creds != nil && c.creds.IsAuthenticated()
}

func (c *Client) requireAuth() error {
	if !c.IsAuthenticated() {
		return ErrAuthRequired
	}
	return nil
}

// call posts an API request with the shared client context merged into
// the body and returns the decoded response.
func (c *Client) call(ctx context.Context, endpoint string, body map[string]interface{}) (map[string]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"context": map[string]interface{}{
			"client": map[string]interface{}{
				"clientName":    clientName,
				"clientVersion": clientVersion,
				"hl":            "en",
			},
		},
	}
	for k, v := range body {
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	url := fmt.Sprintf("%s/youtubei/v1/%s?prettyPrint=false", c.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")
	if c.creds != nil {
		c.creds.Apply(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Warn("upstream API error",
			logger.String("endpoint", endpoint),
			logger.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("upstream returned status %d for %s: %s", resp.StatusCode, endpoint, slurp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return result, nil
}

// browse is a call to the browse endpoint with an optional continuation.
func (c *Client) browse(ctx context.Context, browseID string, extra map[string]interface{}) (map[string]interface{}, error) {
	body := map[string]interface{}{}
	if browseID != "" {
		body["browseId"] = browseID
	}
	for k, v := range extra {
		body[k] = v
	}
	return c.call(ctx, "browse", body)
}
