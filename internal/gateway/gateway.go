// Package gateway is the single path for outbound storefront calls. It
// attaches the bearer token when one is stored and hands the raw status and
// body back to callers: a non-2xx response is data, not an error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Skotchmaster/shopfront/internal/apierror"
	"github.com/Skotchmaster/shopfront/internal/credstore"
	"github.com/Skotchmaster/shopfront/internal/logging"
)

type Client struct {
	baseURL    string
	creds      *credstore.Store
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL string, creds *credstore.Store, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
		log:     log,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Response carries whatever the server said, 2xx or not.
type Response struct {
	Status int
	Body   []byte
}

func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Err classifies a non-2xx response; nil for 2xx.
func (r *Response) Err() error {
	return apierror.FromStatus(r.Status, r.Body)
}

// Do issues one request. body, when non-nil, is sent as JSON. withAuth
// attaches the stored bearer token if there is one; an absent token still
// sends the request and lets the server answer 401. The returned error is
// non-nil only when no response was obtained at all.
func (c *Client) Do(ctx context.Context, method, path string, body any, withAuth bool) (*Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withAuth {
		if access := c.creds.Access(); access != "" {
			req.Header.Set("Authorization", "Bearer "+access)
		}
	}

	log := logging.FromContext(ctx, c.log)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("request failed", "method", method, "path", path, "error", err)
		return nil, apierror.Network(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierror.Network(err)
	}

	log.Debug("request done", "method", method, "path", path, "status", resp.StatusCode)
	return &Response{Status: resp.StatusCode, Body: data}, nil
}
