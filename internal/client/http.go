package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/orcafacil/internal/models"
	"github.com/dmitrijs2005/orcafacil/internal/timex"
)

const (
	apiKeyHeader = "x-api-key"
	// responses larger than this are rejected
	maxResponseBytes = 32 << 20
)

type HTTPOptions struct {
	BaseURL     string
	APIKey      string
	AccessToken string
	// HTTPClient defaults to a client without its own timeout; deadlines come
	// from the caller's context.
	HTTPClient *http.Client
}

// HTTPClient implements Client over the JSON endpoints of the sync API.
type HTTPClient struct {
	base        *url.URL
	apiKey      string
	accessToken string
	hc          *http.Client
}

func NewHTTPClient(opts HTTPOptions) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote url %q: %w", opts.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote url %q: scheme must be http or https", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &HTTPClient{base: base, apiKey: opts.APIKey, accessToken: opts.AccessToken, hc: hc}, nil
}

func (c *HTTPClient) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	return checkStatus(resp)
}

func (c *HTTPClient) Push(ctx context.Context, batch *models.Batch) error {
	body, err := json.Marshal(encodeBatch(batch))
	if err != nil {
		return fmt.Errorf("failed to encode push batch: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/sync/push", nil, body)
	if err != nil {
		return err
	}
	defer drain(resp)
	return checkStatus(resp)
}

func (c *HTTPClient) Pull(ctx context.Context, ownerID string, since time.Time) (*models.Batch, error) {
	q := url.Values{}
	q.Set("owner_id", ownerID)
	q.Set("since", timex.FormatISO(since))

	resp, err := c.do(ctx, http.MethodGet, "/sync/pull", q, nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var w wireBatch
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return decodeBatch(w, ownerID), nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, code)
	case code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrBadResponse, code, strings.TrimSpace(string(msg)))
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	_ = resp.Body.Close()
}
