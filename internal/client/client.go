// NullGravity - AI Account Management & Protocol Proxy
// Copyright 2026 NullGravity Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nullgravity/nullgravity

// Package client is the frontend-side synchronization layer: a typed REST
// client for the management API, a reconnecting WebSocket (Socket), the
// push-fed log feed, the status poller, and the persisted manual-ordering
// overlay.
package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/nullgravity/nullgravity/internal/models"
)

// Client is a typed REST client for the NullGravity management API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the service at baseURL (e.g.
// "http://127.0.0.1:8046").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-success envelope returned by the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// do performs a request and decodes the envelope's data field into out.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope struct {
		Status string           `json:"status"`
		Data   json.RawMessage  `json:"data"`
		Error  *models.APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Status != "success" {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "UNKNOWN", Message: "request failed"}
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// Health fetches /api/health.
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAccounts fetches all accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var out struct {
		Total    int              `json:"total"`
		Accounts []models.Account `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// CreateAccount creates an account.
func (c *Client) CreateAccount(ctx context.Context, req *models.AccountCreate) (*models.Account, error) {
	out := &models.Account{}
	if err := c.do(ctx, http.MethodPost, "/api/accounts", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAccount applies a partial update.
func (c *Client) UpdateAccount(ctx context.Context, id string, req *models.AccountUpdate) (*models.Account, error) {
	out := &models.Account{}
	if err := c.do(ctx, http.MethodPatch, "/api/accounts/"+id, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAccount removes an account.
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/accounts/"+id, nil, nil)
}

// RequestLogs fetches one page of management request logs.
func (c *Client) RequestLogs(ctx context.Context, page, pageSize int, search string) (*models.RequestLogPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if search != "" {
		q.Set("search", search)
	}
	out := &models.RequestLogPage{}
	if err := c.do(ctx, http.MethodGet, "/api/logs?"+q.Encode(), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMappings fetches the model mappings in priority order.
func (c *Client) ListMappings(ctx context.Context) ([]models.ModelMapping, error) {
	var out []models.ModelMapping
	if err := c.do(ctx, http.MethodGet, "/api/model-mappings", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReorderMappings submits a full new priority ordering.
func (c *Client) ReorderMappings(ctx context.Context, req *models.ReorderRequest) ([]models.ModelMapping, error) {
	var out []models.ModelMapping
	if err := c.do(ctx, http.MethodPut, "/api/model-mappings/reorder", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListTokens fetches the API tokens.
func (c *Client) ListTokens(ctx context.Context) ([]models.APIToken, error) {
	var out []models.APIToken
	if err := c.do(ctx, http.MethodGet, "/api/api-tokens", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Settings fetches the merged settings map.
func (c *Client) Settings(ctx context.Context) (map[string]string, error) {
	var out models.SettingsResponse
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, &out); err != nil {
		return nil, err
	}
	return out.Settings, nil
}

// UpdateSettings submits a settings batch.
func (c *Client) UpdateSettings(ctx context.Context, settings map[string]string) (map[string]string, error) {
	req := map[string]interface{}{"settings": settings}
	var out models.SettingsResponse
	if err := c.do(ctx, http.MethodPut, "/api/settings", req, &out); err != nil {
		return nil, err
	}
	return out.Settings, nil
}

// DashboardStats fetches the aggregated dashboard snapshot.
func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	out := &models.DashboardStats{}
	if err := c.do(ctx, http.MethodGet, "/api/dashboard/stats", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProxyLogs fetches a window of the protocol proxy log ring buffer.
func (c *Client) ProxyLogs(ctx context.Context, limit, offset int) (*models.ProxyLogPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	out := &models.ProxyLogPage{}
	if err := c.do(ctx, http.MethodGet, "/api/api-proxy/logs?"+q.Encode(), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}
