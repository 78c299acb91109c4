// Package api is a typed client for the camp exchange backend. The backend
// owns every state-changing operation; this client only shapes requests,
// attaches bearer credentials, and maps failure statuses onto error codes.
package api

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

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	oerrors "github.com/campex/campex/pkg/errors"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     logr.Logger
	UserAgent  string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logr.Logger
	userAgent  string
}

func NewClient(config Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api client: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("api client: invalid base URL: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = "campex"
	}

	logger := config.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// MyPermissions asks the RBAC endpoint who the bearer of token is.
func (c *Client) MyPermissions(ctx context.Context, token string) (PermissionsResponse, error) {
	var out PermissionsResponse
	err := c.do(ctx, http.MethodGet, "/api/rbac/my-permissions", token, nil, &out)
	return out, err
}

func (c *Client) AdminLogin(ctx context.Context, input AdminLoginInput) (AdminLoginResponse, error) {
	var out AdminLoginResponse
	err := c.do(ctx, http.MethodPost, "/api/admin/login", "", input, &out)
	return out, err
}

func (c *Client) AdminStats(ctx context.Context, token string) (AdminStats, error) {
	var out AdminStats
	err := c.do(ctx, http.MethodGet, "/api/admin/stats", token, nil, &out)
	return out, err
}

func (c *Client) Price(ctx context.Context, token string, symbol string) (PriceQuote, error) {
	var out PriceQuote
	err := c.do(ctx, http.MethodGet, "/api/price/"+url.PathEscape(symbol), token, nil, &out)
	return out, err
}

func (c *Client) PriceHistory(ctx context.Context, token string, symbol string) ([]PricePoint, error) {
	var out []PricePoint
	err := c.do(ctx, http.MethodGet, "/api/price/"+url.PathEscape(symbol)+"/history", token, nil, &out)
	return out, err
}

func (c *Client) PlaceOrder(ctx context.Context, token string, input OrderInput) (Order, error) {
	var out Order
	err := c.do(ctx, http.MethodPost, "/api/web/stock/order", token, input, &out)
	return out, err
}

func (c *Client) CancelOrder(ctx context.Context, token string, orderID string) error {
	return c.do(ctx, http.MethodDelete, "/api/web/stock/orders/"+url.PathEscape(orderID), token, nil, nil)
}

func (c *Client) Transfer(ctx context.Context, token string, input TransferInput) (TransferResult, error) {
	var out TransferResult
	err := c.do(ctx, http.MethodPost, "/api/web/transfer", token, input, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, token string) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	err := c.do(ctx, http.MethodGet, "/api/web/leaderboard", token, nil, &out)
	return out, err
}

func (c *Client) Announcements(ctx context.Context, token string) ([]Announcement, error) {
	var out []Announcement
	err := c.do(ctx, http.MethodGet, "/api/admin/announcements", token, nil, &out)
	return out, err
}

func (c *Client) CreateAnnouncement(ctx context.Context, token string, input AnnouncementInput) (Announcement, error) {
	var out Announcement
	err := c.do(ctx, http.MethodPost, "/api/admin/announcements", token, input, &out)
	return out, err
}

func (c *Client) DeleteAnnouncement(ctx context.Context, token string, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/announcements/"+url.PathEscape(id), token, nil, nil)
}

func (c *Client) MarketConfig(ctx context.Context, token string) (MarketConfig, error) {
	var out MarketConfig
	err := c.do(ctx, http.MethodGet, "/api/admin/market/config", token, nil, &out)
	return out, err
}

func (c *Client) UpdateMarketConfig(ctx context.Context, token string, config MarketConfig) (MarketConfig, error) {
	var out MarketConfig
	err := c.do(ctx, http.MethodPut, "/api/admin/market/config", token, config, &out)
	return out, err
}

func (c *Client) Users(ctx context.Context, token string) ([]User, error) {
	var out []User
	err := c.do(ctx, http.MethodGet, "/api/admin/users", token, nil, &out)
	return out, err
}

func (c *Client) AdjustPoints(ctx context.Context, token string, userID string, input AdjustPointsInput) (User, error) {
	var out User
	err := c.do(ctx, http.MethodPost, "/api/admin/users/"+url.PathEscape(userID)+"/points", token, input, &out)
	return out, err
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method string, path string, token string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return oerrors.Wrap(oerrors.CodeUnknown, "failed to encode request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return oerrors.Wrap(oerrors.CodeUnknown, "failed to build request", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return oerrors.Wrap(oerrors.CodeAPIUnavailable, fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(method, path, resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return oerrors.Wrap(oerrors.CodeUnknown, fmt.Sprintf("failed to decode %s %s response", method, path), err)
	}
	return nil
}

func (c *Client) statusError(method string, path string, resp *http.Response) error {
	message := fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode)

	var parsed errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&parsed); err == nil {
		if parsed.Error != "" {
			message = parsed.Error
		} else if parsed.Message != "" {
			message = parsed.Message
		}
	}

	c.logger.V(1).Info("api request failed", "method", method, "path", path, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return oerrors.Wrap(oerrors.CodeUnauthenticated, message, nil)
	case resp.StatusCode == http.StatusForbidden:
		return oerrors.Wrap(oerrors.CodePermissionDenied, message, nil)
	case resp.StatusCode == http.StatusNotFound:
		return oerrors.Wrap(oerrors.CodeNotFound, message, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return oerrors.Wrap(oerrors.CodeRateLimited, message, nil)
	case resp.StatusCode >= 500:
		return oerrors.Wrap(oerrors.CodeAPIUnavailable, message, nil)
	default:
		return oerrors.Wrap(oerrors.CodeUnknown, message, nil)
	}
}
