package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrUnavailable wraps every transport or HTTP-level failure talking to the
// remote record API. The sync engine treats it as a retriable network error.
var ErrUnavailable = errors.New("remote store unavailable")

// Client talks to a PostgREST-style record API: per-table upsert-by-id and
// filtered select, scoped to the authenticated owner. All writes are
// idempotent upserts, so resending a batch after a dropped connection is safe.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", apiKey)).
		SetHeader("apikey", apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &Client{http: restyClient, logger: logger}
}

// Ping reports reachability of the remote API; the connectivity monitor uses
// it as its probe.
func (c *Client) Ping(ctx context.Context) bool {
	resp, err := c.http.R().SetContext(ctx).Head("/rest/v1/")
	if err != nil {
		return false
	}
	return resp.StatusCode() < http.StatusInternalServerError
}

func (c *Client) upsert(ctx context.Context, table string, payload any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("on_conflict", "id").
		SetHeader("Prefer", "resolution=merge-duplicates").
		SetBody(payload).
		Post("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", ErrUnavailable, table, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("%w: upsert %s: status %d", ErrUnavailable, table, resp.StatusCode())
	}
	return nil
}

func (c *Client) selectRows(ctx context.Context, table string, params map[string]string, result any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(result).
		Get("/rest/v1/" + table)
	if err != nil {
		return fmt.Errorf("%w: select %s: %v", ErrUnavailable, table, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("%w: select %s: status %d", ErrUnavailable, table, resp.StatusCode())
	}
	return nil
}
