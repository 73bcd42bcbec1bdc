// Package mimir is the HTTP client for the Prometheus-compatible
// time-series store holding the cluster cost-allocation metrics.
package mimir

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	rangeQueryPath   = "/api/v1/query_range"
	instantQueryPath = "/api/v1/query"

	scopeOrgIDHeader = "X-Scope-OrgID"

	defaultTimeout = 30 * time.Second
)

// Client queries one Mimir tenant. The tenant scope is fixed at
// construction and applied to a fresh header set on every request, so a
// Client is safe to share between goroutines and concurrent tasks each
// build their own.
type Client struct {
	endpoint string
	orgID    string
	http     *http.Client
	logger   zerolog.Logger
}

// NewClient builds a tenant-scoped client for the given Mimir endpoint.
func NewClient(endpoint, orgID string, logger zerolog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		orgID:    orgID,
		http:     &http.Client{Timeout: defaultTimeout},
		logger:   logger,
	}
}

// envelope is the Prometheus HTTP API response wrapper.
type envelope struct {
	Status    string `json:"status"`
	ErrorType string `json:"errorType"`
	Error     string `json:"error"`
	Data      struct {
		ResultType string       `json:"resultType"`
		Result     []TimeSeries `json:"result"`
	} `json:"data"`
}

// RangeQuery evaluates query over [startUnix, endUnix] at the given step
// and returns the resulting matrix. Transport failures and non-2xx
// responses are errors, never partial results.
func (c *Client) RangeQuery(ctx context.Context, query string, startUnix, endUnix int64, step string) ([]TimeSeries, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start", strconv.FormatInt(startUnix, 10))
	params.Set("end", strconv.FormatInt(endUnix, 10))
	params.Set("step", step)

	env, err := c.get(ctx, rangeQueryPath, params)
	if err != nil {
		return nil, err
	}
	return env.Data.Result, nil
}

// InstantQuery evaluates query at the current instant and returns the
// label set of the first resulting series as cluster metadata.
func (c *Client) InstantQuery(ctx context.Context, query string) (ClusterInfo, error) {
	params := url.Values{}
	params.Set("query", query)

	env, err := c.get(ctx, instantQueryPath, params)
	if err != nil {
		return ClusterInfo{}, err
	}
	if len(env.Data.Result) == 0 {
		return ClusterInfo{}, fmt.Errorf("instant query %q returned no series", query)
	}
	return ClusterInfo{Labels: env.Data.Result[0].Labels}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*envelope, error) {
	u := c.endpoint + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", path, err)
	}
	// Headers are built per request; the tenant scope is never shared
	// mutable state between calls.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(scopeOrgIDHeader, c.orgID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("querying %s: unexpected status %d: %s", path, resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", path, err)
	}
	if env.Status != "success" {
		return nil, fmt.Errorf("querying %s: %s: %s", path, env.ErrorType, env.Error)
	}

	c.logger.Debug().
		Str("path", path).
		Int("series", len(env.Data.Result)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("metrics query completed")

	return &env, nil
}
