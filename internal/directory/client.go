// Package directory is the client for the platform's account and agent
// registry. The registry owns the accounts; this connector only reads
// them to decide which tenants are eligible for synchronization.
package directory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Agent states as reported by the registry. Only enabled agents with a
// recorded last-activity time take part in task planning.
const (
	AgentStateEnabled  = "ENABLED"
	AgentStateDisabled = "DISABLED"
)

// AgentOptions is the free-form option block attached to an agent.
type AgentOptions struct {
	ClusterName string `json:"cluster_name"`
}

// Agent is an in-cluster collector registered for a service account.
type Agent struct {
	AgentID          string       `json:"agent_id"`
	Name             string       `json:"name"`
	ServiceAccountID string       `json:"service_account_id"`
	State            string       `json:"state"`
	LastAccessedAt   *time.Time   `json:"last_accessed_at,omitempty"`
	Options          AgentOptions `json:"options"`
}

// AgentList is the registry's list envelope.
type AgentList struct {
	TotalCount int     `json:"total_count"`
	Results    []Agent `json:"results"`
}

// ServiceAccount is the billing account an agent reports for.
type ServiceAccount struct {
	ServiceAccountID string            `json:"service_account_id"`
	Name             string            `json:"name"`
	Provider         string            `json:"provider"`
	WorkspaceID      string            `json:"workspace_id"`
	Tags             map[string]string `json:"tags"`
}

// ServiceAccountList is the registry's list envelope for accounts.
type ServiceAccountList struct {
	TotalCount int              `json:"total_count"`
	Results    []ServiceAccount `json:"results"`
}

// Client talks to the registry over its HTTP dispatch protocol. The
// bearer token is carried by an oauth2 transport fixed at construction,
// so no request header state is shared or mutated between calls.
type Client struct {
	endpoint string
	http     *http.Client
	logger   zerolog.Logger
}

// NewClient builds a registry client for the given endpoint and API token.
func NewClient(ctx context.Context, endpoint, token string, logger zerolog.Logger) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(ctx, src)
	httpClient.Timeout = 30 * time.Second

	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     httpClient,
		logger:   logger,
	}
}

// ListAgents enumerates agents. An empty workspaceID lists the whole
// domain; a concrete one narrows the scope to that workspace.
func (c *Client) ListAgents(ctx context.Context, workspaceID string) (*AgentList, error) {
	params := map[string]any{}
	if workspaceID != "" {
		params["workspace_id"] = workspaceID
	}

	var list AgentList
	if err := c.dispatch(ctx, "Agent.list", params, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListServiceAccounts enumerates kubernetes service accounts, scoped the
// same way as ListAgents.
func (c *Client) ListServiceAccounts(ctx context.Context, workspaceID string) (*ServiceAccountList, error) {
	params := map[string]any{"provider": "kubernetes"}
	if workspaceID != "" {
		params["workspace_id"] = workspaceID
	}

	var list ServiceAccountList
	if err := c.dispatch(ctx, "ServiceAccount.list", params, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetServiceAccount fetches a single account by id.
func (c *Client) GetServiceAccount(ctx context.Context, id string) (*ServiceAccount, error) {
	var account ServiceAccount
	if err := c.dispatch(ctx, "ServiceAccount.get", map[string]any{"service_account_id": id}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) dispatch(ctx context.Context, method string, params map[string]any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}

	u := c.endpoint + "/" + methodPath(method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("calling %s: HTTP %d: %s", method, resp.StatusCode, string(detail))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", method, err)
	}

	c.logger.Debug().
		Str("method", method).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("directory call completed")

	return nil
}

var camelBoundary = regexp.MustCompile(`(?m)(?:[a-z0-9])([A-Z])`)

// methodPath converts a registry verb like "ServiceAccount.list" into
// its URL path "service-account/list".
func methodPath(method string) string {
	kebab := camelBoundary.ReplaceAllStringFunc(method, func(m string) string {
		return m[:1] + "-" + m[1:]
	})
	kebab = strings.ReplaceAll(kebab, ".", "/")
	kebab = strings.ReplaceAll(kebab, "_", "-")
	return strings.ToLower(kebab)
}
