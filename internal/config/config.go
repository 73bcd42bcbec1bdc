// Package config loads the connector's server configuration and
// validates the per-request secret and option blocks the platform
// passes with every call.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/finopshq/mimir-cost-datasource/internal/apperr"
)

// Resource group scopes: how broadly accounts are enumerated.
const (
	ResourceGroupDomain    = "DOMAIN"
	ResourceGroupWorkspace = "WORKSPACE"
)

// Secret is the credential block required by every data call. All
// fields are mandatory; a missing field fails session setup immediately
// and is never defaulted.
type Secret struct {
	MimirEndpoint   string `json:"mimir_endpoint"`
	ScopeOrgID      string `json:"X_Scope_OrgID"`
	ServiceEndpoint string `json:"service_endpoint"`
	ServiceToken    string `json:"service_token"`
}

// Validate reports the first missing secret field by its dotted key.
func (s *Secret) Validate() error {
	checks := []struct {
		value string
		key   string
	}{
		{s.MimirEndpoint, "secret_data.mimir_endpoint"},
		{s.ScopeOrgID, "secret_data.X_Scope_OrgID"},
		{s.ServiceEndpoint, "secret_data.service_endpoint"},
		{s.ServiceToken, "secret_data.service_token"},
	}
	for _, c := range checks {
		if c.value == "" {
			return &apperr.RequiredParameter{Key: c.key}
		}
	}
	return nil
}

// Options is the plugin option block. An empty WorkspaceID means domain
// scope.
type Options struct {
	ResourceGroup string `json:"resource_group"`
	WorkspaceID   string `json:"workspace_id"`
}

// Workspace returns the workspace filter to apply when listing
// accounts: empty for domain scope.
func (o *Options) Workspace() string {
	if o.ResourceGroup == ResourceGroupWorkspace {
		return o.WorkspaceID
	}
	return ""
}

// Server is the process-level configuration read from YAML.
type Server struct {
	Listen       string `yaml:"listen"`
	HealthListen string `yaml:"health_listen"`
	LogLevel     string `yaml:"log_level"`
}

// defaults applied when a field is absent from the file.
const (
	defaultListen       = ":8080"
	defaultHealthListen = ":8081"
	defaultLogLevel     = "info"
)

// LoadServer reads the server configuration; an empty path yields the
// defaults.
func LoadServer(path string) (*Server, error) {
	cfg := &Server{
		Listen:       defaultListen,
		HealthListen: defaultHealthListen,
		LogLevel:     defaultLogLevel,
	}
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	if cfg.HealthListen == "" {
		cfg.HealthListen = defaultHealthListen
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	return cfg, nil
}
