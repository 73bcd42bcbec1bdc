// Package server exposes the plugin's dispatch surface over HTTP: the
// data-source lifecycle calls, task planning and the cost record
// stream. Transport concerns live here; the pipeline and planner stay
// protocol-free.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/finopshq/mimir-cost-datasource/internal/apperr"
	"github.com/finopshq/mimir-cost-datasource/internal/billing"
	"github.com/finopshq/mimir-cost-datasource/internal/config"
	"github.com/finopshq/mimir-cost-datasource/internal/cost"
	"github.com/finopshq/mimir-cost-datasource/internal/directory"
	"github.com/finopshq/mimir-cost-datasource/internal/job"
	"github.com/finopshq/mimir-cost-datasource/internal/mimir"
)

// Registry is the slice of the account registry the handlers need.
type Registry interface {
	ListAgents(ctx context.Context, workspaceID string) (*directory.AgentList, error)
	ListServiceAccounts(ctx context.Context, workspaceID string) (*directory.ServiceAccountList, error)
}

// Server hosts the plugin routes. Collaborator clients are built per
// request from the caller's secret block, so no credential or header
// state is shared between concurrent tasks.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger

	newMetrics  func(endpoint, orgID string, logger zerolog.Logger) cost.MetricsSource
	newRegistry func(ctx context.Context, endpoint, token string, logger zerolog.Logger) Registry
}

// New builds the server with the production client factories.
func New(logger zerolog.Logger) *Server {
	s := &Server{
		logger: logger,
		newMetrics: func(endpoint, orgID string, logger zerolog.Logger) cost.MetricsSource {
			return mimir.NewClient(endpoint, orgID, logger)
		},
		newRegistry: func(ctx context.Context, endpoint, token string, logger zerolog.Logger) Registry {
			return directory.NewClient(ctx, endpoint, token, logger)
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}

	e.POST("/data-source/init", s.handleInit)
	e.POST("/data-source/verify", s.handleVerify)
	e.POST("/job/get-tasks", s.handleGetTasks)
	e.POST("/cost/get-data", s.handleGetData)

	s.echo = e
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// jsonSerializer routes echo's JSON handling through goccy/go-json.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i any) error {
	return json.NewDecoder(c.Request().Body).Decode(i)
}

type initRequest struct {
	Options  config.Options `json:"options"`
	DomainID string         `json:"domain_id"`
}

type verifyRequest struct {
	Options    config.Options `json:"options"`
	SecretData config.Secret  `json:"secret_data"`
	Schema     string         `json:"schema"`
	DomainID   string         `json:"domain_id"`
}

type getTasksRequest struct {
	Options            config.Options `json:"options"`
	SecretData         config.Secret  `json:"secret_data"`
	Schema             string         `json:"schema"`
	Start              string         `json:"start"`
	LastSynchronizedAt *time.Time     `json:"last_synchronized_at"`
	DomainID           string         `json:"domain_id"`
}

type getDataRequest struct {
	Options     config.Options  `json:"options"`
	SecretData  config.Secret   `json:"secret_data"`
	Schema      string          `json:"schema"`
	TaskOptions job.TaskOptions `json:"task_options"`
	DomainID    string          `json:"domain_id"`
}

type initResponse struct {
	Metadata Metadata `json:"metadata"`
}

func (s *Server) requestLogger(operation string) zerolog.Logger {
	return s.logger.With().
		Str("trace_id", uuid.New().String()).
		Str("operation", operation).
		Logger()
}

func (s *Server) handleInit(c echo.Context) error {
	var req initRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	logger := s.requestLogger("DataSource.init")
	logger.Info().Str("domain_id", req.DomainID).Msg("plugin initialized")
	return c.JSON(http.StatusOK, initResponse{Metadata: InitMetadata()})
}

func (s *Server) handleVerify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	logger := s.requestLogger("DataSource.verify")

	if err := req.SecretData.Validate(); err != nil {
		return httpError(err)
	}

	ctx := c.Request().Context()
	registry := s.newRegistry(ctx, req.SecretData.ServiceEndpoint, req.SecretData.ServiceToken, logger)
	if _, err := registry.ListServiceAccounts(ctx, req.Options.Workspace()); err != nil {
		logger.Warn().Err(err).Msg("registry verification failed")
		return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("verifying registry access: %v", err))
	}

	logger.Info().Msg("plugin verified")
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleGetTasks(c echo.Context) error {
	var req getTasksRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	logger := s.requestLogger("Job.get_tasks")

	if err := req.SecretData.Validate(); err != nil {
		return httpError(err)
	}

	ctx := c.Request().Context()
	registry := s.newRegistry(ctx, req.SecretData.ServiceEndpoint, req.SecretData.ServiceToken, logger)
	planner := job.NewPlanner(registry, logger)

	plan, err := planner.Plan(ctx, req.Start, req.LastSynchronizedAt, req.Options.Workspace())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, plan)
}

func (s *Server) handleGetData(c echo.Context) error {
	var req getDataRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	logger := s.requestLogger("Cost.get_data")

	if err := req.SecretData.Validate(); err != nil {
		return httpError(err)
	}
	month, err := billing.ParseMonth(req.TaskOptions.Start)
	if err != nil {
		return httpError(err)
	}

	// Each task queries its own tenant; the task's account wins over
	// the secret's default scope.
	orgID := req.TaskOptions.ServiceAccountID
	if orgID == "" {
		orgID = req.SecretData.ScopeOrgID
	}

	ctx := c.Request().Context()
	metrics := s.newMetrics(req.SecretData.MimirEndpoint, orgID, logger)
	stream := cost.NewPipeline(metrics, logger).Run(ctx, month, orgID)

	// Pull the first batch before committing the response status so
	// validation failures still map to a clean error.
	first, err := stream.Next()
	if err != nil {
		if errors.Is(err, cost.ErrStreamClosed) {
			return c.JSON(http.StatusOK, cost.EmptyBatch())
		}
		return httpError(err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	resp.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(resp)
	if err := enc.Encode(first); err != nil {
		return err
	}
	resp.Flush()

	for {
		batch, err := stream.Next()
		if errors.Is(err, cost.ErrStreamClosed) {
			return nil
		}
		if err != nil {
			// The status line is already on the wire; all we can do is
			// drop the connection so the caller sees a failed task.
			logger.Error().Err(err).Msg("record stream aborted")
			return err
		}
		if err := enc.Encode(batch); err != nil {
			return err
		}
		resp.Flush()
	}
}

// httpError maps the error taxonomy onto transport statuses: parameter
// and required-field problems are the caller's, everything else is
// internal.
func httpError(err error) error {
	if apperr.IsRequiredParameter(err) || apperr.IsInvalidParameterType(err) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
