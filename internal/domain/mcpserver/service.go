package mcpserver

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"chatlima-server/internal/infrastructure/metrics"
	"chatlima-server/internal/infrastructure/observability"
)

// DefaultDisabledModels cannot drive tool calls reliably, so MCP is skipped for them.
var DefaultDisabledModels = []string{
	"deepseek/deepseek-r1",
	"deepseek/deepseek-r1:free",
	"openrouter/deepseek/deepseek-r1",
	"requesty/deepseek/deepseek-r1",
}

// Settings configures MCP initialisation.
type Settings struct {
	DisabledModels []string
	ConnectTimeout time.Duration
}

// InitResult is the merged tool set with the sessions that back it.
type InitResult struct {
	Tools   map[string]Tool
	Clients []Session
	Results []ServerResult
	// Cleanup closes every opened session once. It is safe to call repeatedly.
	Cleanup func()

	mu          sync.Mutex
	cleanupErrs []error
}

// CleanupErrors returns close errors swallowed by Cleanup.
func (r *InitResult) CleanupErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.cleanupErrs...)
}

// ChatMCPServerService connects request-scoped MCP servers and aggregates their tools.
type ChatMCPServerService struct {
	connector Connector
	installer Installer
	disabled  map[string]struct{}
	timeout   time.Duration
	log       zerolog.Logger
}

func NewChatMCPServerService(connector Connector, installer Installer, settings Settings, log zerolog.Logger) *ChatMCPServerService {
	disabled := make(map[string]struct{}, len(DefaultDisabledModels)+len(settings.DisabledModels))
	for _, id := range append(append([]string{}, DefaultDisabledModels...), settings.DisabledModels...) {
		if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
			disabled[id] = struct{}{}
		}
	}
	return &ChatMCPServerService{
		connector: connector,
		installer: installer,
		disabled:  disabled,
		timeout:   settings.ConnectTimeout,
		log:       log.With().Str("component", "mcp-servers").Logger(),
	}
}

// IsDisabledFor reports whether MCP tools are skipped for the model.
func (s *ChatMCPServerService) IsDisabledFor(modelID string) bool {
	_, ok := s.disabled[strings.ToLower(strings.TrimSpace(modelID))]
	return ok
}

// ValidateServers checks every server config without connecting. Models with MCP disabled never fail.
func (s *ChatMCPServerService) ValidateServers(servers []ServerConfig, selectedModel string) error {
	if s.IsDisabledFor(selectedModel) {
		return nil
	}
	for _, srv := range servers {
		if err := srv.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// InitializeMCPServers connects each server in order and merges their tools.
// Only configuration errors are returned; connection failures are reported per server in Results.
func (s *ChatMCPServerService) InitializeMCPServers(ctx context.Context, servers []ServerConfig, selectedModel string) (*InitResult, error) {
	result := &InitResult{Tools: map[string]Tool{}}
	result.Cleanup = func() {}

	if len(servers) == 0 {
		return result, nil
	}
	if s.IsDisabledFor(selectedModel) {
		s.log.Info().Str("model", selectedModel).Msg("MCP tools disabled for model")
		return result, nil
	}
	if err := s.ValidateServers(servers, selectedModel); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "mcp.initialize")
	defer span.End()
	span.SetAttributes(attribute.Int("mcp.servers", len(servers)), attribute.String("model", selectedModel))

	for _, srv := range servers {
		res := ServerResult{Server: srv.Label(), Type: srv.Type}
		session, tools, err := s.connect(ctx, srv)
		metrics.RecordMCPConnection(string(srv.Type), err == nil)
		if err != nil {
			res.Err = err
			observability.RecordError(ctx, err)
			s.log.Warn().Err(err).Str("server", res.Server).Str("transport", string(srv.Type)).Msg("MCP server unavailable, skipping")
			result.Results = append(result.Results, res)
			continue
		}

		result.Clients = append(result.Clients, session)
		for _, t := range tools {
			if prev, exists := result.Tools[t.Name]; exists {
				s.log.Warn().Str("tool", t.Name).Str("previous_server", prev.Server).Str("server", res.Server).Msg("MCP tool name collision, keeping latest")
			}
			result.Tools[t.Name] = t
		}
		res.ToolCount = len(tools)
		result.Results = append(result.Results, res)
		s.log.Info().Str("server", res.Server).Str("transport", string(srv.Type)).Int("tools", len(tools)).Msg("MCP server connected")
	}

	var once sync.Once
	result.Cleanup = func() {
		once.Do(func() {
			for _, c := range result.Clients {
				if err := c.Close(); err != nil {
					s.log.Warn().Err(err).Msg("failed to close MCP client")
					result.mu.Lock()
					result.cleanupErrs = append(result.cleanupErrs, err)
					result.mu.Unlock()
				}
			}
		})
	}
	return result, nil
}

func (s *ChatMCPServerService) connect(ctx context.Context, srv ServerConfig) (Session, []Tool, error) {
	if srv.Type == TransportStdio && s.installer != nil {
		if err := s.installer.Install(ctx, srv); err != nil {
			s.log.Warn().Err(err).Str("server", srv.Label()).Msg("MCP dependency install failed, connecting anyway")
		}
	}

	// The session lives as long as ctx, so only the tool listing is bounded by the timeout.
	session, err := s.connector.Connect(ctx, srv)
	if err != nil {
		return nil, nil, err
	}
	listCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		listCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	remote, err := session.ListTools(listCtx)
	if err != nil {
		if closeErr := session.Close(); closeErr != nil {
			s.log.Warn().Err(closeErr).Str("server", srv.Label()).Msg("failed to close MCP client")
		}
		return nil, nil, err
	}

	tools := make([]Tool, 0, len(remote))
	for _, rt := range remote {
		name := rt.Name
		tools = append(tools, Tool{
			Name:        name,
			Description: rt.Description,
			Parameters:  rt.InputSchema,
			Server:      srv.Label(),
			Execute: func(ctx context.Context, args map[string]any) (string, error) {
				return session.CallTool(ctx, name, args)
			},
		})
	}
	return session, tools, nil
}
