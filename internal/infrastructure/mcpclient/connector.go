package mcpclient

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"chatlima-server/internal/config"
	"chatlima-server/internal/domain/mcpserver"
)

const clientName = "chatlima"

// Connector opens go-sdk client sessions for request scoped server configs.
type Connector struct {
	log zerolog.Logger
}

var _ mcpserver.Connector = (*Connector)(nil)

func NewConnector(log zerolog.Logger) *Connector {
	return &Connector{log: log.With().Str("component", "mcp-client").Logger()}
}

func (c *Connector) Connect(ctx context.Context, cfg mcpserver.ServerConfig) (mcpserver.Session, error) {
	transport, err := c.transport(cfg)
	if err != nil {
		return nil, err
	}
	return connect(ctx, transport, cfg.Label(), c.log)
}

func (c *Connector) transport(cfg mcpserver.ServerConfig) (mcp.Transport, error) {
	switch cfg.Type {
	case mcpserver.TransportStdio:
		// not bound to the request context: the process lives until the session is closed
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Env = os.Environ()
		for _, kv := range cfg.Env {
			cmd.Env = append(cmd.Env, kv.Key+"="+kv.Value)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	case mcpserver.TransportSSE:
		return &mcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient(cfg.Headers)}, nil
	case mcpserver.TransportStreamableHTTP:
		return &mcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient(cfg.Headers)}, nil
	}
	return nil, fmt.Errorf("Unsupported MCP transport type: %s", cfg.Type)
}

// httpClient has no overall timeout since SSE responses stay open for the whole session.
func httpClient(headers []mcpserver.KeyValue) *http.Client {
	return &http.Client{Transport: newHeaderRoundTripper(http.DefaultTransport, headers)}
}

func connect(ctx context.Context, transport mcp.Transport, label string, log zerolog.Logger) (*session, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: config.Version}, nil)
	cs, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to MCP server %s: %w", label, err)
	}
	log.Debug().Str("server", label).Msg("MCP session opened")
	return &session{cs: cs, label: label, log: log}, nil
}
