package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TransportType selects how the MCP server is reached.
type TransportType string

const (
	TransportSSE            TransportType = "sse"
	TransportStdio          TransportType = "stdio"
	TransportStreamableHTTP TransportType = "streamable-http"
)

// KeyValue is an ordered env var or header entry.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ServerConfig is a request-scoped MCP server descriptor supplied by the client.
type ServerConfig struct {
	URL     string        `json:"url,omitempty"`
	Type    TransportType `json:"type"`
	Command string        `json:"command,omitempty"`
	Args    []string      `json:"args,omitempty"`
	Env     []KeyValue    `json:"env,omitempty"`
	Headers []KeyValue    `json:"headers,omitempty"`
}

// Label identifies the server in logs and results.
func (c ServerConfig) Label() string {
	if c.Type == TransportStdio {
		return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
	}
	return c.URL
}

// Validate rejects configurations that can never connect.
func (c ServerConfig) Validate() error {
	switch c.Type {
	case TransportStdio:
		if strings.TrimSpace(c.Command) == "" || len(c.Args) == 0 {
			return errors.New("stdio MCP server requires command and args")
		}
	case TransportSSE, TransportStreamableHTTP:
		if strings.TrimSpace(c.URL) == "" {
			return fmt.Errorf("%s MCP server requires url", c.Type)
		}
	default:
		return fmt.Errorf("Unsupported MCP transport type: %s", c.Type)
	}
	return nil
}

// RemoteTool is a tool descriptor as listed by an MCP server.
type RemoteTool struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Session is a connected MCP client.
type Session interface {
	ListTools(ctx context.Context) ([]RemoteTool, error)
	// CallTool returns the concatenated text content of the result.
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// Connector opens sessions for a server config.
type Connector interface {
	Connect(ctx context.Context, cfg ServerConfig) (Session, error)
}

// Installer prepares the runtime a stdio server needs before it is spawned.
type Installer interface {
	Install(ctx context.Context, cfg ServerConfig) error
}

// Tool is an MCP tool in the calling convention of the completion pipeline.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Server      string
	Execute     func(ctx context.Context, args map[string]any) (string, error)
}

// ServerResult reports the outcome for one configured server.
type ServerResult struct {
	Server    string        `json:"server"`
	Type      TransportType `json:"type"`
	ToolCount int           `json:"toolCount"`
	Err       error         `json:"-"`
}

// InstallCommands returns the best-effort install steps for a stdio server.
// uvx launchers need uv itself; "python -m pkg" launchers need the package.
func InstallCommands(cfg ServerConfig) [][]string {
	if cfg.Type != TransportStdio {
		return nil
	}
	switch base := commandBase(cfg.Command); {
	case base == "uvx":
		return [][]string{{"pip3", "install", "uv"}}
	case strings.HasPrefix(base, "python") && len(cfg.Args) >= 2 && cfg.Args[0] == "-m":
		return [][]string{{"uv", "pip", "install", cfg.Args[1]}}
	}
	return nil
}

func commandBase(command string) string {
	command = strings.TrimSpace(command)
	if idx := strings.LastIndex(command, "/"); idx >= 0 {
		command = command[idx+1:]
	}
	return command
}
