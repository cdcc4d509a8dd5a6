package mcpclient

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chatlima-server/internal/config"
	"chatlima-server/internal/domain/mcpserver"
)

// ExecInstaller runs the install commands a stdio launcher needs.
type ExecInstaller struct {
	timeout time.Duration
	log     zerolog.Logger
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

var _ mcpserver.Installer = (*ExecInstaller)(nil)

func NewExecInstaller(cfg *config.Config, log zerolog.Logger) *ExecInstaller {
	return &ExecInstaller{
		timeout: cfg.MCPInstallTimeout,
		log:     log.With().Str("component", "mcp-installer").Logger(),
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

func (i *ExecInstaller) Install(ctx context.Context, cfg mcpserver.ServerConfig) error {
	commands := mcpserver.InstallCommands(cfg)
	if len(commands) == 0 {
		return nil
	}
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	for _, cmd := range commands {
		start := time.Now()
		out, err := i.run(ctx, cmd[0], cmd[1:]...)
		if err != nil {
			return fmt.Errorf("%s: %w: %s", strings.Join(cmd, " "), err, strings.TrimSpace(string(out)))
		}
		i.log.Info().Strs("command", cmd).Dur("took", time.Since(start)).Msg("MCP runtime installed")
	}
	return nil
}
