package mcpclient

import (
	"github.com/google/wire"

	"chatlima-server/internal/domain/mcpserver"
)

var MCPClientProvider = wire.NewSet(
	NewConnector,
	NewExecInstaller,
	wire.Bind(new(mcpserver.Connector), new(*Connector)),
	wire.Bind(new(mcpserver.Installer), new(*ExecInstaller)),
)
