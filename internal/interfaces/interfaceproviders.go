package interfaces

import (
	"github.com/google/wire"

	"chatlima-server/internal/interfaces/httpserver"
)

var InterfacesProvider = wire.NewSet(
	httpserver.NewHttpServer,
)
