package repository

import (
	"github.com/google/wire"

	"chatlima-server/internal/infrastructure/database/repository/chatrepo"
	"chatlima-server/internal/infrastructure/database/repository/cleanuprepo"
	"chatlima-server/internal/infrastructure/database/repository/creditrepo"
	"chatlima-server/internal/infrastructure/database/repository/pricingrepo"
	"chatlima-server/internal/infrastructure/database/repository/tokenusagerepo"
	"chatlima-server/internal/infrastructure/database/repository/usagelimitrepo"
	"chatlima-server/internal/infrastructure/database/repository/userrepo"
	"chatlima-server/internal/infrastructure/database/transaction"
)

var RepositoryProvider = wire.NewSet(
	transaction.NewDatabase,
	userrepo.NewUserGormRepository,
	chatrepo.NewChatGormRepository,
	chatrepo.NewMessageGormRepository,
	creditrepo.NewCreditGormRepository,
	usagelimitrepo.NewUsageLimitGormRepository,
	pricingrepo.NewPricingGormRepository,
	cleanuprepo.NewCleanupGormRepository,
	tokenusagerepo.NewTokenUsageRepository,
)
