package fx

import (
	"stats-backend/internal/config"
	"stats-backend/internal/coordinator"
	"stats-backend/internal/logger"
	"stats-backend/internal/notify"
	"stats-backend/internal/repository"
	"stats-backend/internal/service"
	"stats-backend/internal/store"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideStore(cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.StatsBackend == config.BackendMemory {
		log.Warn().Msg("using in-memory stats backend, data will not survive restarts")
		return store.NewMemory(), nil
	}
	return store.NewMongo(cfg, log)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(ProvideStore),
	fx.Provide(notify.New),
	// repos
	fx.Provide(repository.NewProfileRepository),
	fx.Provide(repository.NewQuarantineRepository),
	fx.Provide(repository.NewStatsRepository),
	// svc
	fx.Provide(service.NewStatsService),
	// coordinator
	fx.Provide(coordinator.New),
)
