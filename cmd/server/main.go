package main

import (
	"context"
	"stats-backend/internal/constants"
	"stats-backend/internal/coordinator"
	fxmodules "stats-backend/internal/fx"
	"stats-backend/internal/store"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runCoordinator),
	).Run()
}

// runCoordinator starts the mailbox loop. The store connection was already
// established (and pinged) during construction, so by the time the loop
// starts the backend is known to be reachable.
func runCoordinator(
	lc fx.Lifecycle,
	coord *coordinator.Coordinator,
	st store.Store,
	logger zerolog.Logger,
) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go coord.Run(runCtx)
			logger.Info().Msg("statistics backend started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer shutdownCancel()

			if err := st.Close(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("error closing document store")
			}
			logger.Info().Msg("statistics backend stopped")
			return nil
		},
	})
}
