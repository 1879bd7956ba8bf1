package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"stats-backend/internal/domain"
	"stats-backend/internal/notify"
	"stats-backend/internal/repository"
	"stats-backend/internal/service"
	"stats-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T) (*Coordinator, context.CancelFunc) {
	t.Helper()
	logger := zerolog.Nop()
	mem := store.NewMemory()
	profiles := repository.NewProfileRepository(mem, logger)
	quarantine := repository.NewQuarantineRepository(mem, notify.NewLogNotifier(logger), logger)
	stats := repository.NewStatsRepository(mem, profiles, quarantine, logger)
	svc := service.NewStatsService(profiles, stats, logger)

	coord := New(svc, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go coord.Run(ctx)
	t.Cleanup(cancel)
	return coord, cancel
}

func TestCoordinatorOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("profile round trip", func(t *testing.T) {
		coord, _ := newCoordinator(t)
		id := uuid.New()

		profile, err := coord.UpdateProfile(ctx, id, "Alice")
		require.NoError(t, err)
		require.NotNil(t, profile.Username)
		assert.Equal(t, "Alice", *profile.Username)

		got, err := coord.GetProfile(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, id, got.UUID)
	})

	t.Run("queued bundle is visible to a later read", func(t *testing.T) {
		coord, _ := newCoordinator(t)
		player := uuid.New()

		// Upload returns on enqueue; the read queued behind it observes
		// the ingested bundle because requests run strictly in order.
		err := coord.UploadBundle(ctx, domain.StatBundle{
			Namespace: "lobby",
			Stats: domain.BundleStats{
				Players: map[uuid.UUID]map[string]domain.StatValue{
					player: {"wins": domain.IntStat(3)},
				},
				Global: map[string]domain.StatValue{"games_played": domain.IntStat(1)},
			},
		})
		require.NoError(t, err)

		stats, err := coord.GetStats(ctx, player, nil)
		require.NoError(t, err)
		assert.Equal(t, 3.0, stats["lobby"]["wins"])

		global, err := coord.GetGlobalStats(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, global["lobby"]["games_played"])
	})

	t.Run("unknown player reads as nil", func(t *testing.T) {
		coord, _ := newCoordinator(t)

		stats, err := coord.GetStats(ctx, uuid.New(), nil)
		require.NoError(t, err)
		assert.Nil(t, stats)
	})
}

func TestCoordinatorShutdown(t *testing.T) {
	ctx := context.Background()

	t.Run("requests fail after stop", func(t *testing.T) {
		coord, cancel := newCoordinator(t)
		cancel()

		require.Eventually(t, func() bool {
			_, err := coord.GetProfile(ctx, uuid.New())
			return errors.Is(err, ErrStopped)
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("caller context bounds the wait for a reply", func(t *testing.T) {
		// Never started, so the queued request is never handled.
		coord := New(nil, zerolog.Nop())

		bounded, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err := coord.GetProfile(bounded, uuid.New())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
