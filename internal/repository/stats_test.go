package repository

import (
	"context"
	"errors"
	"testing"

	"stats-backend/internal/constants"
	"stats-backend/internal/domain"
	"stats-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newStatsRepo(t *testing.T, notifier *recordingNotifier) (*store.Memory, *StatsRepository) {
	t.Helper()
	mem := store.NewMemory()
	profiles := NewProfileRepository(mem, zerolog.Nop())
	quarantine := NewQuarantineRepository(mem, notifier, zerolog.Nop())
	return mem, NewStatsRepository(mem, profiles, quarantine, zerolog.Nop())
}

func TestStatsRepositoryEnsure(t *testing.T) {
	ctx := context.Background()

	t.Run("player ensure is idempotent", func(t *testing.T) {
		mem, repo := newStatsRepo(t, &recordingNotifier{})
		id := uuid.New()

		require.NoError(t, repo.EnsurePlayerDocument(ctx, id, "bedwars"))
		require.NoError(t, repo.EnsurePlayerDocument(ctx, id, "bedwars"))

		assert.Equal(t, store.WriteCounts{Inserts: 1}, mem.Writes(constants.PlayerStatsCollection))
		assert.Equal(t, store.WriteCounts{Inserts: 1}, mem.Writes(constants.PlayersCollection))
	})

	t.Run("player ensure creates the profile", func(t *testing.T) {
		mem, repo := newStatsRepo(t, &recordingNotifier{})
		id := uuid.New()

		require.NoError(t, repo.EnsurePlayerDocument(ctx, id, "bedwars"))

		var doc bson.M
		err := mem.Collection(constants.PlayersCollection).FindOne(ctx, bson.M{"uuid": id.String()}, &doc)
		require.NoError(t, err)
	})

	t.Run("namespaces get separate documents", func(t *testing.T) {
		mem, repo := newStatsRepo(t, &recordingNotifier{})
		id := uuid.New()

		require.NoError(t, repo.EnsurePlayerDocument(ctx, id, "bedwars"))
		require.NoError(t, repo.EnsurePlayerDocument(ctx, id, "skywars"))

		assert.Equal(t, store.WriteCounts{Inserts: 2}, mem.Writes(constants.PlayerStatsCollection))
	})

	t.Run("global ensure is idempotent", func(t *testing.T) {
		mem, repo := newStatsRepo(t, &recordingNotifier{})

		require.NoError(t, repo.EnsureGlobalDocument(ctx, "bedwars"))
		require.NoError(t, repo.EnsureGlobalDocument(ctx, "bedwars"))

		assert.Equal(t, store.WriteCounts{Inserts: 1}, mem.Writes(constants.GlobalStatsCollection))
	})
}

func TestStatsRepositoryIncrements(t *testing.T) {
	ctx := context.Background()

	t.Run("player increments accumulate and widen", func(t *testing.T) {
		_, repo := newStatsRepo(t, &recordingNotifier{})
		id := uuid.New()

		require.NoError(t, repo.EnsurePlayerDocument(ctx, id, "bedwars"))
		require.NoError(t, repo.IncrementPlayer(ctx, id, "bedwars", "wins", domain.IntStat(2)))
		require.NoError(t, repo.IncrementPlayer(ctx, id, "bedwars", "wins", domain.IntStat(1)))
		require.NoError(t, repo.IncrementPlayer(ctx, id, "bedwars", "rating", domain.FloatStat(0.5)))

		stats, err := repo.GetPlayerStats(ctx, id, nil)
		require.NoError(t, err)
		require.Contains(t, stats, "bedwars")
		assert.Equal(t, 3.0, stats["bedwars"]["wins"])
		assert.Equal(t, 0.5, stats["bedwars"]["rating"])
	})

	t.Run("namespace filter narrows the result", func(t *testing.T) {
		_, repo := newStatsRepo(t, &recordingNotifier{})
		id := uuid.New()

		require.NoError(t, repo.EnsurePlayerDocument(ctx, id, "bedwars"))
		require.NoError(t, repo.IncrementPlayer(ctx, id, "bedwars", "wins", domain.IntStat(1)))
		require.NoError(t, repo.EnsurePlayerDocument(ctx, id, "skywars"))
		require.NoError(t, repo.IncrementPlayer(ctx, id, "skywars", "wins", domain.IntStat(4)))

		ns := "skywars"
		stats, err := repo.GetPlayerStats(ctx, id, &ns)
		require.NoError(t, err)
		assert.Len(t, stats, 1)
		assert.Equal(t, 4.0, stats["skywars"]["wins"])
	})

	t.Run("unknown player yields nil stats", func(t *testing.T) {
		_, repo := newStatsRepo(t, &recordingNotifier{})

		stats, err := repo.GetPlayerStats(ctx, uuid.New(), nil)
		require.NoError(t, err)
		assert.Nil(t, stats)
	})

	t.Run("known player without stats yields an empty mapping", func(t *testing.T) {
		mem, repo := newStatsRepo(t, &recordingNotifier{})
		profiles := NewProfileRepository(mem, zerolog.Nop())
		id := uuid.New()
		_, err := profiles.Upsert(ctx, id, strPtr("Alice"))
		require.NoError(t, err)

		stats, err := repo.GetPlayerStats(ctx, id, nil)
		require.NoError(t, err)
		require.NotNil(t, stats)
		assert.Empty(t, stats)
	})

	t.Run("global increments accumulate across players", func(t *testing.T) {
		_, repo := newStatsRepo(t, &recordingNotifier{})

		require.NoError(t, repo.EnsureGlobalDocument(ctx, "bedwars"))
		require.NoError(t, repo.IncrementGlobal(ctx, "bedwars", "games_played", domain.IntStat(1)))
		require.NoError(t, repo.IncrementGlobal(ctx, "bedwars", "games_played", domain.IntStat(1)))

		stats, err := repo.GetGlobalStats(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 2.0, stats["bedwars"]["games_played"])
	})
}

func TestStatsRepositoryQuarantine(t *testing.T) {
	ctx := context.Background()

	seedCorrupt := func(t *testing.T, mem *store.Memory, id uuid.UUID, stats any) {
		t.Helper()
		_, err := mem.Collection(constants.PlayerStatsCollection).InsertOne(ctx, bson.M{
			"uuid":      id.String(),
			"namespace": "bedwars",
			"stats":     stats,
		})
		require.NoError(t, err)
	}

	t.Run("drifted value type is quarantined and replaced", func(t *testing.T) {
		notifier := &recordingNotifier{}
		mem, repo := newStatsRepo(t, notifier)
		id := uuid.New()
		seedCorrupt(t, mem, id, bson.M{"kills": "broken"})

		require.NoError(t, repo.EnsurePlayerDocument(ctx, id, "bedwars"))

		// The corrupt document moved into quarantine with its content intact.
		var backup bson.M
		corrupt := mem.Collection(constants.CorruptStatsCollection)
		require.NoError(t, corrupt.FindOne(ctx, bson.M{"uuid": id.String()}, &backup))
		assert.Equal(t, "bedwars", backup["namespace"])
		assert.Equal(t, bson.M{"kills": "broken"}, backup["stats"])

		// A fresh empty document took its place.
		var replacement bson.M
		players := mem.Collection(constants.PlayerStatsCollection)
		require.NoError(t, players.FindOne(ctx, bson.M{"uuid": id.String()}, &replacement))
		assert.Equal(t, bson.M{}, replacement["stats"])
		assert.NotEqual(t, backup["_id"], replacement["_id"])

		var all []bson.M
		require.NoError(t, players.FindAll(ctx, bson.M{"uuid": id.String()}, &all))
		assert.Len(t, all, 1)

		reports := notifier.Reports()
		require.Len(t, reports, 1)
		assert.Equal(t, "bedwars", reports[0].Fields["Statistic namespace"])
		assert.Equal(t, "false", reports[0].Fields["Global statistic?"])
		assert.NotEmpty(t, reports[0].Fields["Document backup ID"])
	})

	t.Run("structurally broken document is quarantined", func(t *testing.T) {
		notifier := &recordingNotifier{}
		mem, repo := newStatsRepo(t, notifier)
		id := uuid.New()
		seedCorrupt(t, mem, id, "broken")

		require.NoError(t, repo.EnsurePlayerDocument(ctx, id, "bedwars"))

		var backup bson.M
		err := mem.Collection(constants.CorruptStatsCollection).FindOne(ctx, bson.M{"uuid": id.String()}, &backup)
		require.NoError(t, err)
		assert.Equal(t, "broken", backup["stats"])
		assert.Len(t, notifier.Reports(), 1)
	})

	t.Run("increments work again after repair", func(t *testing.T) {
		mem, repo := newStatsRepo(t, &recordingNotifier{})
		id := uuid.New()
		seedCorrupt(t, mem, id, bson.M{"kills": "broken"})

		require.NoError(t, repo.EnsurePlayerDocument(ctx, id, "bedwars"))
		require.NoError(t, repo.IncrementPlayer(ctx, id, "bedwars", "kills", domain.IntStat(5)))

		stats, err := repo.GetPlayerStats(ctx, id, nil)
		require.NoError(t, err)
		assert.Equal(t, 5.0, stats["bedwars"]["kills"])
	})

	t.Run("corrupt global document is flagged as global", func(t *testing.T) {
		notifier := &recordingNotifier{}
		mem, repo := newStatsRepo(t, notifier)
		_, err := mem.Collection(constants.GlobalStatsCollection).InsertOne(ctx, bson.M{
			"namespace": "bedwars",
			"stats":     bson.M{"games_played": "broken"},
		})
		require.NoError(t, err)

		require.NoError(t, repo.EnsureGlobalDocument(ctx, "bedwars"))

		reports := notifier.Reports()
		require.Len(t, reports, 1)
		assert.Equal(t, "true", reports[0].Fields["Global statistic?"])
	})

	t.Run("failed report aborts the repair", func(t *testing.T) {
		notifier := &recordingNotifier{err: errors.New("webhook down")}
		mem, repo := newStatsRepo(t, notifier)
		id := uuid.New()
		seedCorrupt(t, mem, id, bson.M{"kills": "broken"})

		err := repo.EnsurePlayerDocument(ctx, id, "bedwars")
		require.Error(t, err)

		// The backup still happened before the report failed.
		var backup bson.M
		err = mem.Collection(constants.CorruptStatsCollection).FindOne(ctx, bson.M{"uuid": id.String()}, &backup)
		require.NoError(t, err)
	})

	t.Run("vanished document is tolerated", func(t *testing.T) {
		notifier := &recordingNotifier{}
		mem := store.NewMemory()
		quarantine := NewQuarantineRepository(mem, notifier, zerolog.Nop())

		err := quarantine.Quarantine(ctx,
			mem.Collection(constants.PlayerStatsCollection),
			bson.M{"uuid": uuid.New().String()},
			errors.New("stale corruption"),
			"bedwars", false,
		)
		require.NoError(t, err)
		assert.Empty(t, notifier.Reports())
		assert.Equal(t, store.WriteCounts{}, mem.Writes(constants.CorruptStatsCollection))
	})
}
