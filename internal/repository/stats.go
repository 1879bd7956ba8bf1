package repository

import (
	"context"
	"errors"
	"fmt"

	"stats-backend/internal/constants"
	"stats-backend/internal/domain"
	"stats-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Counter documents decode their stats into raw BSON values; conversion to
// typed statistics happens explicitly so a drifted value type is detected
// here instead of surfacing as an opaque driver error.
type playerStatsDoc struct {
	UUID      string                   `bson:"uuid"`
	Namespace string                   `bson:"namespace"`
	Stats     map[string]bson.RawValue `bson:"stats"`
}

type globalStatsDoc struct {
	Namespace string                   `bson:"namespace"`
	Stats     map[string]bson.RawValue `bson:"stats"`
}

// StatsRepository owns the per-player and network-wide counter documents:
// lazy creation, atomic increments and the corruption repair path.
type StatsRepository struct {
	playerStats store.Collection
	globalStats store.Collection
	profiles    *ProfileRepository
	quarantine  *QuarantineRepository
	logger      zerolog.Logger
}

func NewStatsRepository(st store.Store, profiles *ProfileRepository, quarantine *QuarantineRepository, logger zerolog.Logger) *StatsRepository {
	return &StatsRepository{
		playerStats: st.Collection(constants.PlayerStatsCollection),
		globalStats: st.Collection(constants.GlobalStatsCollection),
		profiles:    profiles,
		quarantine:  quarantine,
		logger:      logger,
	}
}

// GetPlayerStats returns nil for a player with no profile, distinguishing
// "never seen" from "known player with no stats yet". Values are widened
// to float64.
func (r *StatsRepository) GetPlayerStats(ctx context.Context, id uuid.UUID, namespace *string) (domain.PlayerStatsResponse, error) {
	profile, err := r.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}

	filter := bson.M{"uuid": id.String()}
	if namespace != nil {
		filter["namespace"] = *namespace
	}

	var docs []playerStatsDoc
	if err := r.playerStats.FindAll(ctx, filter, &docs); err != nil {
		return nil, err
	}

	stats := make(domain.PlayerStatsResponse, len(docs))
	for _, doc := range docs {
		values := make(map[string]float64, len(doc.Stats))
		for name, raw := range doc.Stats {
			value, err := domain.StatValueFromRaw(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to read statistic %s in namespace %s: %w", name, doc.Namespace, err)
			}
			values[name] = value.Float64()
		}
		stats[doc.Namespace] = values
	}
	return stats, nil
}

// EnsurePlayerDocument guarantees exactly one live, readable counter
// document for (player, namespace). It is idempotent and must run before
// any increment for the same pair.
func (r *StatsRepository) EnsurePlayerDocument(ctx context.Context, id uuid.UUID, namespace string) error {
	// Every counter document belongs to a known profile.
	if _, err := r.profiles.Upsert(ctx, id, nil); err != nil {
		return err
	}

	filter := bson.M{"uuid": id.String(), "namespace": namespace}
	needsNew, err := r.needsNewDocument(ctx, r.playerStats, filter, namespace, false)
	if err != nil {
		return err
	}
	if !needsNew {
		return nil
	}

	_, err = r.playerStats.InsertOne(ctx, playerStatsDoc{
		UUID:      id.String(),
		Namespace: namespace,
		Stats:     map[string]bson.RawValue{},
	})
	if err != nil {
		return fmt.Errorf("failed to create player stats document: %w", err)
	}
	return nil
}

// EnsureGlobalDocument is the network-wide counterpart of
// EnsurePlayerDocument, keyed by namespace alone.
func (r *StatsRepository) EnsureGlobalDocument(ctx context.Context, namespace string) error {
	filter := bson.M{"namespace": namespace}
	needsNew, err := r.needsNewDocument(ctx, r.globalStats, filter, namespace, true)
	if err != nil {
		return err
	}
	if !needsNew {
		return nil
	}

	_, err = r.globalStats.InsertOne(ctx, globalStatsDoc{
		Namespace: namespace,
		Stats:     map[string]bson.RawValue{},
	})
	if err != nil {
		return fmt.Errorf("failed to create global stats document: %w", err)
	}
	return nil
}

// needsNewDocument reports whether a fresh empty document has to be
// inserted: either none exists, or the existing one failed validation and
// was quarantined.
func (r *StatsRepository) needsNewDocument(ctx context.Context, coll store.Collection, filter bson.M, namespace string, global bool) (bool, error) {
	var doc struct {
		Stats map[string]bson.RawValue `bson:"stats"`
	}
	err := coll.FindOne(ctx, filter, &doc)
	switch {
	case err == nil:
		convErr := validateStats(doc.Stats)
		if convErr == nil {
			return false, nil
		}
		if err := r.quarantine.Quarantine(ctx, coll, filter, convErr, namespace, global); err != nil {
			return false, err
		}
		return true, nil
	case errors.Is(err, store.ErrNoDocuments):
		return true, nil
	case store.IsDecodeError(err):
		if err := r.quarantine.Quarantine(ctx, coll, filter, err, namespace, global); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, err
	}
}

func validateStats(stats map[string]bson.RawValue) error {
	for name, raw := range stats {
		if _, err := domain.StatValueFromRaw(raw); err != nil {
			return fmt.Errorf("statistic %s: %w", name, err)
		}
	}
	return nil
}

// IncrementPlayer adds delta to one statistic, creating the field at zero
// plus delta when absent. EnsurePlayerDocument must have succeeded for the
// same pair first.
func (r *StatsRepository) IncrementPlayer(ctx context.Context, id uuid.UUID, namespace, stat string, delta domain.StatValue) error {
	_, err := r.playerStats.UpdateOne(ctx,
		bson.M{"uuid": id.String(), "namespace": namespace},
		bson.M{"$inc": bson.M{"stats." + stat: delta.BSONValue()}},
	)
	if err != nil {
		return fmt.Errorf("failed to increment statistic %s: %w", stat, err)
	}
	return nil
}

func (r *StatsRepository) IncrementGlobal(ctx context.Context, namespace, stat string, delta domain.StatValue) error {
	_, err := r.globalStats.UpdateOne(ctx,
		bson.M{"namespace": namespace},
		bson.M{"$inc": bson.M{"stats." + stat: delta.BSONValue()}},
	)
	if err != nil {
		return fmt.Errorf("failed to increment global statistic %s: %w", stat, err)
	}
	return nil
}

// GetGlobalStats folds the network-wide counters for one or all
// namespaces, widened to float64.
func (r *StatsRepository) GetGlobalStats(ctx context.Context, namespace *string) (domain.PlayerStatsResponse, error) {
	filter := bson.M{}
	if namespace != nil {
		filter["namespace"] = *namespace
	}

	var docs []globalStatsDoc
	if err := r.globalStats.FindAll(ctx, filter, &docs); err != nil {
		return nil, err
	}

	stats := make(domain.PlayerStatsResponse, len(docs))
	for _, doc := range docs {
		values := make(map[string]float64, len(doc.Stats))
		for name, raw := range doc.Stats {
			value, err := domain.StatValueFromRaw(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to read global statistic %s in namespace %s: %w", name, doc.Namespace, err)
			}
			values[name] = value.Float64()
		}
		stats[doc.Namespace] = values
	}
	return stats, nil
}
