package service

import (
	"context"

	"stats-backend/internal/constants"
	"stats-backend/internal/domain"
	"stats-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StatsService implements the four statistics operations on top of the
// repositories. All durable state lives in the document store; the service
// holds nothing but handles.
type StatsService struct {
	profiles *repository.ProfileRepository
	stats    *repository.StatsRepository
	logger   zerolog.Logger
}

func NewStatsService(profiles *repository.ProfileRepository, stats *repository.StatsRepository, logger zerolog.Logger) *StatsService {
	return &StatsService{profiles: profiles, stats: stats, logger: logger}
}

func (s *StatsService) GetProfile(ctx context.Context, id uuid.UUID) (*domain.PlayerProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	profile, err := s.profiles.Get(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("uuid", id.String()).Msg("failed to get player profile")
		return nil, err
	}
	return profile, nil
}

func (s *StatsService) UpdateProfile(ctx context.Context, id uuid.UUID, username string) (*domain.PlayerProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	profile, err := s.profiles.Upsert(ctx, id, &username)
	if err != nil {
		s.logger.Error().Err(err).Str("uuid", id.String()).Msg("failed to update player profile")
		return nil, err
	}
	return profile, nil
}

// GetStats returns nil for an unknown player and an empty mapping for a
// known player without statistics.
func (s *StatsService) GetStats(ctx context.Context, id uuid.UUID, namespace *string) (domain.PlayerStatsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	stats, err := s.stats.GetPlayerStats(ctx, id, namespace)
	if err != nil {
		s.logger.Error().Err(err).Str("uuid", id.String()).Msg("failed to get player stats")
		return nil, err
	}
	return stats, nil
}

func (s *StatsService) GetGlobalStats(ctx context.Context, namespace *string) (domain.PlayerStatsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	stats, err := s.stats.GetGlobalStats(ctx, namespace)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to get global stats")
		return nil, err
	}
	return stats, nil
}

// UploadBundle ingests one bundle of statistic deltas. Ingestion is
// best-effort: a failing player or statistic is logged and skipped, the
// remaining independent items still land, and nothing already written is
// rolled back. The producer never sees the outcome.
func (s *StatsService) UploadBundle(ctx context.Context, bundle domain.StatBundle) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	logger := s.logger.With().Str("namespace", bundle.Namespace).Logger()
	failed := 0

	for player, stats := range bundle.Stats.Players {
		// A document must exist before any increment lands on it.
		if err := s.stats.EnsurePlayerDocument(ctx, player, bundle.Namespace); err != nil {
			logger.Error().Err(err).Str("uuid", player.String()).Msg("failed to prepare player stats document, skipping player")
			failed++
			continue
		}
		for name, delta := range stats {
			if err := s.stats.IncrementPlayer(ctx, player, bundle.Namespace, name, delta); err != nil {
				logger.Error().Err(err).Str("uuid", player.String()).Str("stat", name).Msg("failed to increment player statistic")
				failed++
			}
		}
	}

	if bundle.Stats.Global != nil {
		if err := s.stats.EnsureGlobalDocument(ctx, bundle.Namespace); err != nil {
			logger.Error().Err(err).Msg("failed to prepare global stats document, skipping global section")
			failed++
		} else {
			for name, delta := range bundle.Stats.Global {
				if err := s.stats.IncrementGlobal(ctx, bundle.Namespace, name, delta); err != nil {
					logger.Error().Err(err).Str("stat", name).Msg("failed to increment global statistic")
					failed++
				}
			}
		}
	}

	if failed > 0 {
		logger.Warn().Int("failed_items", failed).Int("players", len(bundle.Stats.Players)).Msg("stats bundle failed")
		return
	}
	logger.Debug().Int("players", len(bundle.Stats.Players)).Msg("stats bundle uploaded")
}
