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

type profileDoc struct {
	UUID     string  `bson:"uuid"`
	Username *string `bson:"username,omitempty"`
}

// ProfileRepository owns the player identity records. One row per player,
// created on first contact, never deleted.
type ProfileRepository struct {
	players store.Collection
	logger  zerolog.Logger
}

func NewProfileRepository(st store.Store, logger zerolog.Logger) *ProfileRepository {
	return &ProfileRepository{
		players: st.Collection(constants.PlayersCollection),
		logger:  logger,
	}
}

// Get returns nil without error when the player has never been seen.
func (r *ProfileRepository) Get(ctx context.Context, id uuid.UUID) (*domain.PlayerProfile, error) {
	var doc profileDoc
	err := r.players.FindOne(ctx, bson.M{"uuid": id.String()}, &doc)
	if errors.Is(err, store.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.PlayerProfile{UUID: id, Username: doc.Username}, nil
}

// Upsert creates the profile on first contact and persists a username
// change when a differing non-empty name is supplied. When no change is
// needed, no write is issued.
func (r *ProfileRepository) Upsert(ctx context.Context, id uuid.UUID, username *string) (*domain.PlayerProfile, error) {
	profile, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if profile == nil {
		doc := profileDoc{UUID: id.String(), Username: username}
		if _, err := r.players.InsertOne(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to create player profile: %w", err)
		}
		return &domain.PlayerProfile{UUID: id, Username: username}, nil
	}

	if username == nil || *username == "" {
		return profile, nil
	}
	if profile.Username != nil && *profile.Username == *username {
		return profile, nil
	}

	r.logger.Debug().Str("uuid", id.String()).Str("username", *username).Msg("player updated username")
	_, err = r.players.UpdateOne(ctx,
		bson.M{"uuid": id.String()},
		bson.M{"$set": bson.M{"username": *username}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update player profile: %w", err)
	}

	profile.Username = username
	return profile, nil
}
