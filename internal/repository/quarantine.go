package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"stats-backend/internal/constants"
	"stats-backend/internal/domain"
	"stats-backend/internal/notify"
	"stats-backend/internal/store"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const corruptStatsDescription = `The backend detected an invalid statistic document while uploading a bundle.
It is likely a minigame has changed the type of one of its stored statistics.
The affected document has been backed up and removed from the database.`

// QuarantineRepository moves corrupt counter documents out of their source
// collection so ingestion can continue, preserving the data for manual
// inspection.
type QuarantineRepository struct {
	corrupt  store.Collection
	notifier notify.Notifier
	logger   zerolog.Logger
}

func NewQuarantineRepository(st store.Store, notifier notify.Notifier, logger zerolog.Logger) *QuarantineRepository {
	return &QuarantineRepository{
		corrupt:  st.Collection(constants.CorruptStatsCollection),
		notifier: notifier,
		logger:   logger,
	}
}

// Quarantine re-fetches the offending document schema-agnostically, copies
// it into the quarantine collection under a fresh identity, deletes the
// original and reports the incident. A document that vanished between
// detection and repair is logged and tolerated. The caller is expected to
// recreate a fresh document afterwards.
func (r *QuarantineRepository) Quarantine(ctx context.Context, source store.Collection, filter bson.M, cause error, namespace string, global bool) error {
	var raw bson.M
	err := source.FindOne(ctx, filter, &raw)
	if errors.Is(err, store.ErrNoDocuments) {
		// This should never happen: the document was there moments ago.
		r.logger.Warn().
			Str("namespace", namespace).
			Bool("global", global).
			Msg("corrupt document vanished before it could be quarantined")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to re-fetch corrupt document: %w", err)
	}

	originalID := raw["_id"]
	backup := make(bson.M, len(raw))
	for k, v := range raw {
		// The store assigns the backup a fresh identity; reusing the
		// original one would collide with future documents.
		if k == "_id" {
			continue
		}
		backup[k] = v
	}

	backupID, err := r.corrupt.InsertOne(ctx, backup)
	if err != nil {
		return fmt.Errorf("failed to back up corrupt document: %w", err)
	}
	if _, err := source.DeleteOne(ctx, bson.M{"_id": originalID}); err != nil {
		return fmt.Errorf("failed to delete corrupt document: %w", err)
	}

	r.logger.Warn().
		Err(cause).
		Str("namespace", namespace).
		Bool("global", global).
		Str("backup_id", backupID).
		Msg("quarantined corrupt stats document")

	report := domain.CorruptionReport{
		Title:       ":warning: Corrupt stats document",
		Description: corruptStatsDescription,
		Fields: map[string]string{
			"Statistic namespace": namespace,
			"Global statistic?":   strconv.FormatBool(global),
			"Document backup ID":  backupID,
		},
	}
	if err := r.notifier.ReportCorruption(ctx, report); err != nil {
		return fmt.Errorf("failed to report corrupt document: %w", err)
	}
	return nil
}
