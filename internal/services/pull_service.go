package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fieldledger/fieldledger/internal/models"
	"github.com/fieldledger/fieldledger/internal/repositories"
	"github.com/fieldledger/fieldledger/internal/syncid"
)

// PullService serves a device's catch-up: the durable log after its
// watermark, or a full bootstrap when it has none. The caller commits the
// returned server time as its new watermark only after merging everything.
type PullService struct {
	entities repositories.EntityRepository
	log      repositories.SyncLogRepository
	logger   *logrus.Logger
}

func NewPullService(entities repositories.EntityRepository, log repositories.SyncLogRepository, logger *logrus.Logger) *PullService {
	if logger == nil {
		logger = logrus.New()
	}
	return &PullService{entities: entities, log: log, logger: logger}
}

func (s *PullService) Pull(ctx context.Context, workspaceID uuid.UUID, since *time.Time) (*models.PullResponse, error) {
	serverTime := time.Now().UTC()

	if since == nil {
		changes, err := s.bootstrap(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		return &models.PullResponse{Changes: changes, ServerTime: serverTime}, nil
	}

	changes, err := s.incremental(ctx, workspaceID, *since)
	if err != nil {
		return nil, err
	}
	return &models.PullResponse{Changes: changes, ServerTime: serverTime}, nil
}

// bootstrap scans every canonical table and synthesizes a create event per
// non-deleted row. Tombstones are never returned: a freshly bootstrapped
// device has nothing local to delete yet.
func (s *PullService) bootstrap(ctx context.Context, workspaceID uuid.UUID) ([]models.ChangeEvent, error) {
	var changes []models.ChangeEvent
	for _, kind := range models.AllKinds() {
		rows, err := s.entities.ListActive(ctx, workspaceID, kind)
		if err != nil {
			return nil, fmt.Errorf("bootstrap scan of %s failed: %w", kind, err)
		}
		for _, row := range rows {
			changes = append(changes, models.ChangeEvent{
				ID:        uuid.New().String(),
				Kind:      kind,
				Op:        models.OpCreate,
				Row:       row,
				UpdatedAt: row.ModifiedAt(),
			})
		}
	}
	s.logger.WithFields(logrus.Fields{
		"workspace_id": workspaceID,
		"rows":         len(changes),
	}).Info("serving bootstrap pull")
	return changes, nil
}

// incremental replays the durable log after since, ascending, so the device
// merges in causal order. Rows are returned under their canonical
// (normalized) ids to match the canonical tables.
func (s *PullService) incremental(ctx context.Context, workspaceID uuid.UUID, since time.Time) ([]models.ChangeEvent, error) {
	records, err := s.log.ListSince(ctx, workspaceID, since)
	if err != nil {
		return nil, fmt.Errorf("incremental pull failed: %w", err)
	}

	changes := make([]models.ChangeEvent, 0, len(records))
	for _, rec := range records {
		row, err := models.DecodeRow(rec.EntityKind, rec.RowData)
		if err != nil {
			// A log record that no longer decodes is skipped, not fatal:
			// the canonical row is still reachable via a forced bootstrap.
			s.logger.WithFields(logrus.Fields{
				"record_id":   rec.ID,
				"entity_kind": rec.EntityKind,
			}).WithError(err).Warn("skipping undecodable log record")
			continue
		}
		normalized := syncid.NormalizeRow(row)
		event := models.ChangeEvent{
			ID:        rec.ID.String(),
			Kind:      rec.EntityKind,
			Op:        rec.Operation,
			Row:       normalized,
			UpdatedAt: normalized.ModifiedAt(),
			DeletedAt: normalized.Tombstone(),
		}
		changes = append(changes, event)
	}
	return changes, nil
}
