package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/fieldledger/fieldledger/internal/models"
	"github.com/fieldledger/fieldledger/internal/order"
	"github.com/fieldledger/fieldledger/internal/repositories"
	"github.com/fieldledger/fieldledger/internal/syncid"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PushService applies a device's outbox batch: durable log append first,
// then dependency-ordered apply to the canonical tables with per-record
// outcomes. Mutation application is idempotent, so a device may safely
// re-push the same batch after a partial failure.
type PushService struct {
	entities repositories.EntityRepository
	log      repositories.SyncLogRepository
	logger   *logrus.Logger
}

func NewPushService(entities repositories.EntityRepository, log repositories.SyncLogRepository, logger *logrus.Logger) *PushService {
	if logger == nil {
		logger = logrus.New()
	}
	return &PushService{entities: entities, log: log, logger: logger}
}

// Push processes one batch. The returned response reports per-record
// outcomes; Success is true only when no record ended fatal. A returned
// error means the batch was not durably logged at all and the device must
// retry it whole.
func (s *PushService) Push(ctx context.Context, workspaceID, deviceID uuid.UUID, changes []models.ChangeEvent) (*models.PushResponse, error) {
	outcomes := make([]models.ApplyOutcome, 0, len(changes))

	// Structurally invalid entries are dropped before anything durable
	// happens. Non-fatal: the rest of the batch proceeds.
	valid := make([]models.ChangeEvent, 0, len(changes))
	for _, event := range changes {
		if !event.Valid() {
			s.logger.WithFields(logrus.Fields{
				"event_id":     event.ID,
				"workspace_id": workspaceID,
			}).Warn("dropping malformed change event")
			outcomes = append(outcomes, models.ApplyOutcome{
				EventID: event.ID,
				Kind:    event.Kind,
				Status:  models.OutcomeInvalid,
				Reason:  "missing row or row id",
			})
			continue
		}
		valid = append(valid, event)
	}

	// One durable append for the whole batch. The log preserves the rows
	// exactly as pushed; if this write fails the push aborts and the
	// device's outbox stays untouched.
	records := make([]*models.SyncEventRecord, 0, len(valid))
	for _, event := range valid {
		rowData, err := json.Marshal(event.Row)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s row: %w", event.Kind, err)
		}
		records = append(records, &models.SyncEventRecord{
			WorkspaceID: workspaceID,
			DeviceID:    deviceID,
			EntityKind:  event.Kind,
			Operation:   event.Op,
			EntityID:    syncid.Normalize(event.Row.EntityID()),
			RowData:     rowData,
		})
	}
	if err := s.log.AppendBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to log push batch: %w", err)
	}

	// Parents before children, ties in insertion order.
	ordered := make([]models.ChangeEvent, len(valid))
	copy(ordered, valid)
	order.Sort(ordered)

	// Once an entity's change is skipped, every later change to it in this
	// batch is skipped too, so the whole chain is retried together. Applying
	// a later delete as "already deleted" while its create waits for retry
	// would resurrect the entity.
	skipped := make(map[string]bool)

	success := true
	for _, event := range ordered {
		key := string(event.Kind) + "/" + syncid.Normalize(event.Row.EntityID())
		var outcome models.ApplyOutcome
		if skipped[key] {
			outcome = models.ApplyOutcome{
				EventID:  event.ID,
				Kind:     event.Kind,
				EntityID: syncid.Normalize(event.Row.EntityID()),
				Status:   models.OutcomeSkipped,
				Reason:   "earlier change to this entity skipped",
			}
		} else {
			outcome = s.apply(ctx, workspaceID, event)
		}
		if outcome.Status == models.OutcomeSkipped {
			skipped[key] = true
		}
		if outcome.Status == models.OutcomeFatal {
			success = false
		}
		outcomes = append(outcomes, outcome)
	}

	return &models.PushResponse{Success: success, Outcomes: outcomes}, nil
}

func (s *PushService) apply(ctx context.Context, workspaceID uuid.UUID, event models.ChangeEvent) models.ApplyOutcome {
	row := syncid.NormalizeRow(event.Row)
	row.SetWorkspace(workspaceID.String())

	outcome := models.ApplyOutcome{
		EventID:  event.ID,
		Kind:     event.Kind,
		EntityID: row.EntityID(),
		Status:   models.OutcomeOK,
	}

	var err error
	switch event.Op {
	case models.OpCreate:
		err = s.entities.Create(ctx, workspaceID, row)
		switch {
		case err == nil:
		case isPgCode(err, pgUniqueViolation):
			// Already applied on a previous push. Idempotent retry.
			outcome.Reason = "already applied"
		case isPgCode(err, pgForeignKeyViolation):
			// Parent not pushed yet; the record alone is retried later.
			outcome.Status = models.OutcomeSkipped
			outcome.Reason = "unmet foreign key"
			s.logger.WithFields(logrus.Fields{
				"entity_kind": event.Kind,
				"entity_id":   row.EntityID(),
			}).Info("skipping create with unmet dependency")
		default:
			outcome.Status = models.OutcomeFatal
			outcome.Reason = err.Error()
		}
	case models.OpUpdate:
		err = s.entities.Update(ctx, workspaceID, row)
		switch {
		case err == nil:
		case errors.Is(err, repositories.ErrNotFound):
			// The create for this row has not landed yet; retry with it.
			outcome.Status = models.OutcomeSkipped
			outcome.Reason = "row not found"
		default:
			outcome.Status = models.OutcomeFatal
			outcome.Reason = err.Error()
		}
	case models.OpDelete:
		deletedAt := event.UpdatedAt
		if event.DeletedAt != nil {
			deletedAt = *event.DeletedAt
		}
		err = s.entities.SoftDelete(ctx, workspaceID, event.Kind, row.EntityID(), deletedAt)
		switch {
		case err == nil:
		case errors.Is(err, repositories.ErrNotFound):
			// Already tombstoned or never created. Either way the end state
			// matches.
			outcome.Reason = "already deleted"
		default:
			outcome.Status = models.OutcomeFatal
			outcome.Reason = err.Error()
		}
	default:
		outcome.Status = models.OutcomeFatal
		outcome.Reason = fmt.Sprintf("unknown operation %q", event.Op)
	}

	if outcome.Status == models.OutcomeFatal {
		s.logger.WithFields(logrus.Fields{
			"entity_kind": event.Kind,
			"entity_id":   row.EntityID(),
			"operation":   event.Op,
		}).WithError(err).Error("fatal apply error")
	}
	return outcome
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
