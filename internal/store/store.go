// Package store holds the device-local entity collections, the per-user
// outbox of pending mutations, and the per-user sync watermark. It is the
// UI's only write path: every mutation is optimistic, synchronous, and
// appends exactly one ChangeEvent to the outbox before returning.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fieldledger/fieldledger/internal/models"
)

type Store struct {
	// One mutex covers entities, outbox and watermarks. Mutation is
	// single-writer (UI dispatch), but a background sync pass reads the
	// outbox and writes the watermark, so the slices must not interleave.
	mu sync.Mutex

	logger *logrus.Logger
	file   *stateFile // nil when running in memory only

	entities   map[models.EntityKind]map[string]models.EntityRow
	outbox     map[string][]models.ChangeEvent
	watermarks map[string]time.Time
}

// Open loads (or creates) a persisted store at path. Entity collections,
// outbox and watermarks are read back into memory; every later mutation and
// sync commit is written through.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	s := NewMemory(logger)
	file, err := openStateFile(path)
	if err != nil {
		return nil, err
	}
	s.file = file
	if err := file.load(s); err != nil {
		file.Close()
		return nil, err
	}
	return s, nil
}

// NewMemory returns a store with no on-disk backing. Used in tests and as the
// base for Open.
func NewMemory(logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Store{
		logger:     logger,
		entities:   make(map[models.EntityKind]map[string]models.EntityRow),
		outbox:     make(map[string][]models.ChangeEvent),
		watermarks: make(map[string]time.Time),
	}
	for _, kind := range models.AllKinds() {
		s.entities[kind] = make(map[string]models.EntityRow)
	}
	return s
}

func (s *Store) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// apply records a create or update: stamps the row, stores a snapshot, and
// queues exactly one ChangeEvent for userID. Local mutations never fail;
// persistence problems are logged and the in-memory state stands.
func (s *Store) apply(userID string, op models.Operation, row models.EntityRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	row.Touch(now, op == models.OpCreate)

	snapshot := row.Clone()
	s.entities[row.Kind()][row.EntityID()] = snapshot

	event := models.ChangeEvent{
		ID:        uuid.New().String(),
		Kind:      row.Kind(),
		Op:        op,
		Row:       snapshot.Clone(),
		UpdatedAt: now,
	}
	s.outbox[userID] = append(s.outbox[userID], event)

	s.persistEntity(snapshot)
	s.persistOutboxAppend(userID, event)
}

// softDelete stamps the tombstone and queues a delete event. The row is never
// physically removed; it drops out of active views but stays for replay.
func (s *Store) softDelete(userID string, kind models.EntityKind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entities[kind][id]
	if !ok {
		return
	}

	now := time.Now().UTC()
	row := existing.Clone()
	row.MarkDeleted(now)
	s.entities[kind][id] = row

	event := models.ChangeEvent{
		ID:        uuid.New().String(),
		Kind:      kind,
		Op:        models.OpDelete,
		Row:       row.Clone(),
		UpdatedAt: now,
		DeletedAt: row.Tombstone(),
	}
	s.outbox[userID] = append(s.outbox[userID], event)

	s.persistEntity(row)
	s.persistOutboxAppend(userID, event)
}

func (s *Store) get(kind models.EntityKind, id string) (models.EntityRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.entities[kind][id]
	if !ok || row.Tombstone() != nil {
		return nil, false
	}
	return row.Clone(), true
}

func (s *Store) listActive(kind models.EntityKind) []models.EntityRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.EntityRow
	for _, row := range s.entities[kind] {
		if row.Tombstone() == nil {
			out = append(out, row.Clone())
		}
	}
	return out
}

// ApplyRemote merges pulled changes in the order the server returned them.
// Last write wins per entity: an incoming snapshot replaces the local row
// unless the local row is strictly newer. Remote changes never re-enter the
// outbox.
func (s *Store) ApplyRemote(events []models.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range events {
		if !event.Valid() {
			s.logger.WithField("event_id", event.ID).Warn("dropping remote change without row")
			continue
		}
		incoming := event.Row.Clone()
		if event.Op == models.OpDelete && incoming.Tombstone() == nil {
			incoming.MarkDeleted(event.UpdatedAt)
		}

		existing, ok := s.entities[incoming.Kind()][incoming.EntityID()]
		if ok && existing.ModifiedAt().After(incoming.ModifiedAt()) {
			continue
		}
		s.entities[incoming.Kind()][incoming.EntityID()] = incoming
		s.persistEntity(incoming)
	}
}

// Outbox returns a copy of userID's pending changes in insertion order.
func (s *Store) Outbox(userID string) []models.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.outbox[userID]
	out := make([]models.ChangeEvent, len(pending))
	copy(out, pending)
	return out
}

// PendingCount reports the outbox length for userID.
func (s *Store) PendingCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outbox[userID])
}

// ClearPushed drops the first n events of userID's outbox after a successful
// push and re-queues any skipped events (unmet foreign keys) at the tail so
// they are retried on the next pass.
func (s *Store) ClearPushed(userID string, n int, requeue []models.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.outbox[userID]
	if n > len(pending) {
		n = len(pending)
	}
	remaining := append([]models.ChangeEvent{}, pending[n:]...)
	remaining = append(remaining, requeue...)
	s.outbox[userID] = remaining

	s.persistOutboxRewrite(userID, remaining)
}

// Watermark returns userID's last merged server time. ok is false when the
// device has never completed a pull and needs bootstrap.
func (s *Store) Watermark(userID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.watermarks[userID]
	return t, ok
}

func (s *Store) SetWatermark(userID string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.watermarks[userID] = t
	s.persistWatermark(userID, t)
}

// ClearWatermark forces the next pull to behave as bootstrap. This is the
// repair path for suspected stale local state.
func (s *Store) ClearWatermark(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.watermarks, userID)
	s.persistWatermarkDelete(userID)
}
