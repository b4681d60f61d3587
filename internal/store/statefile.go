package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fieldledger/fieldledger/internal/models"
)

// stateFile persists the store to a single on-device sqlite file. It is a
// crash-consistent write-through snapshot, not a write-ahead log: every
// mutation upserts the entity row and appends the outbox event in place.
type stateFile struct {
	db *sql.DB
}

const stateSchema = `
CREATE TABLE IF NOT EXISTS entities (
	kind TEXT NOT NULL,
	id   TEXT NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS outbox (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	data    BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS watermarks (
	user_id   TEXT PRIMARY KEY,
	merged_at TEXT NOT NULL
);
`

func openStateFile(path string) (*stateFile, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	if _, err := db.Exec(stateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init state file schema: %w", err)
	}
	return &stateFile{db: db}, nil
}

func (f *stateFile) Close() error {
	return f.db.Close()
}

// load reads the persisted snapshot back into s. Called once at startup,
// before the store is shared.
func (f *stateFile) load(s *Store) error {
	rows, err := f.db.Query(`SELECT kind, id, data FROM entities`)
	if err != nil {
		return fmt.Errorf("failed to load entities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, id string
		var data []byte
		if err := rows.Scan(&kind, &id, &data); err != nil {
			return fmt.Errorf("failed to scan entity: %w", err)
		}
		row, err := models.DecodeRow(models.EntityKind(kind), data)
		if err != nil {
			return fmt.Errorf("failed to decode persisted %s %s: %w", kind, id, err)
		}
		s.entities[row.Kind()][row.EntityID()] = row
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating entities: %w", err)
	}

	obRows, err := f.db.Query(`SELECT user_id, data FROM outbox ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("failed to load outbox: %w", err)
	}
	defer obRows.Close()
	for obRows.Next() {
		var userID string
		var data []byte
		if err := obRows.Scan(&userID, &data); err != nil {
			return fmt.Errorf("failed to scan outbox row: %w", err)
		}
		var event models.ChangeEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("failed to decode persisted outbox event: %w", err)
		}
		s.outbox[userID] = append(s.outbox[userID], event)
	}
	if err := obRows.Err(); err != nil {
		return fmt.Errorf("error iterating outbox: %w", err)
	}

	wmRows, err := f.db.Query(`SELECT user_id, merged_at FROM watermarks`)
	if err != nil {
		return fmt.Errorf("failed to load watermarks: %w", err)
	}
	defer wmRows.Close()
	for wmRows.Next() {
		var userID, mergedAt string
		if err := wmRows.Scan(&userID, &mergedAt); err != nil {
			return fmt.Errorf("failed to scan watermark: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, mergedAt)
		if err != nil {
			return fmt.Errorf("failed to parse persisted watermark: %w", err)
		}
		s.watermarks[userID] = t
	}
	return wmRows.Err()
}

// Write-through helpers below are called with the store mutex held. They log
// rather than fail: local mutations are optimistic and must not surface
// persistence errors to the UI.

func (s *Store) persistEntity(row models.EntityRow) {
	if s.file == nil {
		return
	}
	data, err := json.Marshal(row)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode entity for state file")
		return
	}
	_, err = s.file.db.Exec(
		`INSERT INTO entities (kind, id, data) VALUES (?, ?, ?)
		 ON CONFLICT(kind, id) DO UPDATE SET data = excluded.data`,
		string(row.Kind()), row.EntityID(), data,
	)
	if err != nil {
		s.logger.WithError(err).Error("failed to persist entity")
	}
}

func (s *Store) persistOutboxAppend(userID string, event models.ChangeEvent) {
	if s.file == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode outbox event for state file")
		return
	}
	if _, err := s.file.db.Exec(`INSERT INTO outbox (user_id, data) VALUES (?, ?)`, userID, data); err != nil {
		s.logger.WithError(err).Error("failed to persist outbox event")
	}
}

func (s *Store) persistOutboxRewrite(userID string, events []models.ChangeEvent) {
	if s.file == nil {
		return
	}
	tx, err := s.file.db.Begin()
	if err != nil {
		s.logger.WithError(err).Error("failed to begin outbox rewrite")
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM outbox WHERE user_id = ?`, userID); err != nil {
		s.logger.WithError(err).Error("failed to clear persisted outbox")
		return
	}
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			s.logger.WithError(err).Error("failed to encode outbox event for state file")
			return
		}
		if _, err := tx.Exec(`INSERT INTO outbox (user_id, data) VALUES (?, ?)`, userID, data); err != nil {
			s.logger.WithError(err).Error("failed to persist outbox event")
			return
		}
	}
	if err := tx.Commit(); err != nil {
		s.logger.WithError(err).Error("failed to commit outbox rewrite")
	}
}

func (s *Store) persistWatermark(userID string, t time.Time) {
	if s.file == nil {
		return
	}
	_, err := s.file.db.Exec(
		`INSERT INTO watermarks (user_id, merged_at) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET merged_at = excluded.merged_at`,
		userID, t.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.logger.WithError(err).Error("failed to persist watermark")
	}
}

func (s *Store) persistWatermarkDelete(userID string) {
	if s.file == nil {
		return
	}
	if _, err := s.file.db.Exec(`DELETE FROM watermarks WHERE user_id = ?`, userID); err != nil {
		s.logger.WithError(err).Error("failed to clear persisted watermark")
	}
}
