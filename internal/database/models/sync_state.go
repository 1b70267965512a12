package models

import (
	"database/sql"
	"time"
)

// SyncState tracks when an entity was last pushed to the media server and
// whether that attempt succeeded.
type SyncState struct {
	EntityKind   string     `json:"entity_kind" db:"entity_kind"`
	EntityID     string     `json:"entity_id" db:"entity_id"`
	Name         string     `json:"name" db:"name"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
	LastError    *string    `json:"last_error,omitempty" db:"last_error"`
}

type SyncStateRepository struct {
	db *sql.DB
}

func NewSyncStateRepository(db *sql.DB) *SyncStateRepository {
	return &SyncStateRepository{db: db}
}

// Upsert records the outcome of a sync attempt. An empty lastError marks
// success and stamps last_synced_at.
func (r *SyncStateRepository) Upsert(entityKind, entityID, name, lastError string) error {
	var query string
	var args []interface{}
	if lastError == "" {
		query = `
            INSERT INTO sync_state (entity_kind, entity_id, name, last_synced_at, last_error)
            VALUES (?, ?, ?, CURRENT_TIMESTAMP, NULL)
            ON CONFLICT(entity_kind, entity_id) DO UPDATE SET
                name = excluded.name, last_synced_at = CURRENT_TIMESTAMP, last_error = NULL
        `
		args = []interface{}{entityKind, entityID, name}
	} else {
		query = `
            INSERT INTO sync_state (entity_kind, entity_id, name, last_error)
            VALUES (?, ?, ?, ?)
            ON CONFLICT(entity_kind, entity_id) DO UPDATE SET
                name = excluded.name, last_error = excluded.last_error
        `
		args = []interface{}{entityKind, entityID, name, lastError}
	}
	_, err := r.db.Exec(query, args...)
	return err
}

func (r *SyncStateRepository) Get(entityKind, entityID string) (*SyncState, error) {
	row := r.db.QueryRow(`
        SELECT entity_kind, entity_id, name, last_synced_at, last_error
        FROM sync_state WHERE entity_kind = ? AND entity_id = ?
    `, entityKind, entityID)

	var s SyncState
	err := row.Scan(&s.EntityKind, &s.EntityID, &s.Name, &s.LastSyncedAt, &s.LastError)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
