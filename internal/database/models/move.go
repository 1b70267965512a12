package models

import (
	"database/sql"
	"time"
)

// Move is one recorded file relocation, including dry-run previews.
type Move struct {
	ID      int       `json:"id" db:"id"`
	SceneID string    `json:"scene_id" db:"scene_id"`
	FileID  string    `json:"file_id" db:"file_id"`
	Src     string    `json:"src" db:"src"`
	Dst     string    `json:"dst" db:"dst"`
	DryRun  bool      `json:"dry_run" db:"dry_run"`
	MovedAt time.Time `json:"moved_at" db:"moved_at"`
}

type MoveRepository struct {
	db *sql.DB
}

func NewMoveRepository(db *sql.DB) *MoveRepository {
	return &MoveRepository{db: db}
}

func (r *MoveRepository) Record(sceneID, fileID, src, dst string, dryRun bool) error {
	_, err := r.db.Exec(`
        INSERT INTO moves (scene_id, file_id, src, dst, dry_run)
        VALUES (?, ?, ?, ?, ?)
    `, sceneID, fileID, src, dst, dryRun)
	return err
}

// Recent returns the latest n moves, newest first.
func (r *MoveRepository) Recent(n int) ([]Move, error) {
	rows, err := r.db.Query(`
        SELECT id, scene_id, file_id, src, dst, dry_run, moved_at
        FROM moves ORDER BY moved_at DESC, id DESC LIMIT ?
    `, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var moves []Move
	for rows.Next() {
		var m Move
		if err := rows.Scan(&m.ID, &m.SceneID, &m.FileID, &m.Src, &m.Dst, &m.DryRun, &m.MovedAt); err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}
