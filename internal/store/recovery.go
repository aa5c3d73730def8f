package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/types"
)

// ErrRecoveryPointNotFound is returned when the id is unknown or pruned.
var ErrRecoveryPointNotFound = errors.New("recovery point not found")

const (
	recoveryPointTTL = 14 * 24 * time.Hour
	recoveryPointCap = 100
)

// SaveRecoveryPoint persists a recovery point and prunes old entries past
// the TTL or capacity.
func (s *Store) SaveRecoveryPoint(rp types.RecoveryPoint) error {
	filesJSON, err := json.Marshal(rp.Files)
	if err != nil {
		return fmt.Errorf("marshal recovery point files: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO recovery_points (id, created_at, files_json) VALUES (?, ?, ?)`,
		rp.ID, rp.CreatedAt.Format(time.RFC3339Nano), string(filesJSON),
	)
	if err != nil {
		return fmt.Errorf("insert recovery point %s: %w", rp.ID, err)
	}

	return s.pruneRecoveryPoints()
}

// GetRecoveryPoint loads a recovery point by id.
func (s *Store) GetRecoveryPoint(id string) (types.RecoveryPoint, error) {
	var rp types.RecoveryPoint
	var createdAt, filesJSON string

	err := s.db.QueryRow(
		`SELECT id, created_at, files_json FROM recovery_points WHERE id = ?`, id,
	).Scan(&rp.ID, &createdAt, &filesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return rp, ErrRecoveryPointNotFound
	}
	if err != nil {
		return rp, fmt.Errorf("query recovery point %s: %w", id, err)
	}

	rp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return rp, fmt.Errorf("parse recovery point timestamp: %w", err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &rp.Files); err != nil {
		return rp, fmt.Errorf("unmarshal recovery point files: %w", err)
	}
	return rp, nil
}

// ListRecoveryPoints returns all retained recovery points, newest first.
func (s *Store) ListRecoveryPoints() ([]types.RecoveryPoint, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, files_json FROM recovery_points ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list recovery points: %w", err)
	}
	defer rows.Close()

	var points []types.RecoveryPoint
	for rows.Next() {
		var rp types.RecoveryPoint
		var createdAt, filesJSON string
		if err := rows.Scan(&rp.ID, &createdAt, &filesJSON); err != nil {
			return nil, err
		}
		if rp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(filesJSON), &rp.Files); err != nil {
			continue
		}
		points = append(points, rp)
	}
	return points, rows.Err()
}

func (s *Store) pruneRecoveryPoints() error {
	cutoff := time.Now().Add(-recoveryPointTTL).Format(time.RFC3339Nano)
	if _, err := s.db.Exec(`DELETE FROM recovery_points WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("prune recovery points by ttl: %w", err)
	}
	_, err := s.db.Exec(`
		DELETE FROM recovery_points WHERE id NOT IN (
			SELECT id FROM recovery_points ORDER BY created_at DESC LIMIT ?
		)`, recoveryPointCap)
	if err != nil {
		return fmt.Errorf("prune recovery points by capacity: %w", err)
	}
	return nil
}
