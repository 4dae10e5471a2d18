// Package sqlite persists reader progress and predefined story graphs in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/branchtale/pkg/domain"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store implements ports.ProgressStore on a SQLite database.
// The same handle serves graph seeding and loading.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save upserts the user's progress row.
func (s *Store) Save(ctx context.Context, userID string, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	narrative, err := json.Marshal(session.Narrative)
	if err != nil {
		return fmt.Errorf("marshal narrative: %w", err)
	}
	path := session.Path
	if path == nil {
		path = []string{}
	}
	pathJSON, err := json.Marshal(path)
	if err != nil {
		return fmt.Errorf("marshal path: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO user_progress (
		   user_id,
		   mode,
		   status,
		   current_story_id,
		   narrative,
		   path,
		   created_at,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   mode = excluded.mode,
		   status = excluded.status,
		   current_story_id = excluded.current_story_id,
		   narrative = excluded.narrative,
		   path = excluded.path,
		   created_at = excluded.created_at,
		   updated_at = excluded.updated_at`,
		userID,
		string(session.Mode),
		string(session.Status),
		session.CurrentNodeID,
		string(narrative),
		string(pathJSON),
		toMillis(session.CreatedAt),
		toMillis(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// Load returns the user's progress or domain.ErrSessionNotFound.
func (s *Store) Load(ctx context.Context, userID string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT mode, status, current_story_id, narrative, path, created_at, updated_at
		 FROM user_progress WHERE user_id = ?`,
		userID,
	)

	var (
		mode, status, current string
		narrative, path       string
		createdAt, updatedAt  int64
	)
	if err := row.Scan(&mode, &status, &current, &narrative, &path, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load progress: %w", err)
	}

	session := &domain.Session{
		UserID:        userID,
		CurrentNodeID: current,
		Mode:          domain.SessionMode(mode),
		Status:        domain.SessionStatus(status),
		CreatedAt:     fromMillis(createdAt),
		UpdatedAt:     fromMillis(updatedAt),
	}
	if err := json.Unmarshal([]byte(narrative), &session.Narrative); err != nil {
		return nil, fmt.Errorf("decode narrative: %w", err)
	}
	if err := json.Unmarshal([]byte(path), &session.Path); err != nil {
		return nil, fmt.Errorf("decode path: %w", err)
	}
	if len(session.Path) == 0 {
		session.Path = nil
	}
	return session, nil
}

// List returns every user with stored progress.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT user_id FROM user_progress ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return users, nil
}
