package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neilberkman/ccdash/internal/core/models"
)

// ErrSessionNotFound is returned when no indexed session has the given ID
var ErrSessionNotFound = errors.New("session not found")

const sessionMetaColumns = `
	s.session_id,
	s.project_path,
	COALESCE(s.project_display, ''),
	COALESCE(s.summary, ''),
	COALESCE(s.last_timestamp, ''),
	s.message_count`

func scanMeta(row interface{ Scan(...any) error }) (models.SessionMeta, error) {
	var m models.SessionMeta
	err := row.Scan(&m.ID, &m.ProjectPath, &m.ProjectDisplay, &m.Summary, &m.LastTimestamp, &m.MessageCount)
	return m, err
}

// ListSessions returns indexed sessions, most recent first, optionally
// filtered by a project path substring
func (db *DB) ListSessions(ctx context.Context, projectPath string, limit int) ([]models.SessionMeta, error) {
	query := `SELECT` + sessionMetaColumns + ` FROM sessions s`

	args := []interface{}{}
	if projectPath != "" {
		query += " WHERE s.project_path LIKE ?"
		args = append(args, "%"+projectPath+"%")
	}

	if limit <= 0 {
		limit = 1000
	}
	query += ` ORDER BY s.last_timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.SessionMeta, 0)
	for rows.Next() {
		m, err := scanMeta(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, m)
	}

	return sessions, rows.Err()
}

// GetSessionMeta looks up a session by ID. When the same ID exists under
// several projects the most recent one wins.
func (db *DB) GetSessionMeta(ctx context.Context, sessionID string) (*models.SessionMeta, error) {
	row := db.QueryRowContext(ctx, `SELECT`+sessionMetaColumns+`
		FROM sessions s
		WHERE s.session_id = ?
		ORDER BY s.last_timestamp DESC
		LIMIT 1
	`, sessionID)

	m, err := scanMeta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &m, nil
}

// GetSessionLaunchInfo returns the session and the last working directory
// recorded in it, falling back to the project path
func (db *DB) GetSessionLaunchInfo(ctx context.Context, sessionID string) (*models.SessionMeta, string, error) {
	meta, err := db.GetSessionMeta(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}

	var lastCwd string
	err = db.QueryRowContext(ctx, `
		SELECT COALESCE(
			(SELECT m.cwd FROM messages m
			 JOIN sessions s ON s.id = m.session_id
			 WHERE s.session_id = ? AND s.project_path = ?
			   AND m.cwd IS NOT NULL
			   AND m.cwd != ''
			   AND m.cwd != '/'
			 ORDER BY m.sequence DESC LIMIT 1),
			?
		)
	`, sessionID, meta.ProjectPath, meta.ProjectPath).Scan(&lastCwd)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get last cwd: %w", err)
	}

	return meta, lastCwd, nil
}
