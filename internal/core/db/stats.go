package db

import (
	"database/sql"
	"time"
)

// Stats represents database statistics
type Stats struct {
	TotalSessions          int
	TotalMessages          int
	TotalProjects          int
	OldestSession          time.Time
	NewestSession          time.Time
	MostActiveProject      string
	MostActiveProjectCount int
}

var timestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// GetStats returns index statistics
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := db.QueryRow("SELECT COUNT(*), COUNT(DISTINCT project_path) FROM sessions").Scan(&stats.TotalSessions, &stats.TotalProjects)
	if err != nil {
		return nil, err
	}

	err = db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&stats.TotalMessages)
	if err != nil {
		return nil, err
	}

	if stats.TotalSessions == 0 {
		return stats, nil
	}

	var minCreated, maxUpdated sql.NullString
	err = db.QueryRow("SELECT MIN(created_at), MAX(updated_at) FROM sessions").Scan(&minCreated, &maxUpdated)
	if err != nil {
		return nil, err
	}
	if minCreated.Valid {
		stats.OldestSession = parseTimestamp(minCreated.String)
	}
	if maxUpdated.Valid {
		stats.NewestSession = parseTimestamp(maxUpdated.String)
	}

	var mostActiveProject sql.NullString
	err = db.QueryRow(`
		SELECT project_path, COUNT(*) as count
		FROM sessions
		GROUP BY project_path
		ORDER BY count DESC
		LIMIT 1
	`).Scan(&mostActiveProject, &stats.MostActiveProjectCount)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if mostActiveProject.Valid {
		stats.MostActiveProject = mostActiveProject.String
	}

	return stats, nil
}
