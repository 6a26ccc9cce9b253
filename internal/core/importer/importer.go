package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/neilberkman/ccdash/internal/core/db"
	"github.com/neilberkman/ccdash/internal/core/models"
	"github.com/neilberkman/ccdash/pkg/ccsessions"
)

// Importer handles importing sessions into the database
type Importer struct {
	db     *db.DB
	logger *slog.Logger
}

// New creates a new importer
func New(database *db.DB) *Importer {
	return &Importer{db: database, logger: slog.Default()}
}

// WithLogger sets the logger used for skipped files
func (i *Importer) WithLogger(l *slog.Logger) *Importer {
	i.logger = l
	return i
}

// Result summarizes an import run
type Result struct {
	Imported int
	Skipped  int
	Failed   int
	Pruned   int
}

// ImportSession imports a single parsed session. A file whose path and
// content hash were already imported is skipped; a changed file replaces the previous rows
// for the same session.
func (i *Importer) ImportSession(ctx context.Context, session *ccsessions.ParsedSession) (imported bool, err error) {
	hash, err := computeFileHash(session.FilePath)
	if err != nil {
		return false, fmt.Errorf("failed to hash file: %w", err)
	}

	var exists bool
	err = i.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM import_log WHERE file_path = ? AND file_hash = ? AND status = 'success')", session.FilePath, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check import log: %w", err)
	}
	if exists {
		return false, nil
	}

	tx, err := i.db.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	projectPath := ccsessions.DecodeProjectPath(filepath.Base(filepath.Dir(session.FilePath)))
	meta := ccsessions.BuildMeta(session.SessionID, projectPath, session.Entries)

	createdAt, updatedAt := session.FileMtime, session.FileMtime
	if len(session.Messages) > 0 {
		if ts := session.Messages[0].Timestamp; !ts.IsZero() {
			createdAt = ts
		}
		if ts := session.Messages[len(session.Messages)-1].Timestamp; !ts.IsZero() {
			updatedAt = ts
		}
	}

	// Replace any earlier import of this session; messages cascade
	_, err = tx.ExecContext(ctx, `DELETE FROM sessions WHERE project_path = ? AND session_id = ?`, meta.ProjectPath, meta.ID)
	if err != nil {
		return false, fmt.Errorf("failed to remove previous import: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, project_path, project_display, summary, leaf_uuid,
			last_timestamp, message_count, created_at, updated_at,
			file_path, file_hash, file_size, file_mtime
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		meta.ID,
		meta.ProjectPath,
		meta.ProjectDisplay,
		meta.Summary,
		session.LeafUUID,
		meta.LastTimestamp,
		meta.MessageCount,
		createdAt,
		updatedAt,
		session.FilePath,
		hash,
		session.FileSize,
		session.FileMtime,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert session: %w", err)
	}

	sessionDBID, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get session ID: %w", err)
	}

	messages := 0
	for _, msg := range session.Messages {
		if msg.Type != string(models.MessageTypeUser) && msg.Type != string(models.MessageTypeAssistant) {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (
				uuid, session_id, parent_uuid, type, sender,
				content, text_content, timestamp, sequence,
				is_sidechain, cwd, git_branch
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			msg.UUID,
			sessionDBID,
			msg.ParentUUID,
			msg.Type,
			msg.Sender,
			string(msg.Content),
			msg.TextContent,
			msg.RawTime,
			msg.Sequence,
			msg.IsSidechain,
			msg.CWD,
			msg.GitBranch,
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert message %d: %w", msg.Sequence, err)
		}
		messages++
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO import_log (file_path, file_hash, sessions_imported, messages_imported, status)
		VALUES (?, ?, 1, ?, 'success')
	`, session.FilePath, hash, messages)
	if err != nil {
		return false, fmt.Errorf("failed to record import: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	return true, nil
}

// ImportFile parses and imports one session file
func (i *Importer) ImportFile(ctx context.Context, path string) (bool, error) {
	session, err := ccsessions.ParseFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return i.ImportSession(ctx, session)
}

// ImportDirectory imports all sessions under a Claude projects directory.
// Individual file failures are logged and counted, not returned.
func (i *Importer) ImportDirectory(ctx context.Context, dirPath string, progress ProgressCallback) (*Result, error) {
	files, err := FindSessionFiles(dirPath)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		imported, err := i.ImportFile(ctx, file)
		if err != nil {
			i.logger.Warn("failed to import session", "path", file, "error", err)
			res.Failed++
			continue
		}
		if imported {
			res.Imported++
		} else {
			res.Skipped++
		}

		if progress != nil {
			progress.Update(filepath.Base(file), filepath.Base(filepath.Dir(file)))
		}
	}

	pruned, err := i.Prune(ctx)
	if err != nil {
		return res, err
	}
	res.Pruned = pruned

	if progress != nil {
		progress.Finish()
	}

	return res, nil
}

// FindSessionFiles lists every .jsonl file under dirPath. A missing
// directory yields no files.
func FindSessionFiles(dirPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".jsonl" {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return files, nil
}

// Prune removes indexed sessions whose file no longer exists
func (i *Importer) Prune(ctx context.Context) (int, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT id, file_path FROM sessions WHERE file_path IS NOT NULL AND file_path != ''`)
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed files: %w", err)
	}

	var stale []int64
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			_ = rows.Close()
			return 0, err
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		if _, err := i.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("failed to prune session: %w", err)
		}
	}
	return len(stale), nil
}

func computeFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
