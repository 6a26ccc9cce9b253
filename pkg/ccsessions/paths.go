package ccsessions

import (
	"path/filepath"
	"strings"
)

// DecodeProjectPath turns a projects/ folder name back into the working
// directory it was created for. The encoding is lossy: a dash in the original
// path also comes back as a slash.
func DecodeProjectPath(folder string) string {
	return strings.ReplaceAll(folder, "-", "/")
}

// EncodeProjectPath is the inverse of DecodeProjectPath
func EncodeProjectPath(projectPath string) string {
	return strings.ReplaceAll(projectPath, "/", "-")
}

// ProjectDisplay shortens an absolute project path to its last two segments
func ProjectDisplay(projectPath string) string {
	if !strings.HasPrefix(projectPath, "/") {
		return projectPath
	}
	parts := strings.Split(projectPath, "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return strings.Join(parts, "/")
}

// SessionPath is the JSONL file holding a session's log
func SessionPath(claudeDir, projectPath, sessionID string) string {
	return filepath.Join(claudeDir, "projects", EncodeProjectPath(projectPath), sessionID+".jsonl")
}
