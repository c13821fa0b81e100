package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Backup moves the database file into a timestamped copy under a
// backups directory next to it and returns the new path. A missing
// database is not an error; the returned path is empty.
func Backup(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat database: %w", err)
	}

	backupDir := filepath.Join(filepath.Dir(path), "backups")
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	stamp := time.Now().Format("20060102_150405")
	backupPath := filepath.Join(backupDir, fmt.Sprintf("arxiv_monitor_%s.db", stamp))
	if err := os.Rename(path, backupPath); err != nil {
		return "", fmt.Errorf("move database to backup: %w", err)
	}
	return backupPath, nil
}
