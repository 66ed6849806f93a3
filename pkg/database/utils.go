package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BackupPath returns the timestamped backup file name for dbPath
func BackupPath(dbPath string, at time.Time) string {
	ext := filepath.Ext(dbPath)
	return strings.TrimSuffix(dbPath, ext) + "_backup_" + at.Format("20060102_150405") + ext
}

// BackupDatabase writes a consistent copy of the open database next to the original
// and returns the backup path. VACUUM INTO includes pages still sitting in the WAL.
func BackupDatabase(ctx context.Context, db *Database, at time.Time) (string, error) {
	backupPath := BackupPath(db.Path(), at)

	if DatabaseExists(backupPath) {
		return "", fmt.Errorf("backup file already exists: %s", backupPath)
	}

	if _, err := db.DB().ExecContext(ctx, "VACUUM INTO ?", backupPath); err != nil {
		return "", fmt.Errorf("failed to back up database: %w", err)
	}

	return backupPath, nil
}

// DatabaseExists checks if a database file exists
func DatabaseExists(dbPath string) bool {
	_, err := os.Stat(dbPath)
	return !os.IsNotExist(err)
}

// GetDatabaseSize returns the size of the database file in bytes
func GetDatabaseSize(dbPath string) (int64, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get database file info: %w", err)
	}

	return info.Size(), nil
}
