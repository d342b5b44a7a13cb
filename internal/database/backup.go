package database

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Backup copies the database file into dir before a destructive operation
// (currently only the legacy schema upgrade). Returns the backup path.
func Backup(dbPath, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir backup dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s-%s.db",
		filepath.Base(dbPath),
		time.Now().UTC().Format("20060102-150405"),
		uuid.NewString()[:8])
	dst := filepath.Join(dir, name)

	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("open db for backup: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("copy backup: %w", err)
	}
	return dst, nil
}
