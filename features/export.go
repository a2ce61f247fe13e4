package features

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Uploader stores an exported table remotely. storage.S3Uploader implements it.
type Uploader interface {
	TableKey(name string, at time.Time) string
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	URL(key string) string
}

// WriteFile writes the table as CSV to path, creating parent directories.
func WriteFile(table *Table, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := table.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Publish uploads the table as CSV under a timestamped key and returns its URL.
func Publish(ctx context.Context, table *Table, u Uploader, name string, at time.Time) (string, error) {
	data, err := table.CSV()
	if err != nil {
		return "", err
	}
	key := u.TableKey(name, at)
	if err := u.Upload(ctx, key, data, "text/csv; charset=utf-8"); err != nil {
		return "", err
	}
	url := u.URL(key)
	log.Printf("[info] Features: uploaded %d rows to %s", table.Len(), url)
	return url, nil
}
