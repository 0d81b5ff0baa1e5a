// Package mismatchlog writes identity drift entries to an append-only text
// file for operators to review.
package mismatchlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/dealtracker/backend/internal/application/ingest"
	"github.com/dealtracker/backend/internal/domain/listing"
)

// FileLog appends formatted entries to a file, creating it and its parent
// directory on first use. Existing content is never rewritten.
type FileLog struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	file *os.File
}

var _ ingest.MismatchLog = (*FileLog)(nil)

// NewFileLog returns a log writing to path. The file is opened lazily so a
// run without drift leaves no file behind.
func NewFileLog(path string, logger *zap.Logger) *FileLog {
	return &FileLog{path: path, logger: logger.Named("mismatch_log")}
}

// Path returns the file the log writes to.
func (l *FileLog) Path() string {
	return l.path
}

// Append writes one entry. Each entry is written with a single write call so
// entries from separate processes sharing the file do not interleave.
func (l *FileLog) Append(_ context.Context, entry listing.MismatchLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			return fmt.Errorf("create mismatch log directory: %w", err)
		}
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return fmt.Errorf("open mismatch log: %w", err)
		}
		l.file = f
	}

	if _, err := l.file.WriteString(entry.Format()); err != nil {
		return fmt.Errorf("write mismatch log: %w", err)
	}
	l.logger.Debug("Mismatch logged",
		zap.String("product_code", entry.ProductCode),
		zap.Int("drifts", len(entry.Drifts)),
	)
	return nil
}

// Close syncs and closes the file if it was opened.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil
	if syncErr != nil {
		return fmt.Errorf("sync mismatch log: %w", syncErr)
	}
	return closeErr
}
