package file

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// RotateConfig controls size-based rotation.
type RotateConfig struct {
	// FilePath is the active file name (required).
	FilePath string

	// MaxBytes triggers rotation before a write that would take the active
	// file past this size. Zero disables rotation.
	MaxBytes int64

	// MaxBackups is the number of rotated files to keep. Zero keeps all.
	MaxBackups int
}

// RotatingFile is an io.WriteCloser that renames the active file to
// <path>.1 (shifting older backups to .2, .3, …) once it reaches MaxBytes.
// It is safe for concurrent use.
type RotatingFile struct {
	mu     sync.Mutex
	cfg    RotateConfig
	file   *os.File
	size   int64
	logger *slog.Logger
}

// NewRotatingFile opens (or creates) cfg.FilePath, creating parent
// directories as needed. The caller must call Close when finished.
func NewRotatingFile(cfg RotateConfig, logger *slog.Logger) (*RotatingFile, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("transport/file: rotate: FilePath is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transport/file: rotate: mkdir %s: %w", dir, err)
	}

	rf := &RotatingFile{cfg: cfg, logger: logger}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

// Write implements io.Writer. A record is never split across files.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, fs.ErrClosed
	}
	if rf.cfg.MaxBytes > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.cfg.MaxBytes {
		if err := rf.rotate(); err != nil {
			// Keep writing to whatever is open rather than drop the report.
			rf.logger.Error("transport/file: rotate failed", "file", rf.cfg.FilePath, "error", err.Error())
			if rf.file == nil {
				return 0, err
			}
		}
	}

	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

// Close closes the active file. Further writes fail with fs.ErrClosed.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}

func (rf *RotatingFile) open() error {
	f, err := os.OpenFile(rf.cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("transport/file: rotate: open %s: %w", rf.cfg.FilePath, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("transport/file: rotate: stat %s: %w", rf.cfg.FilePath, err)
	}
	rf.file = f
	rf.size = info.Size()
	return nil
}

// rotate closes the active file, shifts backups up by one and opens a fresh
// file. With MaxBackups > 0 the backup that would become .MaxBackups+1 is
// removed.
func (rf *RotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		rf.logger.Warn("transport/file: rotate: close", "error", err.Error())
	}
	rf.file = nil

	top := rf.cfg.MaxBackups
	if top == 0 {
		top = rf.highestBackup()
	} else {
		_ = os.Remove(rf.backup(top))
	}
	for i := top; i >= 1; i-- {
		if err := os.Rename(rf.backup(i), rf.backup(i+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			rf.logger.Warn("transport/file: rotate: shift", "file", rf.backup(i), "error", err.Error())
		}
	}
	if err := os.Rename(rf.cfg.FilePath, rf.backup(1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		rf.logger.Warn("transport/file: rotate: rename", "error", err.Error())
	}
	if rf.cfg.MaxBackups > 0 {
		rf.prune()
	}

	rf.logger.Info("transport/file: rotated", "file", rf.cfg.FilePath)
	return rf.open()
}

func (rf *RotatingFile) backup(i int) string {
	return fmt.Sprintf("%s.%d", rf.cfg.FilePath, i)
}

func (rf *RotatingFile) highestBackup() int {
	n := 0
	for {
		if _, err := os.Stat(rf.backup(n + 1)); err != nil {
			return n
		}
		n++
	}
}

// prune removes backups numbered above MaxBackups.
func (rf *RotatingFile) prune() {
	for i := rf.cfg.MaxBackups + 1; ; i++ {
		if err := os.Remove(rf.backup(i)); err != nil {
			return
		}
		rf.logger.Debug("transport/file: pruned backup", "file", rf.backup(i))
	}
}
