// Package tempfile manages the per-image temp copies written during OCR.
//
// Every file is named {uuid-v4}-{original name}. The random prefix keeps
// concurrent requests sharing one temp directory from colliding, and lets a
// later scan recognise files this service owns.
package tempfile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// prefixLen is the canonical uuid string length.
const prefixLen = 36

// Logger is the logging capability the manager needs. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Manager creates and removes temp copies in Dir.
type Manager struct {
	// Dir is the directory temp copies live in. Empty means os.TempDir().
	Dir string

	// MinOrphanAge protects files of in-flight requests from orphan sweeps.
	// Zero treats every matching file as an orphan.
	MinOrphanAge time.Duration

	Log Logger

	now func() time.Time
}

// New returns a Manager for dir.
func New(dir string, minOrphanAge time.Duration, log Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{Dir: dir, MinOrphanAge: minOrphanAge, Log: log, now: time.Now}
}

func (m *Manager) dir() string {
	if m.Dir == "" {
		return os.TempDir()
	}
	return m.Dir
}

func (m *Manager) logger() Logger {
	if m.Log == nil {
		return slog.Default()
	}
	return m.Log
}

// CreateTempCopy writes data to a new uniquely named file and returns its path.
func (m *Manager) CreateTempCopy(data []byte, originalName string) (string, error) {
	base := filepath.Base(originalName)
	if base == "." || base == string(filepath.Separator) {
		base = "image"
	}
	path := filepath.Join(m.dir(), uuid.NewString()+"-"+base)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	m.logger().Debug("temp file created", "path", path, "bytes", len(data))
	return path, nil
}

// CleanupResult reports what Cleanup did.
type CleanupResult struct {
	Deleted int
	Failed  int
}

// Cleanup removes each path. Files that are already gone count as neither
// deleted nor failed. Failures are logged, never returned.
func (m *Manager) Cleanup(paths []string) CleanupResult {
	var res CleanupResult
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := os.Remove(p)
		switch {
		case err == nil:
			res.Deleted++
		case errors.Is(err, fs.ErrNotExist):
		default:
			res.Failed++
			m.logger().Warn("temp file cleanup failed", "path", p, "error", err)
		}
	}
	return res
}

// IsOwnedName reports whether name starts with a v4 uuid followed by '-'.
func IsOwnedName(name string) bool {
	if len(name) <= prefixLen || name[prefixLen] != '-' {
		return false
	}
	id, err := uuid.Parse(name[:prefixLen])
	if err != nil {
		return false
	}
	return id.Version() == 4 && id.Variant() == uuid.RFC4122
}

// ScanForOrphans lists files in Dir that this service created and that are
// older than MinOrphanAge.
func (m *Manager) ScanForOrphans() ([]string, error) {
	entries, err := os.ReadDir(m.dir())
	if err != nil {
		return nil, fmt.Errorf("listing temp dir: %w", err)
	}

	now := m.now
	if now == nil {
		now = time.Now
	}
	cutoff := now().Add(-m.MinOrphanAge)

	var orphans []string
	for _, e := range entries {
		if e.IsDir() || !IsOwnedName(e.Name()) {
			continue
		}
		if m.MinOrphanAge > 0 {
			info, err := e.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
		}
		orphans = append(orphans, filepath.Join(m.dir(), e.Name()))
	}
	return orphans, nil
}

// CleanupOrphans scans and removes orphans, returning how many were deleted.
// It never fails the caller.
func (m *Manager) CleanupOrphans() int {
	orphans, err := m.ScanForOrphans()
	if err != nil {
		m.logger().Warn("orphan scan failed", "dir", m.dir(), "error", err)
		return 0
	}
	if len(orphans) == 0 {
		return 0
	}
	res := m.Cleanup(orphans)
	m.logger().Info("orphaned temp files removed", "deleted", res.Deleted, "failed", res.Failed)
	return res.Deleted
}
