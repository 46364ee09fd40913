// Package backup takes consistent snapshots of the SQLite database and keeps
// the newest few in a local directory or an S3-compatible bucket.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	namePrefix   = "taskcal-"
	plainSuffix  = ".db"
	sealedSuffix = ".db.enc"
	stampLayout  = "20060102T150405Z"
)

// DefaultKeep is how many snapshots survive pruning when Config.Keep is unset.
const DefaultKeep = 14

// Config holds backup manager configuration.
type Config struct {
	// Passphrase, when set, encrypts every snapshot.
	Passphrase string
	Keep       int
}

// State represents the backup manager state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateError   State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	Target     string     `json:"target"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	LastName   string     `json:"last_name,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager snapshots the database into a Target.
type Manager struct {
	mu       sync.RWMutex
	run      sync.Mutex
	cfg      Config
	db       *sql.DB
	target   Target
	status   Status
	callback StatusCallback
	now      func() time.Time
	logger   *slog.Logger
}

func NewManager(cfg Config, db *sql.DB, target Target, callback StatusCallback, logger *slog.Logger) *Manager {
	if cfg.Keep <= 0 {
		cfg.Keep = DefaultKeep
	}
	return &Manager{
		cfg:      cfg,
		db:       db,
		target:   target,
		status:   Status{State: StateIdle, Target: target.String()},
		callback: callback,
		now:      time.Now,
		logger:   logger,
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	s.Target = m.status.Target
	if s.LastBackup == nil {
		s.LastBackup, s.LastName = m.status.LastBackup, m.status.LastName
	}
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

// Run writes a snapshot, stores it in the target and prunes old ones. It
// returns the snapshot name.
func (m *Manager) Run(ctx context.Context) (string, error) {
	m.run.Lock()
	defer m.run.Unlock()

	m.setStatus(Status{State: StateRunning})
	name, err := m.snapshot(ctx)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return "", err
	}

	now := m.now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now, LastName: name})
	m.logger.Info("backup complete", "name", name, "target", m.target.String())

	if removed, err := m.Prune(ctx); err != nil {
		m.logger.Warn("backup prune failed", "error", err)
	} else if removed > 0 {
		m.logger.Info("old backups removed", "count", removed)
	}
	return name, nil
}

func (m *Manager) snapshot(ctx context.Context) (string, error) {
	stamp := m.now().UTC().Format(stampLayout)
	name := namePrefix + stamp + plainSuffix
	if m.cfg.Passphrase != "" {
		name = namePrefix + stamp + sealedSuffix
	}

	tmpDir, err := os.MkdirTemp("", "taskcal-backup-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	copyPath := filepath.Join(tmpDir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO "+quote(copyPath)); err != nil {
		return "", fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(copyPath)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	if m.cfg.Passphrase != "" {
		if data, err = Seal(data, m.cfg.Passphrase); err != nil {
			return "", fmt.Errorf("encrypt: %w", err)
		}
	}
	if err := m.target.Put(ctx, name, data); err != nil {
		return "", err
	}
	return name, nil
}

// List returns stored snapshot names, oldest first.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.target.List(ctx)
}

// Prune deletes all but the newest Keep snapshots and reports how many it
// removed.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	names, err := m.target.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(names) <= m.cfg.Keep {
		return 0, nil
	}
	var errs []error
	removed := 0
	for _, name := range names[:len(names)-m.cfg.Keep] {
		if err := m.target.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Restore fetches the named snapshot, decrypts it if needed, checks its
// integrity and writes it to dst. dst must not be the live database.
func (m *Manager) Restore(ctx context.Context, name, dst string) error {
	if !isSnapshotName(name) {
		return fmt.Errorf("%q is not a snapshot name", name)
	}
	data, err := m.target.Get(ctx, name)
	if err != nil {
		return err
	}
	if strings.HasSuffix(name, sealedSuffix) {
		if m.cfg.Passphrase == "" {
			return fmt.Errorf("snapshot %s is encrypted and no passphrase is configured", name)
		}
		if data, err = Open(data, m.cfg.Passphrase); err != nil {
			return err
		}
	}

	tmp := dst + ".restore"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")
	m.logger.Info("backup restored", "name", name, "path", dst)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func isSnapshotName(name string) bool {
	return strings.HasPrefix(name, namePrefix) &&
		(strings.HasSuffix(name, plainSuffix) || strings.HasSuffix(name, sealedSuffix))
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
