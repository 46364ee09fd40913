package handler

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dukerupert/taskcal/internal/backup"
	"github.com/dukerupert/taskcal/internal/database"
)

func TestBackupRunAndList(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "taskcal.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	dir := t.TempDir()
	m := backup.NewManager(backup.Config{}, db, backup.DirTarget{Dir: dir}, nil, slog.Default())
	h := NewBackupHandler(m, slog.Default())

	rec := serve(h.List, request(http.MethodGet, "/api/backups", nil, nil))
	expectStatus(t, rec, http.StatusOK)
	empty := decode[backupListing](t, rec)
	if empty.Snapshots == nil || len(empty.Snapshots) != 0 {
		t.Errorf("snapshots = %#v, want empty list", empty.Snapshots)
	}
	if empty.Status.State != backup.StateIdle || empty.Status.Target != "dir:"+dir {
		t.Errorf("status = %+v", empty.Status)
	}

	rec = serve(h.Run, request(http.MethodPost, "/api/backups", nil, nil))
	expectStatus(t, rec, http.StatusCreated)
	name := decode[map[string]string](t, rec)["name"]
	if !strings.HasPrefix(name, "taskcal-") || !strings.HasSuffix(name, ".db") {
		t.Fatalf("name = %q", name)
	}

	rec = serve(h.List, request(http.MethodGet, "/api/backups", nil, nil))
	expectStatus(t, rec, http.StatusOK)
	got := decode[backupListing](t, rec)
	if len(got.Snapshots) != 1 || got.Snapshots[0] != name {
		t.Errorf("snapshots = %v, want [%s]", got.Snapshots, name)
	}
	if got.Status.LastName != name || got.Status.LastBackup == nil {
		t.Errorf("status = %+v", got.Status)
	}
}
