package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/taskcal/internal/backup"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger}
}

type backupListing struct {
	Status    backup.Status `json:"status"`
	Snapshots []string      `json:"snapshots"`
}

// List reports the manager's state and the stored snapshots, newest first.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.manager.List(r.Context())
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusBadGateway, "failed to list backups")
		return
	}
	snapshots := make([]string, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		snapshots = append(snapshots, names[i])
	}
	writeJSON(w, http.StatusOK, backupListing{Status: h.manager.Status(), Snapshots: snapshots})
}

// Run takes a snapshot now.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	name, err := h.manager.Run(r.Context())
	if err != nil {
		h.logger.Error("manual backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}
