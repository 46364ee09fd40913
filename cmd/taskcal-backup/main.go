package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dukerupert/taskcal/internal/backup"
	"github.com/dukerupert/taskcal/internal/config"
	"github.com/dukerupert/taskcal/internal/database"
	"github.com/dukerupert/taskcal/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var list bool
	var restore, out string
	flag.BoolVar(&list, "list", false, "list stored snapshots")
	flag.StringVar(&restore, "restore", "", "snapshot name to restore")
	flag.StringVar(&out, "out", "", "where to write the restored database (required with -restore)")
	flag.Parse()

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	target, backupCfg := backup.FromConfig(cfg.Backup)
	if target == nil {
		fmt.Fprintln(os.Stderr, "no backup target: set TASKCAL_BACKUP_DIR or the TASKCAL_S3_* variables")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case list:
		m := backup.NewManager(backupCfg, nil, target, nil, logger)
		names, err := m.List(ctx)
		if err != nil {
			slog.Error("list failed", "error", err)
			os.Exit(1)
		}
		for _, n := range names {
			fmt.Println(n)
		}

	case restore != "":
		if out == "" {
			fmt.Fprintln(os.Stderr, "-out is required with -restore")
			os.Exit(2)
		}
		if samePath(out, cfg.DBPath) {
			fmt.Fprintln(os.Stderr, "refusing to overwrite the configured database; stop the server and move the file yourself")
			os.Exit(2)
		}
		m := backup.NewManager(backupCfg, nil, target, nil, logger)
		if err := m.Restore(ctx, restore, out); err != nil {
			slog.Error("restore failed", "error", err)
			os.Exit(1)
		}

	default:
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		m := backup.NewManager(backupCfg, db, target, nil, logger)
		name, err := m.Run(ctx)
		if err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
		fmt.Println(name)
	}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
