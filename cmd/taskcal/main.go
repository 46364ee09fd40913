package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/taskcal/internal/agenda"
	"github.com/dukerupert/taskcal/internal/backup"
	"github.com/dukerupert/taskcal/internal/config"
	"github.com/dukerupert/taskcal/internal/database"
	"github.com/dukerupert/taskcal/internal/logging"
	"github.com/dukerupert/taskcal/internal/push"
	"github.com/dukerupert/taskcal/internal/server"
)

func main() {
	var genVAPID bool
	flag.BoolVar(&genVAPID, "gen-vapid", false, "print a new VAPID key pair for web push and exit")
	flag.Parse()

	if genVAPID {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("TASKCAL_VAPID_PUBLIC_KEY=%s\nTASKCAL_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	target, backupCfg := backup.FromConfig(cfg.Backup)
	srv := server.New(db, server.Options{
		Location:     cfg.Location,
		SessionTTL:   cfg.SessionTTL,
		WSOrigins:    cfg.WSOrigins,
		BackupTarget: target,
		Backup:       backupCfg,
		Push: push.Config{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			Subject:         cfg.VAPIDSubject,
		},
	}, logger)

	scheduler := agenda.NewScheduler(
		srv.TaskStore(),
		srv.ScheduleStore(),
		srv.SessionStore(),
		srv.Hub(),
		cfg.Location,
		logger.With("component", "agenda"),
		srv.RateLimiter(),
	)
	if _, err := scheduler.ScheduleDaily(cfg.AgendaTime); err != nil {
		slog.Error("failed to schedule agenda", "error", err)
		os.Exit(1)
	}
	if n := srv.PushNotifier(); n != nil {
		scheduler.SetPusher(n)
		slog.Info("web push enabled")
	}
	if m := srv.BackupManager(); m != nil {
		if _, err := scheduler.AddDaily(cfg.Backup.Time, "backup", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			_, err := m.Run(ctx)
			return err
		}); err != nil {
			slog.Error("failed to schedule backups", "error", err)
			os.Exit(1)
		}
		slog.Info("backups enabled", "target", m.Status().Target, "time", cfg.Backup.Time, "keep", cfg.Backup.Keep)
	}
	scheduler.Start()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("taskcal starting", "addr", ":"+cfg.Port, "db", cfg.DBPath, "agenda_time", cfg.AgendaTime)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	scheduler.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

