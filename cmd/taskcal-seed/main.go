package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dukerupert/taskcal/internal/config"
	"github.com/dukerupert/taskcal/internal/database"
	"github.com/dukerupert/taskcal/internal/logging"
	"github.com/dukerupert/taskcal/internal/seed"
	"github.com/dukerupert/taskcal/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var path, dbPath string
	var check bool
	flag.StringVar(&path, "file", "seed.yaml", "path to seed file (yaml or json)")
	flag.StringVar(&dbPath, "db", cfg.DBPath, "path to sqlite database")
	flag.BoolVar(&check, "check", false, "validate the seed file without writing")
	flag.Parse()

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	f, err := seed.Load(path)
	if err != nil {
		slog.Error("failed to load seed file", "path", path, "error", err)
		os.Exit(1)
	}
	if check {
		if err := seed.Validate(f); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("%s: %d users, %d tasks\n", path, len(f.Users), len(f.Tasks))
		return
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	users := store.NewUserStore(db)
	s := seed.New(users, store.NewTaskStore(db), store.NewScheduleStore(db), logger)

	res, err := s.Apply(f)
	if err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
	slog.Info("seed applied",
		"users_created", res.UsersCreated,
		"users_updated", res.UsersUpdated,
		"tasks_created", res.TasksCreated,
		"tasks_skipped", res.TasksSkipped,
		"schedules_created", res.SchedulesCreated,
	)

	all, err := users.List()
	if err != nil {
		slog.Error("failed to list users", "error", err)
		os.Exit(1)
	}
	for _, line := range seed.Summary(all) {
		fmt.Println(line)
	}
}
