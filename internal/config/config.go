package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings for the taskcal server.
type Config struct {
	Port       string
	DBPath     string
	LogLevel   string
	LogFormat  string
	AgendaTime string
	Location   *time.Location
	SessionTTL time.Duration
	WSOrigins  []string
	Backup     Backup

	// Web push is on when both VAPID keys are set.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
}

// Backup configures scheduled database snapshots. Backups are off unless Dir
// or an S3 bucket with credentials is set; S3 wins when both are.
type Backup struct {
	Dir        string
	Time       string
	Keep       int
	Passphrase string

	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	S3Prefix    string
	S3AccessKey string
	S3SecretKey string
}

// Enabled reports whether any backup target is configured.
func (b Backup) Enabled() bool {
	return b.Dir != "" || (b.S3Bucket != "" && b.S3AccessKey != "" && b.S3SecretKey != "")
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an error.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}

	cfg := Config{
		Port:       env("TASKCAL_PORT", "8080"),
		DBPath:     env("TASKCAL_DB_PATH", "taskcal.db"),
		LogLevel:   env("TASKCAL_LOG_LEVEL", "info"),
		LogFormat:  env("TASKCAL_LOG_FORMAT", "text"),
		AgendaTime: env("TASKCAL_AGENDA_TIME", "06:00"),
		WSOrigins:  splitList(os.Getenv("TASKCAL_WS_ORIGINS")),
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return cfg, fmt.Errorf("TASKCAL_PORT: invalid port %q", cfg.Port)
	}

	if _, _, err := ParseClock(cfg.AgendaTime); err != nil {
		return cfg, fmt.Errorf("TASKCAL_AGENDA_TIME: %w", err)
	}

	loc, err := time.LoadLocation(env("TASKCAL_TIMEZONE", "Local"))
	if err != nil {
		return cfg, fmt.Errorf("TASKCAL_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	ttl, err := time.ParseDuration(env("TASKCAL_SESSION_TTL", "720h"))
	if err != nil {
		return cfg, fmt.Errorf("TASKCAL_SESSION_TTL: %w", err)
	}
	if ttl <= 0 {
		return cfg, fmt.Errorf("TASKCAL_SESSION_TTL must be positive")
	}
	cfg.SessionTTL = ttl

	cfg.Backup = Backup{
		Dir:         os.Getenv("TASKCAL_BACKUP_DIR"),
		Time:        env("TASKCAL_BACKUP_TIME", "03:00"),
		Passphrase:  os.Getenv("TASKCAL_BACKUP_PASSPHRASE"),
		S3Endpoint:  os.Getenv("TASKCAL_S3_ENDPOINT"),
		S3Bucket:    os.Getenv("TASKCAL_S3_BUCKET"),
		S3Region:    env("TASKCAL_S3_REGION", "us-east-1"),
		S3Prefix:    os.Getenv("TASKCAL_S3_PREFIX"),
		S3AccessKey: os.Getenv("TASKCAL_S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("TASKCAL_S3_SECRET_KEY"),
	}
	if _, _, err := ParseClock(cfg.Backup.Time); err != nil {
		return cfg, fmt.Errorf("TASKCAL_BACKUP_TIME: %w", err)
	}
	keep, err := strconv.Atoi(env("TASKCAL_BACKUP_KEEP", "14"))
	if err != nil || keep < 1 {
		return cfg, fmt.Errorf("TASKCAL_BACKUP_KEEP must be a positive integer")
	}
	cfg.Backup.Keep = keep

	cfg.VAPIDPublicKey = os.Getenv("TASKCAL_VAPID_PUBLIC_KEY")
	cfg.VAPIDPrivateKey = os.Getenv("TASKCAL_VAPID_PRIVATE_KEY")
	cfg.VAPIDSubject = env("TASKCAL_VAPID_SUBJECT", "mailto:admin@localhost")
	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		return cfg, fmt.Errorf("TASKCAL_VAPID_PUBLIC_KEY and TASKCAL_VAPID_PRIVATE_KEY must be set together")
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return cfg, fmt.Errorf("TASKCAL_LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	return cfg, nil
}

// ParseClock splits an "HH:MM" wall-clock time.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
