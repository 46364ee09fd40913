package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"TASKCAL_PORT", "TASKCAL_DB_PATH", "TASKCAL_LOG_LEVEL", "TASKCAL_LOG_FORMAT",
	"TASKCAL_AGENDA_TIME", "TASKCAL_TIMEZONE", "TASKCAL_SESSION_TTL", "TASKCAL_WS_ORIGINS",
	"TASKCAL_BACKUP_DIR", "TASKCAL_BACKUP_TIME", "TASKCAL_BACKUP_KEEP", "TASKCAL_BACKUP_PASSPHRASE",
	"TASKCAL_S3_ENDPOINT", "TASKCAL_S3_BUCKET", "TASKCAL_S3_REGION", "TASKCAL_S3_PREFIX",
	"TASKCAL_S3_ACCESS_KEY", "TASKCAL_S3_SECRET_KEY",
	"TASKCAL_VAPID_PUBLIC_KEY", "TASKCAL_VAPID_PRIVATE_KEY", "TASKCAL_VAPID_SUBJECT",
}

// clearEnv unsets every setting for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(missingFile(t))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "taskcal.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "06:00", cfg.AgendaTime)
	assert.Equal(t, time.Local, cfg.Location)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.Empty(t, cfg.WSOrigins)
	assert.False(t, cfg.Backup.Enabled())
	assert.Equal(t, "03:00", cfg.Backup.Time)
	assert.Equal(t, 14, cfg.Backup.Keep)
	assert.Equal(t, "us-east-1", cfg.Backup.S3Region)
	assert.Empty(t, cfg.VAPIDPublicKey)
	assert.Equal(t, "mailto:admin@localhost", cfg.VAPIDSubject)
}

func TestLoadBackup(t *testing.T) {
	clearEnv(t)
	t.Setenv("TASKCAL_BACKUP_DIR", "/srv/backups")
	t.Setenv("TASKCAL_BACKUP_TIME", "02:15")
	t.Setenv("TASKCAL_BACKUP_KEEP", "7")

	cfg, err := LoadFile(missingFile(t))
	require.NoError(t, err)
	assert.True(t, cfg.Backup.Enabled())
	assert.Equal(t, "/srv/backups", cfg.Backup.Dir)
	assert.Equal(t, "02:15", cfg.Backup.Time)
	assert.Equal(t, 7, cfg.Backup.Keep)

	clearEnv(t)
	t.Setenv("TASKCAL_S3_BUCKET", "household")
	t.Setenv("TASKCAL_S3_ACCESS_KEY", "key")
	cfg, err = LoadFile(missingFile(t))
	require.NoError(t, err)
	assert.False(t, cfg.Backup.Enabled(), "bucket without secret key")

	t.Setenv("TASKCAL_S3_SECRET_KEY", "secret")
	cfg, err = LoadFile(missingFile(t))
	require.NoError(t, err)
	assert.True(t, cfg.Backup.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TASKCAL_PORT", "9000")
	t.Setenv("TASKCAL_DB_PATH", "/var/lib/taskcal/data.db")
	t.Setenv("TASKCAL_AGENDA_TIME", "07:30")
	t.Setenv("TASKCAL_TIMEZONE", "UTC")
	t.Setenv("TASKCAL_SESSION_TTL", "24h")
	t.Setenv("TASKCAL_WS_ORIGINS", "tasks.example.com, *.local ,")
	t.Setenv("TASKCAL_LOG_FORMAT", "json")

	cfg, err := LoadFile(missingFile(t))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "/var/lib/taskcal/data.db", cfg.DBPath)
	assert.Equal(t, "07:30", cfg.AgendaTime)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"tasks.example.com", "*.local"}, cfg.WSOrigins)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadDotenvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TASKCAL_DB_PATH", "from-env.db")

	path := filepath.Join(t.TempDir(), ".env")
	content := "TASKCAL_PORT=9191\nTASKCAL_DB_PATH=from-file.db\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "9191", cfg.Port)
	assert.Equal(t, "from-env.db", cfg.DBPath, "environment wins over the file")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"TASKCAL_PORT", "http"},
		{"TASKCAL_AGENDA_TIME", "6am"},
		{"TASKCAL_AGENDA_TIME", "24:00"},
		{"TASKCAL_TIMEZONE", "Mars/Olympus_Mons"},
		{"TASKCAL_SESSION_TTL", "forever"},
		{"TASKCAL_SESSION_TTL", "-1h"},
		{"TASKCAL_LOG_FORMAT", "xml"},
		{"TASKCAL_BACKUP_TIME", "3"},
		{"TASKCAL_BACKUP_KEEP", "0"},
		{"TASKCAL_BACKUP_KEEP", "lots"},
		{"TASKCAL_VAPID_PUBLIC_KEY", "BPub"},
		{"TASKCAL_VAPID_PRIVATE_KEY", "priv"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadFile(missingFile(t))
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("06:05")
	require.NoError(t, err)
	assert.Equal(t, 6, h)
	assert.Equal(t, 5, m)

	h, m, err = ParseClock(" 23:59 ")
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 59, m)

	for _, bad := range []string{"", "6", "06:60", "-1:00", "aa:bb", "1:2:3"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}
