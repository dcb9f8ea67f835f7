package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 10*time.Second, cfg.Ledger.DuplicateWindow)
	assert.Equal(t, 3, cfg.Ledger.TxMaxRetries)
	assert.Equal(t, 72*time.Hour, cfg.Ledger.JobTTL)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.SMTPEnabled())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LEDGER_DUPLICATE_WINDOW", "30s")
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", "file:ledger.db")
	t.Setenv("SMTP_HOST", "smtp.example.org")
	t.Setenv("SMTP_SENDER_EMAIL", "bursar@example.org")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Ledger.DuplicateWindow)
	assert.Equal(t, "file:ledger.db", cfg.Database.DSN())
	assert.True(t, cfg.SMTPEnabled())
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "LEDGER_TX_MAX_RETRIES=5\nLOG_LEVEL=debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Ledger.TxMaxRetries)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{
			name:   "unknown driver",
			env:    map[string]string{"DATABASE_DRIVER": "mysql"},
			errMsg: "DATABASE_DRIVER",
		},
		{
			name:   "sqlite without url",
			env:    map[string]string{"DATABASE_DRIVER": "sqlite3"},
			errMsg: "DATABASE_URL",
		},
		{
			name:   "bad cron spec",
			env:    map[string]string{"SCHEDULER_REMINDER_SPEC": "every monday"},
			errMsg: "SCHEDULER_REMINDER_SPEC",
		},
		{
			name:   "zero retries",
			env:    map[string]string{"LEDGER_TX_MAX_RETRIES": "0"},
			errMsg: "LEDGER_TX_MAX_RETRIES",
		},
		{
			name:   "bad log format",
			env:    map[string]string{"LOG_FORMAT": "xml"},
			errMsg: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "ledger", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=ledger sslmode=disable", d.DSN())
}
