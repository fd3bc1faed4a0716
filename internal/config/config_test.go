package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, ProofsLocal, cfg.Proofs.Driver)
	assert.Equal(t, 3, cfg.Rules.DailyQuota)
	assert.Equal(t, 5, cfg.Rules.ValidationThreshold)
	assert.Equal(t, 10, cfg.Rules.DailyValidationCap)
	assert.Equal(t, 1, cfg.Rules.CapBonusPoints)
	require.NotNil(t, cfg.Rules.Location)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("QUEST_TIMEZONE", "Europe/Paris")
	t.Setenv("QUEST_DAILY_QUOTA", "4")
	t.Setenv("SWEEP_TIMEOUT", "90")
	t.Setenv("OUTBOX_RETENTION", "2h")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMongo, cfg.Store.Driver)
	assert.Equal(t, "Europe/Paris", cfg.Rules.Location.String())
	assert.Equal(t, 4, cfg.Rules.Domain().DailyQuota)
	assert.Equal(t, 90*time.Second, cfg.Sweep.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.Outbox.Retention)
	assert.Equal(t, "0.0.0.0:9090", cfg.Address())
	assert.Contains(t, cfg.Database.URL, "@db:5432/")
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown store":     {"STORE_DRIVER": "sqlite"},
		"bad timezone":      {"QUEST_TIMEZONE": "Mars/Olympus"},
		"s3 without bucket": {"PROOFS_DRIVER": "s3", "S3_BUCKET": ""},
		"zero threshold":    {"QUEST_VALIDATION_THRESHOLD": "0"},
		"bad port":          {"SERVER_PORT": "http"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
