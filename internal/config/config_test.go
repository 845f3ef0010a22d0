package conf

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bartek5186/mosync/internal/integrations/odoo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.FileExists(t, path)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, 420, cfg.TimezoneOffsetMinutes)
	assert.Equal(t, 5*time.Minute, cfg.Interval("odoo"))
	assert.Equal(t, 10*time.Minute, cfg.Interval("authenticity"))

	var oc odoo.Config
	require.NoError(t, cfg.UnmarshalIntegration("odoo", &oc))
	assert.Equal(t, []int64{6, 7}, oc.GroupWorkerIDs)

	_, created, err = LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestLoadOrCreate_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 8080, "timezone_offset_minutes": 0}`), 0o644))

	cfg, _, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 0, cfg.TimezoneOffsetMinutes)
	assert.Equal(t, 5, cfg.SyncIntervalMinutes)
	assert.Contains(t, cfg.Integrations, "authenticity")
}

func TestLoadOrCreate_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SYNC_INTERVAL_MINUTES", "2")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("RABBITMQ_URL", "amqp://guest:guest@mq:5672/")

	cfg, _, err := LoadOrCreate(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2*time.Minute, cfg.Interval("odoo"))
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "amqp://guest:guest@mq:5672/", cfg.RabbitMQURL)
}

func TestLoadOrCreate_BadEnv(t *testing.T) {
	t.Setenv("PORT", "eighty")
	_, _, err := LoadOrCreate(filepath.Join(t.TempDir(), "config.json"))
	assert.ErrorContains(t, err, "PORT")
}

func TestUnmarshalIntegration_Missing(t *testing.T) {
	cfg := &Config{Integrations: map[string]json.RawMessage{}}
	var v map[string]any
	assert.Error(t, cfg.UnmarshalIntegration("odoo", &v))
}
