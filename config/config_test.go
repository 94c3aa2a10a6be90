package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "CHECKOUT_DELAY", "SINK_QUEUE_SIZE", "CLICKHOUSE_HOST", "NATS_SUBJECT_PREFIX"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.CheckoutDelay)
	assert.Equal(t, 256, cfg.SinkQueueSize)
	assert.Equal(t, "funnel", cfg.NATS.SubjectPrefix)
	assert.False(t, cfg.ClickHouse.Enabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CHECKOUT_DELAY", "10ms")
	t.Setenv("CLICKHOUSE_HOST", "localhost")
	t.Setenv("CLICKHOUSE_NATIVE_PORT", "9000")
	t.Setenv("CLICKHOUSE_DB_NAME", "analytics")
	t.Setenv("OTEL_ENABLED", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 10*time.Millisecond, cfg.CheckoutDelay)
	assert.True(t, cfg.ClickHouse.Enabled())
	assert.True(t, cfg.OTelEnabled)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"CHECKOUT_DELAY":         "soon",
		"SINK_QUEUE_SIZE":        "0",
		"CLICKHOUSE_NATIVE_PORT": "nine",
		"OTEL_ENABLED":           "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ANALYTICS_TOKEN=from-file\n"), 0o600))
	t.Setenv("ANALYTICS_TOKEN", "")
	os.Unsetenv("ANALYTICS_TOKEN")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.AnalyticsToken)
	os.Unsetenv("ANALYTICS_TOKEN")
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
