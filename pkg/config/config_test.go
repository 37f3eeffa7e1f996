package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
environment: test
clickhouse:
  host: localhost
kafka:
  brokers:
    - localhost:9092
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "impactradar", cfg.ClickHouse.Database)
	assert.Equal(t, 9000, cfg.ClickHouse.Port)
	assert.Equal(t, "impact.retrain.recommendations", cfg.Kafka.RecommendationTopic)
	assert.Equal(t, "impact.outcomes.labeled", cfg.Kafka.OutcomeTopic)
	assert.Equal(t, "v1", cfg.Scoring.FeatureVersion)
	assert.Equal(t, []float64{0.8, 0.9}, cfg.Scoring.CoverageLevels)
	assert.InDelta(t, 0.8, cfg.Scoring.DefaultCoverage, 1e-12)
	assert.Equal(t, 100, cfg.Scoring.MinTrainSamples)
	assert.Equal(t, 30, cfg.Monitor.MaxModelAgeDays)
	assert.Equal(t, 10, cfg.Monitor.PSIBins)
	assert.NotEmpty(t, cfg.Monitor.KeyFeatures)
	assert.Equal(t, 30*time.Minute, cfg.Queue.LockTTL)
	assert.Equal(t, 24*time.Hour, cfg.Queue.StatusTTL)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
scoring:
  coverage_levels: [0.5, 0.95]
  min_train_samples: 42
monitor:
  psi_bins: 5
`))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.95}, cfg.Scoring.CoverageLevels)
	assert.Equal(t, 42, cfg.Scoring.MinTrainSamples)
	assert.Equal(t, 5, cfg.Monitor.PSIBins)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing environment", `
clickhouse:
  host: localhost
kafka:
  brokers: [localhost:9092]
`},
		{"missing clickhouse host", `
environment: test
kafka:
  brokers: [localhost:9092]
`},
		{"missing brokers", `
environment: test
clickhouse:
  host: localhost
`},
		{"coverage level out of range", minimalYAML + `
scoring:
  coverage_levels: [1.5]
`},
		{"psi bins too small", minimalYAML + `
monitor:
  psi_bins: 1
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "ch.internal", cfg.ClickHouse.Host)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}
