package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 15*time.Minute, cfg.PresignExpiry)
	assert.Equal(t, 500, cfg.Domain().HistoryLimit)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serverAddress: ":9000"
storageBackend: dynamodb
dynamoDBTable: from-file
logLevel: debug
corsOrigins: ["https://app.example.com"]
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TABLE_NAME", "from-env")
	t.Setenv("PROVIDER_TIMEOUT", "45s")
	t.Setenv("ENABLE_METRICS", "true")

	// Act
	cfg, err := LoadConfig()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ServerAddress)
	assert.Equal(t, "dynamodb", cfg.StorageBackend)
	assert.Equal(t, "from-env", cfg.DynamoDBTable)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.ProviderTimeout)
	assert.True(t, cfg.EnableMetrics)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown environment", map[string]string{"ENVIRONMENT": "moon"}},
		{"unknown storage", map[string]string{"STORAGE_BACKEND": "sqlite"}},
		{"production without secret", map[string]string{"ENVIRONMENT": "production"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"sample rate above one", map[string]string{"TRACE_SAMPLE_RATE": "1.5"}},
		{"provider url", map[string]string{"PROVIDER_BASE_URL": "not a url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig()

			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := LoadConfig()

	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadConfig_ProductionWithSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 8, cfg.Domain().MaxConcurrentJobs)
}
