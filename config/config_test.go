package config

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{
		Redis: RedisConfig{Dns: "localhost:6379"},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
	err := cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "data source DNS is required" {
		t.Errorf("Expected data source DNS required error, got %v", err)
	}

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"},
		Auth:       AuthConfig{JWTSecret: "secret"},
	}
	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "redis DNS is required" {
		t.Errorf("Expected redis DNS required error, got %v", err)
	}

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
	}
	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "jwt secret is required" {
		t.Errorf("Expected jwt secret required error, got %v", err)
	}

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: " some-dns "},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Auth:       AuthConfig{JWTSecret: "secret"},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	assert.Equal(t, "some-dns", cnf.DataSource.Dns)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, "Cub Attendance", cnf.ProjectName)
}

func TestQueueAndRecoveryDefaults(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "some-dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Auth:       AuthConfig{JWTSecret: "secret"},
		Queue:      QueueConfig{Concurrency: 8},
	}
	require.NoError(t, cnf.validateAndAddDefaults())

	assert.Equal(t, DEFAULT_ATTENDANCE_QUEUE, cnf.Queue.AttendanceQueue)
	assert.Equal(t, DEFAULT_MAINTENANCE_QUEUE, cnf.Queue.MaintenanceQueue)
	assert.Equal(t, 8, cnf.Queue.Concurrency)
	assert.Equal(t, 5, cnf.Queue.MaxRetry)
	assert.Equal(t, DEFAULT_AUTOCOMPLETE_SPEC, cnf.Queue.AutocompleteSpec)
	assert.Equal(t, DEFAULT_AUTOCOMPLETE_MIN_GAP_SEC, cnf.Queue.AutocompleteMinGapSec)
	assert.False(t, cnf.Queue.LockSignOuts)
	assert.Equal(t, 900, cnf.Recovery.StaleAfterSec)
	assert.Equal(t, 3, cnf.Recovery.MaxAttempts)
	assert.Equal(t, DEFAULT_SHEETS_BASE_URL, cnf.Sheets.BaseURL)
	assert.Equal(t, DEFAULT_GOOGLE_TOKEN_INFO, cnf.Auth.GoogleTokenInfoURL)
	assert.Equal(t, DEFAULT_TOKEN_TTL_HOURS, cnf.Auth.TokenTTLHours)
}

func TestRateLimitDefaults(t *testing.T) {
	rps := 10.0
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "some-dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Auth:       AuthConfig{JWTSecret: "secret"},
		RateLimit:  RateLimitConfig{RequestsPerSecond: &rps},
	}
	require.NoError(t, cnf.validateAndAddDefaults())
	require.NotNil(t, cnf.RateLimit.Burst)
	assert.Equal(t, 20, *cnf.RateLimit.Burst)
	assert.Equal(t, 10800, *cnf.RateLimit.CleanupIntervalSec)
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "attendance.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource:  DataSourceConfig{Dns: "temp-dns"},
		Redis:       RedisConfig{Dns: "temp-redis"},
		Auth:        AuthConfig{JWTSecret: "file-secret"},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	t.Setenv("ATTENDANCE_PROJECT_NAME", "Env Project")
	t.Setenv("ATTENDANCE_QUEUE_LOCK_SIGN_OUTS", "true")

	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile failed: %v", err)
	}

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "Env Project", loadedConfig.ProjectName)
	assert.Equal(t, "temp-dns", loadedConfig.DataSource.Dns)
	assert.Equal(t, "file-secret", loadedConfig.Auth.JWTSecret)
	assert.True(t, loadedConfig.Queue.LockSignOuts)
}

func TestInitConfigMissingFileUsesEnv(t *testing.T) {
	t.Setenv("ATTENDANCE_DATA_SOURCE_DNS", "env-dns")
	t.Setenv("ATTENDANCE_REDIS_DNS", "localhost:6379")
	t.Setenv("ATTENDANCE_AUTH_JWT_SECRET", "env-secret")

	err := InitConfig("does-not-exist.json")
	require.NoError(t, err)

	loadedConfig, err := Fetch()
	require.NoError(t, err)
	assert.Equal(t, "env-dns", loadedConfig.DataSource.Dns)
	assert.Equal(t, "env-secret", loadedConfig.Auth.JWTSecret)
}
