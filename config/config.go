/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT                     = "5001"
	DEFAULT_ATTENDANCE_QUEUE         = "attendance"
	DEFAULT_MAINTENANCE_QUEUE        = "maintenance"
	DEFAULT_AUTOCOMPLETE_SPEC        = "@every 300s"
	DEFAULT_AUTOCOMPLETE_MIN_GAP_SEC = 240
	DEFAULT_GOOGLE_TOKEN_INFO        = "https://www.googleapis.com/oauth2/v3/tokeninfo"
	DEFAULT_SHEETS_BASE_URL          = "https://sheets.googleapis.com/v4/spreadsheets"
	DEFAULT_MONITORING_PORT          = "5004"
	DEFAULT_TOKEN_TTL_HOURS          = 24
	DEFAULT_TASK_RETENTION_HOURS     = 24
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL            bool     `json:"ssl" envconfig:"ATTENDANCE_SERVER_SSL"`
	Domain         string   `json:"domain" envconfig:"ATTENDANCE_SERVER_SSL_DOMAIN"`
	Email          string   `json:"ssl_email" envconfig:"ATTENDANCE_SERVER_SSL_EMAIL"`
	Port           string   `json:"port" envconfig:"ATTENDANCE_SERVER_PORT"`
	AllowedOrigins []string `json:"allowed_origins" envconfig:"ATTENDANCE_SERVER_ALLOWED_ORIGINS"`
	AdminName      string   `json:"admin_name" envconfig:"ATTENDANCE_SERVER_ADMIN_NAME"`
	AdminEmail     string   `json:"admin_email" envconfig:"ATTENDANCE_SERVER_ADMIN_EMAIL"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"ATTENDANCE_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"ATTENDANCE_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"ATTENDANCE_REDIS_SKIP_TLS_VERIFY"`
}

// QueueConfig controls the task delivery layer.
type QueueConfig struct {
	AttendanceQueue       string `json:"attendance_queue" envconfig:"ATTENDANCE_QUEUE_ATTENDANCE_QUEUE"`
	MaintenanceQueue      string `json:"maintenance_queue" envconfig:"ATTENDANCE_QUEUE_MAINTENANCE_QUEUE"`
	Concurrency           int    `json:"concurrency" envconfig:"ATTENDANCE_QUEUE_CONCURRENCY"`
	MaxRetry              int    `json:"max_retry" envconfig:"ATTENDANCE_QUEUE_MAX_RETRY"`
	RetentionHours        int    `json:"retention_hours" envconfig:"ATTENDANCE_QUEUE_RETENTION_HOURS"`
	AutocompleteSpec      string `json:"autocomplete_spec" envconfig:"ATTENDANCE_QUEUE_AUTOCOMPLETE_SPEC"`
	MonitoringPort        string `json:"monitoring_port" envconfig:"ATTENDANCE_QUEUE_MONITORING_PORT"`
	// AutocompleteMinGapSec is the shortest time between two name refreshes
	// across every worker process sharing the redis.
	AutocompleteMinGapSec int    `json:"autocomplete_min_gap_sec" envconfig:"ATTENDANCE_QUEUE_AUTOCOMPLETE_MIN_GAP_SEC"`
	LockSignOuts          bool   `json:"lock_sign_outs" envconfig:"ATTENDANCE_QUEUE_LOCK_SIGN_OUTS"`
	LockTimeoutSec        int    `json:"lock_timeout_sec" envconfig:"ATTENDANCE_QUEUE_LOCK_TIMEOUT_SEC"`
	LockWaitTimeoutSec    int    `json:"lock_wait_timeout_sec" envconfig:"ATTENDANCE_QUEUE_LOCK_WAIT_TIMEOUT_SEC"`
}

// SheetsConfig points the tabular store client at the spreadsheet service.
type SheetsConfig struct {
	CredentialsFile string `json:"credentials_file" envconfig:"ATTENDANCE_SHEETS_CREDENTIALS_FILE"`
	BaseURL         string `json:"base_url" envconfig:"ATTENDANCE_SHEETS_BASE_URL"`
	TimeoutSec      int    `json:"timeout_sec" envconfig:"ATTENDANCE_SHEETS_TIMEOUT_SEC"`
}

type AuthConfig struct {
	JWTSecret          string   `json:"jwt_secret" envconfig:"ATTENDANCE_AUTH_JWT_SECRET"`
	TokenTTLHours      int      `json:"token_ttl_hours" envconfig:"ATTENDANCE_AUTH_TOKEN_TTL_HOURS"`
	GoogleTokenInfoURL string   `json:"google_token_info_url" envconfig:"ATTENDANCE_AUTH_GOOGLE_TOKEN_INFO_URL"`
	GoogleClientIDs    []string `json:"google_client_ids" envconfig:"ATTENDANCE_AUTH_GOOGLE_CLIENT_IDS"`
}

// RecoveryConfig drives the processor that re-dispatches staging records whose
// spreadsheet write never landed.
type RecoveryConfig struct {
	Enabled         bool `json:"enabled" envconfig:"ATTENDANCE_RECOVERY_ENABLED"`
	PollIntervalSec int  `json:"poll_interval_sec" envconfig:"ATTENDANCE_RECOVERY_POLL_INTERVAL_SEC"`
	StaleAfterSec   int  `json:"stale_after_sec" envconfig:"ATTENDANCE_RECOVERY_STALE_AFTER_SEC"`
	BatchSize       int  `json:"batch_size" envconfig:"ATTENDANCE_RECOVERY_BATCH_SIZE"`
	MaxAttempts     int  `json:"max_attempts" envconfig:"ATTENDANCE_RECOVERY_MAX_ATTEMPTS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"ATTENDANCE_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"ATTENDANCE_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"ATTENDANCE_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"ATTENDANCE_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"ATTENDANCE_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"ATTENDANCE_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Queue           QueueConfig      `json:"queue"`
	Sheets          SheetsConfig     `json:"sheets"`
	Auth            AuthConfig       `json:"auth"`
	Recovery        RecoveryConfig   `json:"recovery"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		logrus.Info("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("attendance", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called attendance.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Cub Attendance"
	}

	if cnf.DataSource.Dns == "" {
		logrus.Error("data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		logrus.Error("redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if cnf.Auth.JWTSecret == "" {
		logrus.Error("JWT secret is empty. It's a required field.")
		return errors.New("jwt secret is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		logrus.Warnf("port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.setQueueDefaults()
	cnf.setRecoveryDefaults()

	if cnf.Sheets.BaseURL == "" {
		cnf.Sheets.BaseURL = DEFAULT_SHEETS_BASE_URL
	}
	if cnf.Sheets.TimeoutSec <= 0 {
		cnf.Sheets.TimeoutSec = 30
	}

	if cnf.Auth.TokenTTLHours <= 0 {
		cnf.Auth.TokenTTLHours = DEFAULT_TOKEN_TTL_HOURS
	}
	if cnf.Auth.GoogleTokenInfoURL == "" {
		cnf.Auth.GoogleTokenInfoURL = DEFAULT_GOOGLE_TOKEN_INFO
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (cnf *Configuration) setQueueDefaults() {
	q := &cnf.Queue
	if q.AttendanceQueue == "" {
		q.AttendanceQueue = DEFAULT_ATTENDANCE_QUEUE
	}
	if q.MaintenanceQueue == "" {
		q.MaintenanceQueue = DEFAULT_MAINTENANCE_QUEUE
	}
	if q.Concurrency <= 0 {
		q.Concurrency = 4
	}
	if q.MaxRetry <= 0 {
		q.MaxRetry = 5
	}
	if q.RetentionHours <= 0 {
		q.RetentionHours = DEFAULT_TASK_RETENTION_HOURS
	}
	if q.AutocompleteSpec == "" {
		q.AutocompleteSpec = DEFAULT_AUTOCOMPLETE_SPEC
	}
	if q.AutocompleteMinGapSec <= 0 {
		q.AutocompleteMinGapSec = DEFAULT_AUTOCOMPLETE_MIN_GAP_SEC
	}
	if q.MonitoringPort == "" {
		q.MonitoringPort = DEFAULT_MONITORING_PORT
	}
	if q.LockTimeoutSec <= 0 {
		q.LockTimeoutSec = 30
	}
	if q.LockWaitTimeoutSec <= 0 {
		q.LockWaitTimeoutSec = 10
	}
}

func (cnf *Configuration) setRecoveryDefaults() {
	r := &cnf.Recovery
	if r.PollIntervalSec <= 0 {
		r.PollIntervalSec = 60
	}
	if r.StaleAfterSec <= 0 {
		r.StaleAfterSec = 900
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 100
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	level, err := logrus.ParseLevel(os.Getenv("LOGLEVEL"))
	if err == nil {
		logger.SetLevel(level)
		logrus.SetLevel(level)
	}
	log.SetOutput(logger.Writer())
}
