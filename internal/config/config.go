// Package config loads coordinator configuration from a YAML file, an
// optional .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/telemetry"
)

// Run modes
const (
	RunModeAll         = "all"
	RunModeCoordinator = "coordinator"
	RunModeAPI         = "api"
)

// DevelopmentSecret is the JWT secret used when none is configured.
const DevelopmentSecret = "development-secret-change-in-production"

// Config is the root configuration
type Config struct {
	RunMode  string                  `yaml:"run_mode"`
	Address  string                  `yaml:"address"`
	Log      LogConfig               `yaml:"log"`
	Contract ContractConfig          `yaml:"contract"`
	Portal   PortalConfig            `yaml:"portal"`
	OpenData OpenDataConfig          `yaml:"open_data"`
	Sync     SyncConfig              `yaml:"sync"`
	API      APIConfig               `yaml:"api"`
	Storage  StorageConfig           `yaml:"storage"`
	Metrics  telemetry.MetricsConfig `yaml:"metrics"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// ContractConfig identifies the tracked contract
type ContractConfig struct {
	Mode           string `yaml:"mode"`
	Name           string `yaml:"name"`
	CustomerID     string `yaml:"customer_id"`
	AccountID      string `yaml:"account_id"`
	ContractID     string `yaml:"contract_id"`
	Rate           string `yaml:"rate"`
	RateOption     string `yaml:"rate_option"`
	PreheatMinutes int    `yaml:"preheat_minutes"`
	Timezone       string `yaml:"timezone"`
}

// PortalConfig holds customer portal credentials
type PortalConfig struct {
	BaseURL  string        `yaml:"base_url"`
	ClientID string        `yaml:"client_id"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// OpenDataConfig tunes the public peak feed client
type OpenDataConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries uint          `yaml:"max_retries"`
}

// SyncConfig controls the tick and the background tasks
type SyncConfig struct {
	Interval      time.Duration `yaml:"interval"`
	HourlyRefresh bool          `yaml:"hourly_refresh"`
	Calendar      bool          `yaml:"calendar"`
	Consumption   bool          `yaml:"consumption"`
}

// APIConfig configures the control API
type APIConfig struct {
	JWTSecret      string           `yaml:"jwt_secret"`
	TokenTTL       time.Duration    `yaml:"token_ttl"`
	RefreshEvery   time.Duration    `yaml:"refresh_every"`
	RefreshBurst   int              `yaml:"refresh_burst"`
	AllowedOrigins []string         `yaml:"allowed_origins"`
	Users          []domain.APIUser `yaml:"users"`
}

// StorageConfig selects the state, history and lock backends.
// With neither URL set everything lives in memory.
type StorageConfig struct {
	DatabaseURL     string        `yaml:"database_url"`
	RedisURL        string        `yaml:"redis_url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		RunMode: RunModeAll,
		Address: ":8080",
		Log:     LogConfig{Level: "info", Format: "json"},
		Contract: ContractConfig{
			Mode:           string(domain.ModeOpenData),
			Name:           domain.DefaultContractName,
			Rate:           "D",
			PreheatMinutes: 120,
			Timezone:       "America/Toronto",
		},
		OpenData: OpenDataConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Sync: SyncConfig{
			Interval:      5 * time.Minute,
			HourlyRefresh: true,
			Calendar:      true,
			Consumption:   true,
		},
		API: APIConfig{
			JWTSecret:    DevelopmentSecret,
			TokenTTL:     24 * time.Hour,
			RefreshEvery: 30 * time.Second,
			RefreshBurst: 1,
		},
		Storage: StorageConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (if any), then the .env file next to it, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	envFile := ".env"
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}

	// Existing environment variables win over the .env file
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	cfg.applyEnv()

	return cfg, nil
}

// applyEnv overrides file values with environment variables
func (c *Config) applyEnv() {
	c.RunMode = getEnv("RUN_MODE", c.RunMode)
	c.Address = getEnv("HYDROQC_ADDRESS", c.Address)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Contract.Mode = getEnv("HYDROQC_MODE", c.Contract.Mode)
	c.Contract.Name = getEnv("HYDROQC_CONTRACT_NAME", c.Contract.Name)
	c.Contract.CustomerID = getEnv("HYDROQC_CUSTOMER_ID", c.Contract.CustomerID)
	c.Contract.AccountID = getEnv("HYDROQC_ACCOUNT_ID", c.Contract.AccountID)
	c.Contract.ContractID = getEnv("HYDROQC_CONTRACT_ID", c.Contract.ContractID)
	c.Contract.Rate = getEnv("HYDROQC_RATE", c.Contract.Rate)
	c.Contract.RateOption = getEnv("HYDROQC_RATE_OPTION", c.Contract.RateOption)
	c.Contract.PreheatMinutes = getEnvInt("HYDROQC_PREHEAT_MINUTES", c.Contract.PreheatMinutes)
	c.Contract.Timezone = getEnv("HYDROQC_TIMEZONE", c.Contract.Timezone)

	c.Portal.BaseURL = getEnv("HYDROQC_PORTAL_URL", c.Portal.BaseURL)
	c.Portal.ClientID = getEnv("HYDROQC_PORTAL_CLIENT_ID", c.Portal.ClientID)
	c.Portal.Username = getEnv("HYDROQC_USERNAME", c.Portal.Username)
	c.Portal.Password = getEnv("HYDROQC_PASSWORD", c.Portal.Password)

	c.OpenData.BaseURL = getEnv("HYDROQC_OPEN_DATA_URL", c.OpenData.BaseURL)

	c.Sync.Interval = getEnvDuration("HYDROQC_SYNC_INTERVAL", c.Sync.Interval)
	c.Sync.HourlyRefresh = getEnvBool("HYDROQC_HOURLY_REFRESH", c.Sync.HourlyRefresh)
	c.Sync.Calendar = getEnvBool("HYDROQC_CALENDAR_SYNC", c.Sync.Calendar)
	c.Sync.Consumption = getEnvBool("HYDROQC_CONSUMPTION_SYNC", c.Sync.Consumption)

	c.API.JWTSecret = getEnv("JWT_SECRET", c.API.JWTSecret)
	c.API.TokenTTL = getEnvDuration("JWT_TTL", c.API.TokenTTL)
	c.API.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.API.AllowedOrigins)

	c.Storage.DatabaseURL = getEnv("DATABASE_URL", c.Storage.DatabaseURL)
	c.Storage.RedisURL = getEnv("REDIS_URL", c.Storage.RedisURL)
	c.Storage.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Storage.MaxOpenConns)
	c.Storage.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Storage.MaxIdleConns)

	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Prometheus = getEnvBool("METRICS_PROMETHEUS", c.Metrics.Prometheus)
	c.Metrics.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Metrics.OTLPEndpoint)
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	switch c.RunMode {
	case RunModeAll, RunModeCoordinator, RunModeAPI:
	default:
		return invalid("run_mode", "must be all, coordinator or api (got %q)", c.RunMode)
	}

	mode, err := c.Contract.ModeValue()
	if err != nil {
		return fmt.Errorf("contract.mode: %w", err)
	}
	if err := c.Contract.RatePlan().Validate(); err != nil {
		return fmt.Errorf("contract.rate: %w", err)
	}
	if c.Contract.PreheatMinutes < 0 {
		return invalid("contract.preheat_minutes", "must not be negative")
	}
	if _, err := c.Contract.Location(); err != nil {
		return err
	}

	if mode.IsPortal() {
		if c.Contract.ContractID == "" {
			return invalid("contract.contract_id", "is required in portal mode")
		}
		if c.RunMode != RunModeAPI {
			if c.Contract.CustomerID == "" || c.Contract.AccountID == "" {
				return invalid("contract", "customer_id and account_id are required in portal mode")
			}
			if c.Portal.Username == "" || c.Portal.Password == "" {
				return invalid("portal", "username and password are required in portal mode")
			}
		}
	}

	if c.Sync.Interval <= 0 {
		return invalid("sync.interval", "must be positive")
	}
	if c.RunMode == RunModeAPI && c.Storage.DatabaseURL == "" && c.Storage.RedisURL == "" {
		return invalid("storage", "api run mode needs a shared database_url or redis_url")
	}

	if c.API.JWTSecret == "" {
		return invalid("api.jwt_secret", "is required")
	}
	seen := make(map[string]bool, len(c.API.Users))
	for i, u := range c.API.Users {
		field := fmt.Sprintf("api.users[%d]", i)
		if u.Username == "" || u.PasswordHash == "" {
			return invalid(field, "username and password_hash are required")
		}
		if !u.Role.IsValid() {
			return invalid(field, "unknown role %q", u.Role)
		}
		if seen[u.Username] {
			return invalid(field, "duplicate username %q", u.Username)
		}
		seen[u.Username] = true
	}
	return nil
}

// ModeValue parses the configured mode
func (c ContractConfig) ModeValue() (domain.Mode, error) {
	return domain.ParseMode(c.Mode)
}

// RatePlan returns the normalised rate plan
func (c ContractConfig) RatePlan() domain.RatePlan {
	return domain.NewRatePlan(c.Rate, c.RateOption)
}

// Identity resolves the contract identity for mode
func (c ContractConfig) Identity(mode domain.Mode) domain.ContractIdentity {
	return domain.NewContractIdentity(mode, c.ContractID, c.Name, c.RatePlan())
}

// PreheatDuration returns the preheat lead time
func (c ContractConfig) PreheatDuration() time.Duration {
	return time.Duration(c.PreheatMinutes) * time.Minute
}

// Location loads the configured time zone
func (c ContractConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		name = "America/Toronto"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, invalid("contract.timezone", "%v", err)
	}
	return loc, nil
}

func invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s %s", domain.ErrInvalidInput, field, fmt.Sprintf(format, args...))
}
