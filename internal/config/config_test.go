package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validPortalConfig() *Config {
	cfg := Default()
	cfg.Contract.Mode = "portal"
	cfg.Contract.CustomerID = "cust-1"
	cfg.Contract.AccountID = "acct-1"
	cfg.Contract.ContractID = "0312345678"
	cfg.Contract.RateOption = "CPC"
	cfg.Portal.Username = "user@example.com"
	cfg.Portal.Password = "hunter2"
	return cfg
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	mode, err := cfg.Contract.ModeValue()
	require.NoError(t, err)
	assert.Equal(t, domain.ModeOpenData, mode)
	assert.Equal(t, 2*time.Hour, cfg.Contract.PreheatDuration())
	assert.Equal(t, "opendata_contract", cfg.Contract.Identity(mode).ID)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
run_mode: coordinator
contract:
  mode: portal
  name: Maison
  customer_id: cust-1
  account_id: acct-1
  contract_id: "0312345678"
  rate: d
  rate_option: cpc
  preheat_minutes: 90
portal:
  username: user@example.com
  password: hunter2
sync:
  interval: 2m
  calendar: false
api:
  users:
    - username: admin
      password_hash: $2a$10$abcdefghijklmnopqrstuv
      role: admin
metrics:
  enabled: true
  prometheus: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, RunModeCoordinator, cfg.RunMode)
	assert.Equal(t, 2*time.Minute, cfg.Sync.Interval)
	assert.False(t, cfg.Sync.Calendar)
	assert.True(t, cfg.Sync.Consumption, "unset keys keep their defaults")
	assert.Equal(t, 90*time.Minute, cfg.Contract.PreheatDuration())
	assert.Equal(t, domain.RateFamilyDCPC, cfg.Contract.RatePlan().Family())
	assert.True(t, cfg.Metrics.Prometheus)

	require.Len(t, cfg.API.Users, 1)
	assert.Equal(t, domain.RoleAdmin, cfg.API.Users[0].Role)

	identity := cfg.Contract.Identity(domain.ModePortal)
	assert.Equal(t, "0312345678", identity.ID)
	assert.Equal(t, "DCPC", identity.RateWithOption)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "sync:\n  interval: 10m\n")

	t.Setenv("HYDROQC_SYNC_INTERVAL", "90")
	t.Setenv("HYDROQC_CONTRACT_NAME", "Chalet")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.local, http://b.local")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Sync.Interval)
	assert.Equal(t, "Chalet", cfg.Contract.Name)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.API.AllowedOrigins)
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "run_mode: all\n")
	writeFile(t, dir, ".env", "JWT_SECRET=from-dotenv\n")
	t.Cleanup(func() { _ = os.Unsetenv("JWT_SECRET") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.API.JWTSecret)
}

func TestLoad_ProcessEnvWinsOverDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "run_mode: all\n")
	writeFile(t, dir, ".env", "JWT_SECRET=from-dotenv\n")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.API.JWTSecret)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeFile(t, t.TempDir(), "bad.yaml", "sync: [unterminated\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad run mode", func(c *Config) { c.RunMode = "worker" }},
		{"bad mode", func(c *Config) { c.Contract.Mode = "cloud" }},
		{"missing rate", func(c *Config) { c.Contract.Rate = "" }},
		{"negative preheat", func(c *Config) { c.Contract.PreheatMinutes = -1 }},
		{"bad timezone", func(c *Config) { c.Contract.Timezone = "Mars/Olympus" }},
		{"missing contract id", func(c *Config) { c.Contract.ContractID = "" }},
		{"missing customer", func(c *Config) { c.Contract.CustomerID = "" }},
		{"missing password", func(c *Config) { c.Portal.Password = "" }},
		{"zero interval", func(c *Config) { c.Sync.Interval = 0 }},
		{"api without shared storage", func(c *Config) { c.RunMode = RunModeAPI }},
		{"empty jwt secret", func(c *Config) { c.API.JWTSecret = "" }},
		{"user without hash", func(c *Config) {
			c.API.Users = []domain.APIUser{{Username: "a", Role: domain.RoleAdmin}}
		}},
		{"user with unknown role", func(c *Config) {
			c.API.Users = []domain.APIUser{{Username: "a", PasswordHash: "h", Role: "root"}}
		}},
		{"duplicate user", func(c *Config) {
			c.API.Users = []domain.APIUser{
				{Username: "a", PasswordHash: "h", Role: domain.RoleAdmin},
				{Username: "a", PasswordHash: "h", Role: domain.RoleViewer},
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validPortalConfig()
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestValidate_APIModeSkipsPortalCredentials(t *testing.T) {
	cfg := validPortalConfig()
	cfg.RunMode = RunModeAPI
	cfg.Storage.RedisURL = "redis://localhost:6379"
	cfg.Portal.Username = ""
	cfg.Portal.Password = ""
	cfg.Contract.CustomerID = ""

	assert.NoError(t, cfg.Validate())
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "forty")
	t.Setenv("TEST_BOOL_NO", "no")
	t.Setenv("TEST_BOOL_JUNK", "maybe")
	t.Setenv("TEST_DURATION", "1h30m")

	assert.Equal(t, 42, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_BAD_INT", 1))
	assert.False(t, getEnvBool("TEST_BOOL_NO", true))
	assert.True(t, getEnvBool("TEST_BOOL_JUNK", true))
	assert.Equal(t, 90*time.Minute, getEnvDuration("TEST_DURATION", 0))
	assert.Equal(t, time.Second, getEnvDuration("TEST_UNSET_DURATION", time.Second))
	assert.Equal(t, "fallback", getEnv("TEST_UNSET", "fallback"))
	assert.Nil(t, getEnvList("TEST_UNSET_LIST", nil))
}
