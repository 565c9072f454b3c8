package config

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcpos/siteconnect/pkg/database"
)

func writeConfig(t *testing.T, contents string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/siteconnect/config.hcl", []byte(contents), 0o644))
	return fs
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(afero.NewMemMapFs(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, hclog.Info, cfg.Level())
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, DefaultSQLitePath, cfg.Database.Path)
	assert.Equal(t, "1.8.0", cfg.POS.MinPluginVersion)
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout())

	hc := cfg.HTTPClientConfig()
	assert.Equal(t, 30*time.Second, hc.Timeout)
	require.NotNil(t, hc.TLSVerify)
	assert.True(t, *hc.TLSVerify)
}

func TestNewConfigFromFile(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")
	fs := writeConfig(t, `
log_level = "debug"

database {
  driver   = "postgres"
  host     = "db.internal"
  user     = "siteconnect"
  password = env("TEST_DB_PASSWORD")
  dbname   = "siteconnect"
}

transport {
  timeout       = "5s"
  probe_timeout = "2s"
  tls_verify    = false
  user_agent    = "pos-desktop/1.0"
}

pos {
  min_plugin_version = "1.9.0"
  probe_token        = "abc"
}
`)

	cfg, err := NewConfig(fs, "/etc/siteconnect/config.hcl")
	require.NoError(t, err)

	assert.Equal(t, hclog.Debug, cfg.Level())

	db := cfg.DatabaseConfig()
	assert.Equal(t, database.DriverPostgres, db.Driver)
	assert.Equal(t, "db.internal", db.Host)
	assert.Equal(t, 5432, db.Port)
	assert.Equal(t, "s3cret", db.Password)
	assert.Equal(t, "disable", db.SSLMode)

	hc := cfg.HTTPClientConfig()
	assert.Equal(t, 5*time.Second, hc.Timeout)
	assert.False(t, *hc.TLSVerify)
	assert.Equal(t, "pos-desktop/1.0", hc.UserAgent)
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeout())

	assert.Equal(t, "1.9.0", cfg.POS.MinPluginVersion)
	assert.Equal(t, "abc", cfg.POS.ProbeToken)
}

func TestNewConfigEnvOverrides(t *testing.T) {
	t.Setenv("SITECONNECT_LOG_LEVEL", "trace")
	t.Setenv("SITECONNECT_DATABASE_PATH", "/tmp/profiles.db")
	t.Setenv("SITECONNECT_TLS_VERIFY", "false")
	t.Setenv("SITECONNECT_PROBE_TOKEN", "from-env")

	fs := writeConfig(t, `log_level = "warn"`)
	cfg, err := NewConfig(fs, "/etc/siteconnect/config.hcl")
	require.NoError(t, err)

	assert.Equal(t, "trace", cfg.LogLevel)
	assert.Equal(t, "/tmp/profiles.db", cfg.Database.Path)
	assert.False(t, *cfg.Transport.TLSVerify)
	assert.Equal(t, "from-env", cfg.POS.ProbeToken)
}

func TestNewConfigBadEnvValues(t *testing.T) {
	t.Setenv("SITECONNECT_DATABASE_PORT", "not-a-port")
	t.Setenv("SITECONNECT_TLS_VERIFY", "maybe")

	_, err := NewConfig(afero.NewMemMapFs(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SITECONNECT_DATABASE_PORT")
	assert.Contains(t, err.Error(), "SITECONNECT_TLS_VERIFY")
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(afero.NewMemMapFs(), "/nope.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestNewConfigInvalidHCL(t *testing.T) {
	fs := writeConfig(t, `database { driver = }`)
	_, err := NewConfig(fs, "/etc/siteconnect/config.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error decoding config file")
}

func TestValidateAggregatesErrors(t *testing.T) {
	fs := writeConfig(t, `
log_level = "loud"

database {
  driver = "postgres"
}

transport {
  timeout       = "soon"
  probe_timeout = "-1s"
}

pos {
  min_plugin_version = "latest"
}
`)

	_, err := NewConfig(fs, "/etc/siteconnect/config.hcl")
	require.Error(t, err)

	for _, want := range []string{
		"log_level",
		"database.dbname",
		"database.user",
		"transport.timeout",
		"transport.probe_timeout",
		"pos.min_plugin_version",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidateUnknownDriver(t *testing.T) {
	fs := writeConfig(t, `
database {
  driver = "mysql"
}
`)
	_, err := NewConfig(fs, "/etc/siteconnect/config.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
}
