package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/wcpos/siteconnect/pkg/database"
	"github.com/wcpos/siteconnect/pkg/httpclient"
	"github.com/wcpos/siteconnect/pkg/siteconnect"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "SITECONNECT_"

// DefaultSQLitePath is where profiles are stored when nothing is configured.
const DefaultSQLitePath = ".siteconnect/profiles.db"

// Config contains the siteconnect configuration.
type Config struct {
	// LogLevel is the level of logging to use.
	LogLevel string `hcl:"log_level,optional"`

	// Database configures where connection profiles are stored.
	Database *Database `hcl:"database,block"`

	// Transport configures the HTTP client used to reach sites.
	Transport *Transport `hcl:"transport,block"`

	// POS configures the WooCommerce POS checks.
	POS *POS `hcl:"pos,block"`
}

// Database is the database block.
type Database struct {
	// Driver is "sqlite" or "postgres".
	Driver string `hcl:"driver,optional"`

	// Path is the SQLite database file.
	Path string `hcl:"path,optional"`

	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
	DBName   string `hcl:"dbname,optional"`
	SSLMode  string `hcl:"sslmode,optional"`
}

// Transport is the transport block.
type Transport struct {
	// Timeout is the whole-request timeout, as a duration string.
	Timeout string `hcl:"timeout,optional"`

	// ProbeTimeout bounds each auth transport probe.
	ProbeTimeout string `hcl:"probe_timeout,optional"`

	// TLSVerify disables certificate verification when false.
	TLSVerify *bool `hcl:"tls_verify,optional"`

	UserAgent string `hcl:"user_agent,optional"`
}

// POS is the pos block.
type POS struct {
	// MinPluginVersion below which a compatibility warning is shown.
	MinPluginVersion string `hcl:"min_plugin_version,optional"`

	// ProbeToken is a real credential used for auth probes instead of a
	// synthetic token.
	ProbeToken string `hcl:"probe_token,optional"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// NewConfig parses an HCL configuration file from fs. An empty filename
// yields the default configuration. Environment overrides are applied after
// the file.
func NewConfig(fs afero.Fs, filename string) (*Config, error) {
	cfg := &Config{}

	if filename != "" {
		src, err := afero.ReadFile(fs, filename)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := hclsimple.Decode(filename, src, evalContext(), cfg); err != nil {
			return nil, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// evalContext exposes env("NAME") to configuration files.
func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env": envFunc,
		},
	}
}

var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Database == nil {
		c.Database = &Database{}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = database.DriverSQLite
	}
	switch c.Database.Driver {
	case database.DriverSQLite:
		if c.Database.Path == "" {
			c.Database.Path = DefaultSQLitePath
		}
	case database.DriverPostgres:
		if c.Database.Host == "" {
			c.Database.Host = "localhost"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	}

	if c.Transport == nil {
		c.Transport = &Transport{}
	}
	if c.Transport.Timeout == "" {
		c.Transport.Timeout = httpclient.DefaultTimeout.String()
	}
	if c.Transport.ProbeTimeout == "" {
		c.Transport.ProbeTimeout = siteconnect.DefaultProbeTimeout.String()
	}
	if c.Transport.TLSVerify == nil {
		tlsVerify := true
		c.Transport.TLSVerify = &tlsVerify
	}
	if c.Transport.UserAgent == "" {
		c.Transport.UserAgent = httpclient.DefaultUserAgent
	}

	if c.POS == nil {
		c.POS = &POS{}
	}
	if c.POS.MinPluginVersion == "" {
		c.POS.MinPluginVersion = siteconnect.DefaultMinPluginVersion
	}
}

// applyEnv overrides values from SITECONNECT_* environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if c.Database == nil {
		c.Database = &Database{}
	}
	if c.Transport == nil {
		c.Transport = &Transport{}
	}
	if c.POS == nil {
		c.POS = &POS{}
	}

	strs := map[string]*string{
		"LOG_LEVEL":          &c.LogLevel,
		"DATABASE_DRIVER":    &c.Database.Driver,
		"DATABASE_PATH":      &c.Database.Path,
		"DATABASE_HOST":      &c.Database.Host,
		"DATABASE_USER":      &c.Database.User,
		"DATABASE_PASSWORD":  &c.Database.Password,
		"DATABASE_DBNAME":    &c.Database.DBName,
		"DATABASE_SSLMODE":   &c.Database.SSLMode,
		"TIMEOUT":            &c.Transport.Timeout,
		"PROBE_TIMEOUT":      &c.Transport.ProbeTimeout,
		"USER_AGENT":         &c.Transport.UserAgent,
		"MIN_PLUGIN_VERSION": &c.POS.MinPluginVersion,
		"PROBE_TOKEN":        &c.POS.ProbeToken,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	var result *multierror.Error
	if v, ok := lookup(EnvPrefix + "DATABASE_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%sDATABASE_PORT: %w", EnvPrefix, err))
		} else {
			c.Database.Port = port
		}
	}
	if v, ok := lookup(EnvPrefix + "TLS_VERIFY"); ok && v != "" {
		verify, err := strconv.ParseBool(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%sTLS_VERIFY: %w", EnvPrefix, err))
		} else {
			c.Transport.TLSVerify = &verify
		}
	}
	return result.ErrorOrNil()
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}

	switch c.Database.Driver {
	case database.DriverSQLite:
		if c.Database.Path == "" {
			result = multierror.Append(result, fmt.Errorf("database.path is required for sqlite"))
		}
	case database.DriverPostgres:
		if c.Database.DBName == "" {
			result = multierror.Append(result, fmt.Errorf("database.dbname is required for postgres"))
		}
		if c.Database.User == "" {
			result = multierror.Append(result, fmt.Errorf("database.user is required for postgres"))
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			result = multierror.Append(result, fmt.Errorf("database.port %d is out of range", c.Database.Port))
		}
	default:
		result = multierror.Append(result,
			fmt.Errorf("database.driver must be %q or %q, got %q",
				database.DriverSQLite, database.DriverPostgres, c.Database.Driver))
	}

	if d, err := time.ParseDuration(c.Transport.Timeout); err != nil {
		result = multierror.Append(result, fmt.Errorf("transport.timeout: %w", err))
	} else if d <= 0 {
		result = multierror.Append(result, fmt.Errorf("transport.timeout must be positive"))
	}
	if d, err := time.ParseDuration(c.Transport.ProbeTimeout); err != nil {
		result = multierror.Append(result, fmt.Errorf("transport.probe_timeout: %w", err))
	} else if d <= 0 {
		result = multierror.Append(result, fmt.Errorf("transport.probe_timeout must be positive"))
	}

	if _, err := semver.NewVersion(c.POS.MinPluginVersion); err != nil {
		result = multierror.Append(result, fmt.Errorf("pos.min_plugin_version: %w", err))
	}

	return result.ErrorOrNil()
}

// Level returns the configured hclog level.
func (c *Config) Level() hclog.Level {
	return hclog.LevelFromString(c.LogLevel)
}

// DatabaseConfig converts the database block.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Driver:   c.Database.Driver,
		Path:     c.Database.Path,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		DBName:   c.Database.DBName,
		SSLMode:  c.Database.SSLMode,
	}
}

// HTTPClientConfig converts the transport block. The config must have been
// validated.
func (c *Config) HTTPClientConfig() *httpclient.Config {
	timeout, _ := time.ParseDuration(c.Transport.Timeout)
	return &httpclient.Config{
		Timeout:   timeout,
		TLSVerify: c.Transport.TLSVerify,
		UserAgent: c.Transport.UserAgent,
	}
}

// ProbeTimeout returns the per-probe timeout. The config must have been
// validated.
func (c *Config) ProbeTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Transport.ProbeTimeout)
	return d
}
