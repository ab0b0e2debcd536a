// Package config resolves abilib settings from flags, ABILIB_* environment
// variables and an optional config file.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/phobologic/abilib/internal/model"
	"github.com/phobologic/abilib/internal/stub"
)

// EnvPrefix prefixes every environment variable, e.g. ABILIB_LOG_JSON.
const EnvPrefix = "ABILIB"

// DefaultCatalog is the catalog path used when none is configured.
const DefaultCatalog = "abilib.toml"

const (
	KeyCatalog            = "catalog"
	KeyJobs               = "jobs"
	KeyLogJSON            = "log-json"
	KeyVerbose            = "verbose"
	KeyVariadicStackBytes = "variadic-stack-bytes"
)

// Config is the resolved setting set.
type Config struct {
	Catalog            string `mapstructure:"catalog"`
	Jobs               int    `mapstructure:"jobs"`
	LogJSON            bool   `mapstructure:"log-json"`
	Verbose            int    `mapstructure:"verbose"`
	VariadicStackBytes int    `mapstructure:"variadic-stack-bytes"`
}

// SetDefaults installs the default for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyCatalog, DefaultCatalog)
	v.SetDefault(KeyJobs, 0) // GOMAXPROCS
	v.SetDefault(KeyLogJSON, false)
	v.SetDefault(KeyVerbose, 0)
	v.SetDefault(KeyVariadicStackBytes, stub.DefaultVariadicStackBytes)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// BindFlags binds every flag in fs whose name is a config key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range []string{KeyCatalog, KeyJobs, KeyLogJSON, KeyVerbose, KeyVariadicStackBytes} {
		f := fs.Lookup(key)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "binding --%s", key)
		}
	}
	return nil
}

// Load reads the optional config file at path and resolves the settings.
// Precedence, highest first: flags, environment, file, defaults.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "reading config %s", path), model.ErrConfiguration)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding config"), model.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Catalog == "" {
		return errors.Mark(errors.New("catalog path is empty"), model.ErrConfiguration)
	}
	if c.Jobs < 0 {
		return errors.Mark(errors.Newf("jobs must not be negative, got %d", c.Jobs), model.ErrConfiguration)
	}
	if c.VariadicStackBytes <= 0 || c.VariadicStackBytes%8 != 0 {
		return errors.WithHint(
			errors.Mark(errors.Newf("variadic-stack-bytes must be a positive multiple of 8, got %d", c.VariadicStackBytes), model.ErrConfiguration),
			"the default is 256")
	}
	return nil
}
