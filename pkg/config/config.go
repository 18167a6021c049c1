// Package config loads the MirrorManager configuration file.
//
// The file must be valid TOML. Simple KEY = 'value' assignments qualify, but a
// Python mirrormanager2.cfg using literals such as True or None does not
// parse; point -c at a TOML file holding the keys below, or use the MM2_*
// environment variables. Other valid TOML keys in the file are ignored.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultPath is where MirrorManager installs its configuration.
const DefaultPath = "/etc/mirrormanager/mirrormanager2.cfg"

// EnvPrefix prefixes the environment variables that override file settings,
// e.g. MM2_DB_URL.
const EnvPrefix = "MM2"

// Config holds the settings used by the migration.
type Config struct {
	// DBURL is a SQLAlchemy style database URL.
	DBURL string `mapstructure:"db_url" validate:"required"`
	// UMDLPrefix is the local directory that holds the mirrored trees.
	UMDLPrefix string `mapstructure:"umdl_prefix" validate:"required"`
	// LogLevel is one of debug, info, warn, error or none.
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error none"`
}

var validate = validator.New()

// Load reads the configuration file at path. Environment variables override
// values from the file; a missing file is accepted when the environment
// provides everything required.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	for _, key := range []string{"db_url", "umdl_prefix", "log_level"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s (must be TOML): %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// Set defaults
	config.setDefaults()

	// Validate
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.UMDLPrefix == "" {
		c.UMDLPrefix = "/"
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// keys maps struct fields back to the names operators write in the file.
var keys = map[string]string{
	"DBURL":      "DB_URL",
	"UMDLPrefix": "UMDL_PREFIX",
	"LogLevel":   "LOG_LEVEL",
}

func describe(fe validator.FieldError) string {
	key, ok := keys[fe.Field()]
	if !ok {
		key = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required (or set %s_%s)", key, EnvPrefix, key)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", key)
	}
}
