// Package config loads process settings and batch job files. Settings come
// from an optional config file and AVTRANSCODE_* environment variables;
// flags bound by the CLI take precedence over both.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/zsiec/avtranscode/internal/media"
)

// EnvPrefix prefixes every environment variable the tool reads.
const EnvPrefix = "AVTRANSCODE"

// Config holds process-level settings.
type Config struct {
	// ProfilesDir is scanned for user profiles in addition to the presets.
	ProfilesDir string `mapstructure:"profiles_dir"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"log_level"`
	// Parallel bounds the number of batch jobs running at once.
	Parallel int `mapstructure:"parallel"`
}

// New returns a viper instance with the defaults and environment bindings
// applied. Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("profiles_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("parallel", 2)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path, or looks for avtranscode.yaml in the
// working directory and $HOME/.avtranscode when path is empty.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("avtranscode")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(os.ExpandEnv("$HOME/.avtranscode"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading %s: %w: %w", v.ConfigFileUsed(), media.ErrResource, err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: %w: %w", media.ErrConfiguration, err)
	}
	if c.Parallel < 1 {
		c.Parallel = 1
	}
	return &c, nil
}
