package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "ROCOTOVIEWER",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// SearchPaths returns the config files tried, in order, when no explicit
// file is given.
func SearchPaths() []string {
	paths := []string{DefaultConfigFile}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".rocotoviewer", "config.yaml"))
	}
	return paths
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (ROCOTOVIEWER_*)
// 3. Config file (--config, ROCOTOVIEWER_CONFIG, ./rocoto_config.yaml,
// ~/.rocotoviewer/config.yaml)
// 4. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	file := l.configFile
	if file == "" {
		file = os.Getenv(l.envPrefix + "_CONFIG")
	}
	if file == "" {
		for _, candidate := range SearchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				file = candidate
				break
			}
		}
	}

	if file != "" {
		l.v.SetConfigFile(file)
		l.v.SetConfigType("yaml")
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return l.Config()
}

// Config unmarshals the current settings, including values changed with
// SetValue since Load.
func (l *Loader) Config() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("workflows", []map[string]any{})
	for key, value := range defaults {
		l.v.SetDefault(key, value)
	}
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns all settings as a map.
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}

// Keys returns the settable scalar keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrUnknownKey is returned by SetValue for keys outside the schema.
var ErrUnknownKey = errors.New("unknown configuration key")

// SetValue parses raw according to the type of key's default and stores it.
func (l *Loader) SetValue(key, raw string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	def, ok := defaults[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	var value any
	switch def.(type) {
	case bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: expected a boolean, got %q", key, raw)
		}
		value = b
	case int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: expected an integer, got %q", key, raw)
		}
		value = n
	case int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: expected an integer, got %q", key, raw)
		}
		value = n
	default:
		value = raw
	}
	l.v.Set(key, value)
	return nil
}
