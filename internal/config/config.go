// Package config loads webshell settings. Values are resolved in order of
// precedence: command line flags, WEBSHELL_ environment variables, .env
// files, a webshell config file, then defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"webshell/internal/output"
)

// EnvPrefix prefixes every environment variable webshell reads.
const EnvPrefix = "WEBSHELL"

// Configuration keys.
const (
	KeyShellBatchSize     = "shell_batch_size"
	KeyDatabase           = "database"
	KeyDatabaseName       = "database_name"
	KeyTheme              = "theme"
	KeyCompletionTimeout  = "completion_timeout"
	KeyHistoryFile        = "history_file"
	KeyCollectionCacheTTL = "collection_cache_ttl"
	KeyLogLevel           = "log_level"
	KeyLogFile            = "log_file"
	KeyTestMode           = "test_mode"
)

// Config holds resolved settings.
type Config struct {
	// ShellBatchSize is kept as configured; the shell validates it when a
	// cursor prints.
	ShellBatchSize     any
	Database           string
	DatabaseName       string
	Theme              string
	CompletionTimeout  time.Duration
	HistoryFile        string
	CollectionCacheTTL time.Duration
	LogLevel           string
	LogFile            string
	TestMode           bool
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyShellBatchSize, 20)
	v.SetDefault(KeyDatabase, ":memory:")
	v.SetDefault(KeyDatabaseName, "test")
	v.SetDefault(KeyTheme, output.DefaultTheme)
	v.SetDefault(KeyCompletionTimeout, 2*time.Second)
	v.SetDefault(KeyHistoryFile, defaultHistoryFile())
	v.SetDefault(KeyCollectionCacheTTL, 5*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyTestMode, false)
}

type loader struct {
	workDir   string
	configDir string
}

// Option configures Load.
type Option func(*loader)

// WithWorkDir sets the directory searched for webshell.* and .env files
// instead of the current working directory.
func WithWorkDir(dir string) Option {
	return func(l *loader) {
		l.workDir = dir
	}
}

// WithConfigDir sets the user configuration directory instead of
// $XDG_CONFIG_HOME/webshell.
func WithConfigDir(dir string) Option {
	return func(l *loader) {
		l.configDir = dir
	}
}

// Load resolves the configuration into v and validates it. Flags must be
// bound to v before Load is called.
func Load(v *viper.Viper, opts ...Option) (*Config, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			l.workDir = wd
		}
	}
	if l.configDir == "" {
		l.configDir = userConfigDir()
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := l.readConfigFile(v); err != nil {
		return nil, err
	}
	if err := l.mergeDotEnv(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		ShellBatchSize:     v.Get(KeyShellBatchSize),
		Database:           v.GetString(KeyDatabase),
		DatabaseName:       v.GetString(KeyDatabaseName),
		Theme:              v.GetString(KeyTheme),
		CompletionTimeout:  v.GetDuration(KeyCompletionTimeout),
		HistoryFile:        v.GetString(KeyHistoryFile),
		CollectionCacheTTL: v.GetDuration(KeyCollectionCacheTTL),
		LogLevel:           v.GetString(KeyLogLevel),
		LogFile:            v.GetString(KeyLogFile),
		TestMode:           v.GetBool(KeyTestMode),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *loader) readConfigFile(v *viper.Viper) error {
	v.SetConfigName("webshell")
	if l.workDir != "" {
		v.AddConfigPath(l.workDir)
	}
	if l.configDir != "" {
		v.AddConfigPath(l.configDir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// mergeDotEnv layers WEBSHELL_ entries of .env files over the config file.
// The working directory file wins over the user config directory file.
func (l *loader) mergeDotEnv(v *viper.Viper) error {
	values := make(map[string]any)
	for _, dir := range []string{l.configDir, l.workDir} {
		if dir == "" {
			continue
		}
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err != nil {
			// Missing .env file is not an error
			continue
		}
		envMap, err := godotenv.Read(envPath)
		if err != nil {
			return fmt.Errorf("failed to parse .env file %s: %w", envPath, err)
		}
		for key, value := range envMap {
			name, ok := strings.CutPrefix(key, EnvPrefix+"_")
			if !ok {
				continue
			}
			values[strings.ToLower(name)] = value
		}
	}
	if len(values) == 0 {
		return nil
	}
	return v.MergeConfigMap(values)
}

var logLevels = []string{"", "debug", "info", "warn", "error", "fatal"}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Database == "" {
		result = multierror.Append(result, fmt.Errorf("%s must not be empty", KeyDatabase))
	}
	if c.DatabaseName == "" || strings.ContainsAny(c.DatabaseName, `/\. "$`) {
		result = multierror.Append(result, fmt.Errorf("invalid %s %q", KeyDatabaseName, c.DatabaseName))
	}
	if !slices.Contains(output.ThemeNames(), c.Theme) {
		result = multierror.Append(result, fmt.Errorf("unknown %s %q (available: %s)",
			KeyTheme, c.Theme, strings.Join(output.ThemeNames(), ", ")))
	}
	if c.CompletionTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("%s must be positive", KeyCompletionTimeout))
	}
	if c.CollectionCacheTTL < 0 {
		result = multierror.Append(result, fmt.Errorf("%s must not be negative", KeyCollectionCacheTTL))
	}
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		result = multierror.Append(result, fmt.Errorf("invalid %s %q", KeyLogLevel, c.LogLevel))
	}
	return result.ErrorOrNil()
}

func userConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "webshell")
}

func defaultHistoryFile() string {
	dir := userConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "history")
}
