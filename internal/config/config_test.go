package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func load(t *testing.T, workDir, configDir string) (*Config, error) {
	t.Helper()
	return Load(viper.New(), WithWorkDir(workDir), WithConfigDir(configDir))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, t.TempDir(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.ShellBatchSize)
	assert.Equal(t, ":memory:", cfg.Database)
	assert.Equal(t, "test", cfg.DatabaseName)
	assert.Equal(t, "solarized-dark", cfg.Theme)
	assert.Equal(t, 2*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 5*time.Second, cfg.CollectionCacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.TestMode)
}

func TestLoad_Precedence(t *testing.T) {
	workDir, configDir := t.TempDir(), t.TempDir()

	writeFile(t, workDir, "webshell.yaml", "database_name: fromfile\ntheme: monokai\nshell_batch_size: 5\n")
	writeFile(t, configDir, ".env", "WEBSHELL_DATABASE_NAME=fromconfigenv\nWEBSHELL_COMPLETION_TIMEOUT=3s\n")
	writeFile(t, workDir, ".env", "WEBSHELL_DATABASE_NAME=fromdotenv\nOTHER=ignored\n")
	t.Setenv("WEBSHELL_THEME", "plain")

	cfg, err := load(t, workDir, configDir)
	require.NoError(t, err)

	assert.Equal(t, "fromdotenv", cfg.DatabaseName)
	assert.Equal(t, "plain", cfg.Theme)
	assert.Equal(t, 3*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, 5, cfg.ShellBatchSize)
}

func TestLoad_FlagsWin(t *testing.T) {
	t.Setenv("WEBSHELL_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level", "debug"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag(KeyLogLevel, flags.Lookup("log-level")))

	cfg, err := Load(v, WithWorkDir(t.TempDir()), WithConfigDir(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_BatchSizeKeptRaw(t *testing.T) {
	t.Setenv("WEBSHELL_SHELL_BATCH_SIZE", "lots")

	cfg, err := load(t, t.TempDir(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "lots", cfg.ShellBatchSize)
}

func TestLoad_Errors(t *testing.T) {
	workDir := t.TempDir()
	writeFile(t, workDir, "webshell.yaml", "theme: [unclosed\n")
	_, err := load(t, workDir, t.TempDir())
	assert.ErrorContains(t, err, "failed to read config file")

	workDir = t.TempDir()
	writeFile(t, workDir, ".env", "WEBSHELL_THEME='unterminated\n")
	_, err = load(t, workDir, t.TempDir())
	assert.ErrorContains(t, err, "failed to parse .env file")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database:           ":memory:",
			DatabaseName:       "test",
			Theme:              "plain",
			CompletionTimeout:  time.Second,
			CollectionCacheTTL: time.Second,
			LogLevel:           "info",
		}
	}

	tests := []struct {
		name     string
		mutate   func(c *Config)
		expected []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty database", mutate: func(c *Config) { c.Database = "" }, expected: []string{"database must not be empty"}},
		{name: "database name with dot", mutate: func(c *Config) { c.DatabaseName = "a.b" }, expected: []string{`invalid database_name "a.b"`}},
		{name: "unknown theme", mutate: func(c *Config) { c.Theme = "neon" }, expected: []string{`unknown theme "neon"`}},
		{
			name: "several at once",
			mutate: func(c *Config) {
				c.CompletionTimeout = 0
				c.CollectionCacheTTL = -time.Second
				c.LogLevel = "loud"
			},
			expected: []string{
				"completion_timeout must be positive",
				"collection_cache_ttl must not be negative",
				`invalid log_level "loud"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if len(tt.expected) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, msg := range tt.expected {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}
