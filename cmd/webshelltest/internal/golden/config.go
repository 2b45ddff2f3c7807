// Package golden records and verifies webshell scripts against golden files.
// Every test is a pair of files in the test directory: name.js holds the
// statements and name.expected the transcript webshell printed for them.
package golden

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values
const (
	DefaultTestDir     = "test/golden"
	DefaultWebshellCmd = "webshell"
	DefaultTestTimeout = 30

	scriptExt   = ".js"
	expectedExt = ".expected"
)

// Config holds the global configuration for webshelltest
type Config struct {
	TestDir     string
	WebshellCmd string
	Verbose     bool
	TestTimeout int
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		TestDir:     DefaultTestDir,
		WebshellCmd: DefaultWebshellCmd,
		TestTimeout: DefaultTestTimeout,
	}
}

// ScriptPath returns the path of the test's script.
func (c *Config) ScriptPath(testName string) string {
	return filepath.Join(c.TestDir, testName+scriptExt)
}

// ExpectedPath returns the path of the test's golden file.
func (c *Config) ExpectedPath(testName string) string {
	return filepath.Join(c.TestDir, testName+expectedExt)
}

// TestNames lists the tests in the test directory in name order.
func (c *Config) TestNames() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(c.TestDir, "*"+scriptExt))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(match), scriptExt))
	}
	return names, nil
}

// ScriptExecutor runs a script and returns everything it printed.
type ScriptExecutor func(ctx context.Context, scriptPath string) (string, error)

// CommandExecutor runs scripts with the webshell binary in deterministic
// mode: sequential ids, plain output and only error logs.
func CommandExecutor(webshellCmd string) ScriptExecutor {
	return func(ctx context.Context, scriptPath string) (string, error) {
		binary, err := findWebshell(webshellCmd)
		if err != nil {
			return "", err
		}
		cmd := exec.CommandContext(ctx, binary,
			"--test-mode", "--log-level", "error", "--theme", "plain", "exec", scriptPath)
		cmd.Env = append(os.Environ(), "NO_COLOR=1")
		out, err := cmd.CombinedOutput()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return string(out), fmt.Errorf("script timed out: %s", scriptPath)
		}
		return string(out), err
	}
}

// findWebshell resolves the binary, preferring a local build over PATH.
func findWebshell(webshellCmd string) (string, error) {
	if webshellCmd != DefaultWebshellCmd {
		if _, err := os.Stat(webshellCmd); err == nil {
			return webshellCmd, nil
		}
		if path, err := exec.LookPath(webshellCmd); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("webshell command not found: %s", webshellCmd)
	}

	candidates := []string{"./bin/webshell", "bin/webshell"}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if path, err := exec.LookPath(webshellCmd); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("webshell command not found. Tried: %v", append(candidates, webshellCmd))
}

func (c *Config) timeout() time.Duration {
	if c.TestTimeout <= 0 {
		return DefaultTestTimeout * time.Second
	}
	return time.Duration(c.TestTimeout) * time.Second
}
