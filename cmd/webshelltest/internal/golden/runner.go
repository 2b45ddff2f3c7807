package golden

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Runner records, runs and diffs golden file tests.
type Runner struct {
	config     *Config
	execute    ScriptExecutor
	normalizer *Normalizer
	out        io.Writer
}

// NewRunner creates a runner. A nil executor runs the webshell binary
// named in config.
func NewRunner(config *Config, execute ScriptExecutor, out io.Writer) *Runner {
	if execute == nil {
		execute = CommandExecutor(config.WebshellCmd)
	}
	if out == nil {
		out = os.Stdout
	}
	return &Runner{config: config, execute: execute, normalizer: NewNormalizer(), out: out}
}

// actual runs the test's script and returns its normalized transcript.
func (r *Runner) actual(testName string) (string, error) {
	scriptPath := r.config.ScriptPath(testName)
	if _, err := os.Stat(scriptPath); err != nil {
		return "", fmt.Errorf("test script not found: %s", scriptPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.config.timeout())
	defer cancel()

	output, err := r.execute(ctx, scriptPath)
	if err != nil {
		if r.config.Verbose {
			_, _ = fmt.Fprintf(r.out, "Command failed with error: %v\nOutput: %s\n", err, output)
		}
		if ctx.Err() != nil || output == "" {
			return "", err
		}
	}
	return r.normalizer.Normalize(cleanOutput(output)), nil
}

func (r *Runner) expected(testName string) (string, error) {
	path := r.config.ExpectedPath(testName)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read expected file %s: %w", path, err)
	}
	return strings.TrimRight(string(content), "\n"), nil
}

// RecordTest runs the test's script and saves the transcript as its golden file.
func (r *Runner) RecordTest(testName string) error {
	output, err := r.actual(testName)
	if err != nil {
		return err
	}
	if err := os.WriteFile(r.config.ExpectedPath(testName), []byte(output+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write expected file: %w", err)
	}
	if r.config.Verbose {
		_, _ = fmt.Fprintf(r.out, "Recorded expected output for test: %s\n", testName)
	}
	return nil
}

// RunTest runs the test and compares its transcript with the golden file.
func (r *Runner) RunTest(testName string) error {
	actual, err := r.actual(testName)
	if err != nil {
		return err
	}
	expected, err := r.expected(testName)
	if err != nil {
		return err
	}
	if !r.normalizer.Equal(expected, actual) {
		return fmt.Errorf("test failed: output doesn't match expected")
	}
	if r.config.Verbose {
		_, _ = fmt.Fprintf(r.out, "Test passed: %s\n", testName)
	}
	return nil
}

// RunAllTests runs every test in the test directory and reports a summary.
func (r *Runner) RunAllTests() error {
	tests, err := r.config.TestNames()
	if err != nil {
		return fmt.Errorf("failed to find tests: %w", err)
	}

	var failures *multierror.Error
	passed := 0
	for _, test := range tests {
		if err := r.RunTest(test); err != nil {
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", test, err))
			_, _ = fmt.Fprintf(r.out, "FAIL %s: %v\n", test, err)
			continue
		}
		passed++
		_, _ = fmt.Fprintf(r.out, "PASS %s\n", test)
	}

	failed := 0
	if failures != nil {
		failed = failures.Len()
	}
	_, _ = fmt.Fprintf(r.out, "\nResults: %d passed, %d failed\n", passed, failed)
	return failures.ErrorOrNil()
}

// ShowDiff prints the differences between the golden file and a fresh run.
func (r *Runner) ShowDiff(testName string) error {
	actual, err := r.actual(testName)
	if err != nil {
		return err
	}
	expected, err := r.expected(testName)
	if err != nil {
		return err
	}
	r.printDiff(testName, expected, actual)
	return nil
}

func (r *Runner) printDiff(testName, expected, actual string) {
	_, _ = fmt.Fprintf(r.out, "=== Test: %s ===\n", testName)
	if r.normalizer.Equal(expected, actual) {
		_, _ = fmt.Fprintln(r.out, "No differences found - test passes!")
		return
	}

	_, _ = fmt.Fprintln(r.out, "\n--- Expected ---")
	r.printNumberedLines(expected)
	_, _ = fmt.Fprintln(r.out, "\n--- Actual ---")
	r.printNumberedLines(actual)

	_, _ = fmt.Fprintln(r.out, "\n--- Diff ---")
	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(expected, actual)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)
	for _, diff := range diffs {
		var prefix string
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffEqual:
			// unchanged lines are shown in the listings above
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(diff.Text, "\n"), "\n") {
			_, _ = fmt.Fprintln(r.out, prefix+line)
		}
	}
}

func (r *Runner) printNumberedLines(content string) {
	for i, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(r.out, "%4d| %s\n", i+1, line)
	}
}
