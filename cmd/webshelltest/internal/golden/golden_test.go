package golden

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webshell/internal/database"
	"webshell/internal/output"
	"webshell/internal/sandbox"
	"webshell/internal/shell"
	"webshell/internal/terminal"
)

// inProcess runs a script the way webshell exec --test-mode does, without
// needing a built binary.
func inProcess(_ context.Context, scriptPath string) (string, error) {
	file, err := os.Open(scriptPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	db, err := database.Open(":memory:", "test", database.WithIDGenerator(&database.SequentialIDs{}))
	if err != nil {
		return "", err
	}
	defer func() { _ = db.Close() }()

	buffer := output.NewCaptureBuffer()
	view := terminal.NewView(output.NewPrinter(output.WithWriter(buffer), output.TestMode()))
	err = terminal.RunScript(file, shell.New(view, sandbox.New(), db))
	return buffer.String(), err
}

func stubExecutor(output *string) ScriptExecutor {
	return func(context.Context, string) (string, error) {
		return *output, nil
	}
}

func TestRepositoryGoldenFiles(t *testing.T) {
	config := NewConfig()
	config.TestDir = filepath.Join("..", "..", "..", "..", "test", "golden")

	var out bytes.Buffer
	err := NewRunner(config, inProcess, &out).RunAllTests()
	require.NoError(t, err, out.String())
	assert.Contains(t, out.String(), "PASS batches")
	assert.Contains(t, out.String(), "PASS collections")
}

func TestRunner_RecordRunDiff(t *testing.T) {
	config := NewConfig()
	config.TestDir = t.TempDir()
	require.NoError(t, os.WriteFile(config.ScriptPath("sample"), []byte("1\n"), 0o600))

	transcript := "> 1\n1\n\n"
	var out bytes.Buffer
	runner := NewRunner(config, stubExecutor(&transcript), &out)

	require.NoError(t, runner.RecordTest("sample"))
	recorded, err := os.ReadFile(config.ExpectedPath("sample"))
	require.NoError(t, err)
	assert.Equal(t, "> 1\n1\n", string(recorded))

	require.NoError(t, runner.RunTest("sample"))

	transcript = "> 1\n2"
	assert.ErrorContains(t, runner.RunTest("sample"), "doesn't match expected")

	out.Reset()
	require.NoError(t, runner.ShowDiff("sample"))
	assert.Contains(t, out.String(), "=== Test: sample ===")
	assert.Contains(t, out.String(), "\n- 1\n")
	assert.Contains(t, out.String(), "\n+ 2\n")

	transcript = "> 1\n1"
	out.Reset()
	require.NoError(t, runner.ShowDiff("sample"))
	assert.Contains(t, out.String(), "No differences found")
}

func TestRunner_Errors(t *testing.T) {
	config := NewConfig()
	config.TestDir = t.TempDir()
	transcript := ""
	runner := NewRunner(config, stubExecutor(&transcript), &bytes.Buffer{})

	assert.ErrorContains(t, runner.RunTest("missing"), "test script not found")

	require.NoError(t, os.WriteFile(config.ScriptPath("unrecorded"), []byte("1\n"), 0o600))
	assert.ErrorContains(t, runner.RunTest("unrecorded"), "failed to read expected file")

	var out bytes.Buffer
	runner = NewRunner(config, stubExecutor(&transcript), &out)
	err := runner.RunAllTests()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecorded")
	assert.Contains(t, out.String(), "Results: 0 passed, 1 failed")
}

func TestNormalizer(t *testing.T) {
	n := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "object id", input: `ObjectId("5f1d7a3e9c1b2a0012345678")`, expected: `ObjectId("<OBJECT_ID>")`},
		{name: "timestamp", input: "at 2025-01-02T03:04:05Z", expected: "at <TIMESTAMP>"},
		{name: "temp path", input: `load("/tmp/TestX123/seed.js")`, expected: `load("<TMP_PATH>")`},
		{name: "short hex kept", input: "abc123", expected: "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}

	assert.True(t, n.Equal(`{ "_id" : ObjectId("<OBJECT_ID>") }`, `{ "_id" : ObjectId("000000010000000000000001") }`))
	assert.False(t, n.Equal("a\nb", "a"))
	assert.False(t, n.Equal("a", "b"))
}

func TestConfig_TestNames(t *testing.T) {
	config := NewConfig()
	config.TestDir = t.TempDir()
	for _, name := range []string{"b.js", "a.js", "a.expected", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(config.TestDir, name), nil, 0o600))
	}

	names, err := config.TestNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestFindWebshell(t *testing.T) {
	_, err := findWebshell(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "webshell command not found")

	binary := filepath.Join(t.TempDir(), "webshell-local")
	require.NoError(t, os.WriteFile(binary, nil, 0o700))
	path, err := findWebshell(binary)
	require.NoError(t, err)
	assert.Equal(t, binary, path)
}
