// Package main provides the webshell CLI application entry point.
// webshell is an interactive database shell with tab completion, backed by
// an embedded document store.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"webshell/internal/config"
	"webshell/internal/database"
	"webshell/internal/logger"
	"webshell/internal/output"
	"webshell/internal/sandbox"
	"webshell/internal/shell"
	"webshell/internal/terminal"
	"webshell/internal/version"
	"webshell/pkg/shelltypes"
)

var (
	cfg      *config.Config
	detailed bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "webshell",
	Short: "webshell - interactive document database shell",
	Long: `webshell evaluates database statements such as db.users.find({age = {"$gt" = 30}})
against an embedded document store, with history and TAB completion of
collections, methods and properties. When stdin is not a terminal the
statements are read from it one per line.`,
	SilenceUsage: true,
	RunE:         runShell,
}

// execCmd runs a script non-interactively
var execCmd = &cobra.Command{
	Use:   "exec [script]",
	Short: "Execute statements from a script file or stdin",
	Long: `Execute every line of a script as a shell statement, printing the transcript
to stdout. Without an argument, or with "-", statements are read from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExec,
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		if detailed {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.GetDetailedVersion())
			return
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.GetFormattedVersion())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.String("log-file", "", "Write logs to file instead of stderr")
	flags.Bool("test-mode", false, "Run in deterministic test mode")
	flags.String("database", "", "SQLite DSN of the document store [default: in-memory]")
	flags.String("db-name", "", "Name of the database bound to db [default: test]")
	flags.String("theme", "", "Color theme ("+strings.Join(output.ThemeNames(), "|")+")")
	flags.String("history-file", "", "File the input history is kept in")

	// Bind flags to viper
	bindings := map[string]string{
		config.KeyLogLevel:     "log-level",
		config.KeyLogFile:      "log-file",
		config.KeyTestMode:     "test-mode",
		config.KeyDatabase:     "database",
		config.KeyDatabaseName: "db-name",
		config.KeyTheme:        "theme",
		config.KeyHistoryFile:  "history-file",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", name, err)
			os.Exit(1)
		}
	}

	versionCmd.Flags().BoolVar(&detailed, "detailed", false, "Show detailed build information")

	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(versionCmd)

	// Configure logger before any command execution
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	var err error
	cfg, err = config.Load(viper.GetViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile, cfg.TestMode); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
		os.Exit(1)
	}
}

func runShell(cmd *cobra.Command, _ []string) error {
	if !isTerminal(os.Stdin) {
		logger.Debug("stdin is not a terminal, reading statements from it")
		return runScript(cmd, os.Stdin)
	}

	logger.Info("Starting webshell", "version", version.Version, "database", cfg.DatabaseName)

	term, err := terminal.New(terminal.Config{
		Prompt:            terminal.DefaultPrompt,
		HistoryFile:       historyFile(cfg.HistoryFile),
		CompletionTimeout: cfg.CompletionTimeout,
		Theme:             cfg.Theme,
	})
	if err != nil {
		return err
	}

	s, closeSession, err := openSession(term.View(), shell.WithInputArea(term.Input()))
	if err != nil {
		return err
	}
	defer closeSession()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, version.GetFormattedVersion())
	_, _ = fmt.Fprintf(out, "connecting to: %s\n", cfg.DatabaseName)
	_, _ = fmt.Fprintln(out, `Type "help" for help, "exit" to quit.`)

	return term.Run(s)
}

func runExec(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || args[0] == "-" {
		return runScript(cmd, cmd.InOrStdin())
	}

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open script: %w", err)
	}
	defer func() { _ = file.Close() }()

	logger.Info("Executing script", "script", args[0])
	return runScript(cmd, file)
}

func runScript(cmd *cobra.Command, r io.Reader) error {
	printer, err := output.NewTerminalPrinter(cmd.OutOrStdout(), cfg.Theme)
	if err != nil {
		return err
	}
	s, closeSession, err := openSession(terminal.NewView(printer))
	if err != nil {
		return err
	}
	defer closeSession()
	return terminal.RunScript(r, s)
}

func openSession(view shelltypes.ResponseView, opts ...shell.Option) (*shell.Shell, func(), error) {
	dbOpts := []database.Option{database.WithNameCacheTTL(cfg.CollectionCacheTTL)}
	if cfg.TestMode {
		dbOpts = append(dbOpts, database.WithIDGenerator(&database.SequentialIDs{}))
	}
	db, err := database.Open(cfg.Database, cfg.DatabaseName, dbOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	opts = append(opts, shell.WithBatchSize(cfg.ShellBatchSize))
	s := shell.New(view, sandbox.New(), db, opts...)
	return s, func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
	}, nil
}

// historyFile makes sure the history file's directory exists, and disables
// history when it cannot be created.
func historyFile(path string) string {
	if path == "" {
		return ""
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		logger.Warn("History disabled", "path", path, "error", err)
		return ""
	}
	return path
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
