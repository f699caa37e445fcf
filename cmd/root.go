package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/mailsweep/internal/instrumentation"
	"github.com/teemow/mailsweep/internal/logging"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitPartialFailure = 2
)

// envPrefix prefixes the environment variables that provide flag defaults.
const envPrefix = "MAILSWEEP_"

// ExitError carries the exit code a failed command should end the process with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// appRuntime holds the services shared by all subcommands.
type appRuntime struct {
	logger   *slog.Logger
	provider *instrumentation.Provider
	audit    *instrumentation.AuditLogger
}

func (a *appRuntime) metrics() *instrumentation.Metrics {
	if a.provider == nil {
		return nil
	}
	return a.provider.Metrics()
}

func (a *appRuntime) shutdown(ctx context.Context) {
	if a == nil || a.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.provider.Shutdown(ctx); err != nil {
		a.logger.Warn("instrumentation shutdown failed", logging.Err(err))
	}
}

var (
	logLevel  string
	logFormat string
	envFile   string

	// app is set up before any subcommand runs.
	app *appRuntime
)

// rootCmd represents the base command for the mailsweep application
var rootCmd = &cobra.Command{
	Use:   "mailsweep",
	Short: "Clean bounced contacts and send templated mail with Google APIs",
	Long: `mailsweep works on behalf of a single Google account:

  - contacts: find and delete contacts whose address is on a bounced list
  - send:     send a single message or templated bulk mail through Gmail
  - auth:     authorize and check access to the People and Gmail APIs

Every flag can also be set through the environment as MAILSWEEP_<FLAG>,
for example MAILSWEEP_CREDENTIALS. Variables are read from a .env file
when one is present.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupRuntime,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailsweep version %s\n" .Version}}`)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	app.shutdown(ctx)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func setupRuntime(cmd *cobra.Command, _ []string) error {
	if err := loadEnvFile(envFile); err != nil {
		return err
	}
	if err := applyEnvDefaults(cmd.Flags()); err != nil {
		return err
	}

	logger, err := logging.NewLogger(cmd.ErrOrStderr(), logLevel, logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(cmd.Context(), instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	app = &appRuntime{
		logger:   logger,
		provider: provider,
		audit:    instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging),
	}
	return nil
}

// loadEnvFile loads variables from path without overriding the environment.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// envName returns the environment variable backing a flag, e.g.
// MAILSWEEP_LOAD_FILE for --load-file.
func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// applyEnvDefaults sets every flag not given on the command line from its
// environment variable.
func applyEnvDefaults(flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "help" {
			return
		}
		value, ok := os.LookupEnv(envName(f.Name))
		if !ok || value == "" {
			return
		}
		if err := flags.Set(f.Name, value); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", envName(f.Name), err))
		}
	})
	return errors.Join(errs...)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "File to load environment variables from")

	rootCmd.AddCommand(newContactsCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
