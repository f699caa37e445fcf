package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain error", errors.New("boom"), ExitFailure},
		{"partial failure", &ExitError{Code: ExitPartialFailure, Err: errors.New("2 of 5 sends failed")}, ExitPartialFailure},
		{"wrapped exit error", fmt.Errorf("outer: %w", &ExitError{Code: ExitPartialFailure, Err: errors.New("x")}), ExitPartialFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := &ExitError{Code: ExitFailure, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "inner", err.Error())
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "MAILSWEEP_LOAD_FILE", envName("load-file"))
	assert.Equal(t, "MAILSWEEP_CREDENTIALS", envName("credentials"))
	assert.Equal(t, "MAILSWEEP_NO_DRY_RUN", envName("no-dry-run"))
}

func TestApplyEnvDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	credentials := flags.String("credentials", "credentials.json", "")
	token := flags.String("token", "token.json", "")
	delay := flags.Duration("delay", time.Second, "")
	require.NoError(t, flags.Parse([]string{"--token", "cli.json"}))

	t.Setenv("MAILSWEEP_CREDENTIALS", "/secrets/credentials.json")
	t.Setenv("MAILSWEEP_TOKEN", "env.json")
	t.Setenv("MAILSWEEP_DELAY", "2s")

	require.NoError(t, applyEnvDefaults(flags))

	assert.Equal(t, "/secrets/credentials.json", *credentials)
	assert.Equal(t, "cli.json", *token, "command line wins over the environment")
	assert.Equal(t, 2*time.Second, *delay)
}

func TestApplyEnvDefaults_Invalid(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Duration("delay", time.Second, "")
	t.Setenv("MAILSWEEP_DELAY", "soon")

	err := applyEnvDefaults(flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAILSWEEP_DELAY")
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, loadEnvFile(""))
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MAILSWEEP_TEST_VALUE=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("MAILSWEEP_TEST_VALUE") })

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("MAILSWEEP_TEST_VALUE"))
}

func TestLoadEnvFile_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MAILSWEEP_TEST_KEEP=from-file\n"), 0o600))
	t.Setenv("MAILSWEEP_TEST_KEEP", "from-env")

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-env", os.Getenv("MAILSWEEP_TEST_KEEP"))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"contacts", "send", "auth", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
