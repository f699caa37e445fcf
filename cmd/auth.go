package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/teemow/mailsweep/internal/contacts"
	"github.com/teemow/mailsweep/internal/gmail"
	"github.com/teemow/mailsweep/internal/google"
	"github.com/teemow/mailsweep/internal/logging"
)

// authFlags are the credential flags shared by all API commands.
type authFlags struct {
	credentials string
	token       string
}

func (f *authFlags) register(cmd *cobra.Command, defaultToken string) {
	cmd.Flags().StringVar(&f.credentials, "credentials", "credentials.json", "Path to Google OAuth credentials file")
	cmd.Flags().StringVar(&f.token, "token", defaultToken, "Path to the token file (keep it secret)")
}

// authorizedClient returns an HTTP client authorized for scopes, running the
// manual authorization flow on the terminal when needed.
func authorizedClient(ctx context.Context, cmd *cobra.Command, rt *appRuntime, flags authFlags, scopes []string) (*http.Client, error) {
	if _, err := os.Stat(flags.credentials); errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(cmd.OutOrStdout(), google.SetupInstructions(flags.credentials))
	}

	authenticator := &google.Authenticator{
		CredentialsFile: flags.credentials,
		Store:           google.NewFileStore(flags.token),
		Scopes:          scopes,
		Prompt:          cmd.InOrStdin(),
		Out:             cmd.OutOrStdout(),
		Logger:          logging.WithService(rt.logger, "oauth2"),
		Metrics:         rt.metrics(),
	}

	ts, err := authenticator.Credential(ctx)
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, Err: err}
	}
	return google.HTTPClient(ctx, ts), nil
}

func newAuthCmd() *cobra.Command {
	var flags authFlags

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize mailsweep and check access to the People and Gmail APIs",
		Long: `Authorize mailsweep with your Google account and verify that the token works.

When no usable token is stored, the authorization URL is printed. Open it in
any browser, approve access and paste the code shown back into the terminal.
The token is saved for later runs of contacts and send.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			httpClient, err := authorizedClient(ctx, cmd, app, flags, google.AuthCheckScopes)
			if err != nil {
				return err
			}

			peopleClient, err := contacts.NewClient(ctx, app.metrics(), option.WithHTTPClient(httpClient))
			if err != nil {
				return err
			}
			gmailClient, err := gmail.NewClient(ctx, app.metrics(), option.WithHTTPClient(httpClient))
			if err != nil {
				return err
			}

			return runAuthCheck(ctx, cmd.OutOrStdout(), peopleClient, gmailClient)
		},
	}

	flags.register(cmd, "token.json")

	return cmd
}

type selfService interface {
	Me(ctx context.Context) (*contacts.Self, error)
}

type profileService interface {
	Profile(ctx context.Context) (*gmail.Profile, error)
}

func runAuthCheck(ctx context.Context, out io.Writer, people selfService, mail profileService) error {
	self, err := people.Me(ctx)
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("people API check failed: %w", err)}
	}
	name := self.DisplayName
	if name == "" {
		name = "Unknown"
	}
	fmt.Fprintln(out, "People API working")
	fmt.Fprintf(out, "Authenticated as: %s\n", name)

	profile, err := mail.Profile(ctx)
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("gmail API check failed: %w", err)}
	}
	fmt.Fprintln(out, "Gmail API working")
	fmt.Fprintf(out, "Gmail: %s (%d messages)\n", profile.EmailAddress, profile.MessagesTotal)

	return nil
}
