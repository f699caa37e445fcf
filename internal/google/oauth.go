package google

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/mailsweep/internal/instrumentation"
	"github.com/teemow/mailsweep/internal/logging"
)

// ErrAuth is returned when no valid credential can be obtained.
var ErrAuth = errors.New("authentication error")

// OOBRedirectURL is the redirect URI of the manual copy/paste flow.
const OOBRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

// Authenticator produces a token source for the configured scopes.
type Authenticator struct {
	// CredentialsFile is the OAuth client JSON downloaded from the Cloud Console.
	CredentialsFile string

	Store  CredentialStore
	Scopes []string

	// Prompt supplies the authorization code in the manual flow.
	Prompt io.Reader
	// Out receives the authorization URL and instructions.
	Out io.Writer

	// RedirectURL overrides the redirect URI. Defaults to OOBRedirectURL.
	RedirectURL string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Config reads the OAuth client configuration from CredentialsFile.
func (a *Authenticator) Config() (*oauth2.Config, error) {
	data, err := os.ReadFile(a.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read credentials file %s: %v", ErrAuth, a.CredentialsFile, err)
	}

	conf, err := google.ConfigFromJSON(data, a.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid credentials file %s: %v", ErrAuth, a.CredentialsFile, err)
	}

	conf.RedirectURL = OOBRedirectURL
	if a.RedirectURL != "" {
		conf.RedirectURL = a.RedirectURL
	}
	return conf, nil
}

// Credential returns a token source backed by the stored token, running the
// manual authorization flow first when no usable token is stored.
func (a *Authenticator) Credential(ctx context.Context) (oauth2.TokenSource, error) {
	logger := logging.WithOperation(a.logger(), "google.auth")

	conf, err := a.Config()
	if err != nil {
		return nil, err
	}

	token, err := a.Store.Load()
	switch {
	case errors.Is(err, ErrTokenNotFound):
		logger.Debug("no stored token")
	case err != nil:
		logger.Warn("ignoring unreadable token", logging.Err(err))
	case token.Valid() || token.RefreshToken != "":
		ts := a.persisting(ctx, conf, token)
		_, refreshErr := ts.Token()
		if refreshErr == nil {
			return ts, nil
		}
		logger.Warn("stored token could not be refreshed", logging.Err(refreshErr))
	}

	token, err = a.authorize(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err := a.Store.Save(token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	logger.Info("authorization complete", logging.Status(logging.StatusSuccess))

	return a.persisting(ctx, conf, token), nil
}

func (a *Authenticator) authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	if a.Prompt == nil {
		return nil, fmt.Errorf("%w: no stored token and no prompt to read an authorization code from", ErrAuth)
	}

	out := a.Out
	if out == nil {
		out = io.Discard
	}

	authURL := conf.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Fprintf(out, "Visit this URL to authorize mailsweep:\n\n%s\n\nEnter authorization code: ", authURL)

	code, err := bufio.NewReader(a.Prompt).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to read authorization code: %v", ErrAuth, err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", ErrAuth)
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange authorization code: %v", ErrAuth, err)
	}
	return token, nil
}

func (a *Authenticator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Authenticator) persisting(ctx context.Context, conf *oauth2.Config, token *oauth2.Token) oauth2.TokenSource {
	return &persistingTokenSource{
		base:    conf.TokenSource(ctx, token),
		store:   a.Store,
		last:    token.AccessToken,
		ctx:     ctx,
		logger:  a.logger(),
		metrics: a.Metrics,
	}
}

// persistingTokenSource saves every refreshed token to the store.
type persistingTokenSource struct {
	base    oauth2.TokenSource
	store   CredentialStore
	ctx     context.Context
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.base.Token()
	if err != nil {
		s.metrics.RecordOAuthTokenRefresh(s.ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if token.AccessToken == s.last {
		return token, nil
	}

	s.last = token.AccessToken
	s.metrics.RecordOAuthTokenRefresh(s.ctx, instrumentation.OAuthResultSuccess)
	if err := s.store.Save(token); err != nil {
		s.logger.Warn("failed to persist refreshed token", logging.Err(err))
	} else {
		s.logger.Debug("token refreshed", slog.String("access_token", logging.SanitizeToken(token.AccessToken)))
	}
	return token, nil
}

// HTTPClient returns an HTTP client authorized by ts.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func HTTPClient(ctx context.Context, ts oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, ts)

	transport := client.Transport.(*oauth2.Transport)
	transport.Base = otelhttp.NewTransport(&http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
	})

	return client
}

// SetupInstructions explains how to obtain a credentials file.
func SetupInstructions(credentialsFile string) string {
	return fmt.Sprintf(`%s not found.

To set up Google Cloud credentials:
  1. Go to https://console.cloud.google.com/
  2. Create a new project or select an existing one
  3. Enable the People API and the Gmail API (APIs & Services > Enable APIs)
  4. Create an OAuth client ID (APIs & Services > Credentials), application type "Desktop app"
  5. Download the JSON file and save it as %s`, credentialsFile, credentialsFile)
}
