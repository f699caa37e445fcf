package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// tokenServer is a fake OAuth token endpoint.
type tokenServer struct {
	*httptest.Server
	exchanges atomic.Int32
	refreshes atomic.Int32
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var access string
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			if r.Form.Get("code") != "good-code" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			ts.exchanges.Add(1)
			access = "exchanged-token"
		case "refresh_token":
			if r.Form.Get("refresh_token") != "good-refresh" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			ts.refreshes.Add(1)
			access = "refreshed-token"
		default:
			http.Error(w, "unsupported grant", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"token_type":    "Bearer",
			"refresh_token": "good-refresh",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func writeCredentials(t *testing.T, tokenURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	content := fmt.Sprintf(`{"installed":{"client_id":"client-id","client_secret":"client-secret",`+
		`"auth_uri":"https://accounts.example.com/auth","token_uri":%q,"redirect_uris":["http://localhost"]}}`, tokenURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestAuthenticator_MissingCredentials(t *testing.T) {
	a := &Authenticator{
		CredentialsFile: filepath.Join(t.TempDir(), "credentials.json"),
		Store:           NewFileStore(filepath.Join(t.TempDir(), "token.json")),
		Scopes:          ContactsScopes,
	}

	_, err := a.Credential(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestAuthenticator_InvalidCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))

	a := &Authenticator{CredentialsFile: path, Store: NewFileStore(filepath.Join(t.TempDir(), "token.json"))}
	_, err := a.Credential(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestAuthenticator_Config(t *testing.T) {
	a := &Authenticator{CredentialsFile: writeCredentials(t, "https://oauth.example.com/token"), Scopes: SendScopes}

	conf, err := a.Config()
	require.NoError(t, err)
	assert.Equal(t, "client-id", conf.ClientID)
	assert.Equal(t, OOBRedirectURL, conf.RedirectURL)
	assert.Equal(t, SendScopes, conf.Scopes)
}

func TestAuthenticator_ManualFlow(t *testing.T) {
	server := newTokenServer(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	var out strings.Builder

	a := &Authenticator{
		CredentialsFile: writeCredentials(t, server.URL),
		Store:           store,
		Scopes:          ContactsScopes,
		Prompt:          strings.NewReader("  good-code \n"),
		Out:             &out,
	}

	ts, err := a.Credential(context.Background())
	require.NoError(t, err)

	token, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "exchanged-token", token.AccessToken)
	assert.Equal(t, int32(1), server.exchanges.Load())
	assert.Contains(t, out.String(), "https://accounts.example.com/auth")
	assert.Contains(t, out.String(), "client_id=client-id")

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "exchanged-token", saved.AccessToken)
	assert.Equal(t, "good-refresh", saved.RefreshToken)
}

func TestAuthenticator_ManualFlowFailures(t *testing.T) {
	server := newTokenServer(t)

	tests := []struct {
		name   string
		prompt *strings.Reader
	}{
		{"empty code", strings.NewReader("\n")},
		{"rejected code", strings.NewReader("bad-code\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
			a := &Authenticator{
				CredentialsFile: writeCredentials(t, server.URL),
				Store:           store,
				Prompt:          tt.prompt,
			}

			_, err := a.Credential(context.Background())
			assert.ErrorIs(t, err, ErrAuth)

			_, err = store.Load()
			assert.ErrorIs(t, err, ErrTokenNotFound)
		})
	}
}

func TestAuthenticator_NoPrompt(t *testing.T) {
	a := &Authenticator{
		CredentialsFile: writeCredentials(t, "https://oauth.example.com/token"),
		Store:           NewFileStore(filepath.Join(t.TempDir(), "token.json")),
	}

	_, err := a.Credential(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestAuthenticator_ValidStoredToken(t *testing.T) {
	server := newTokenServer(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, store.Save(&oauth2.Token{
		AccessToken:  "stored-token",
		TokenType:    "Bearer",
		RefreshToken: "good-refresh",
		Expiry:       time.Now().Add(time.Hour),
	}))

	a := &Authenticator{CredentialsFile: writeCredentials(t, server.URL), Store: store}

	ts, err := a.Credential(context.Background())
	require.NoError(t, err)

	token, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "stored-token", token.AccessToken)
	assert.Equal(t, int32(0), server.exchanges.Load())
	assert.Equal(t, int32(0), server.refreshes.Load())
}

func TestAuthenticator_RefreshesExpiredToken(t *testing.T) {
	server := newTokenServer(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, store.Save(&oauth2.Token{
		AccessToken:  "expired-token",
		TokenType:    "Bearer",
		RefreshToken: "good-refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	a := &Authenticator{CredentialsFile: writeCredentials(t, server.URL), Store: store}

	ts, err := a.Credential(context.Background())
	require.NoError(t, err)

	token, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", token.AccessToken)
	assert.Equal(t, int32(1), server.refreshes.Load())

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", saved.AccessToken)
}

func TestAuthenticator_RevokedRefreshFallsBackToPrompt(t *testing.T) {
	server := newTokenServer(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, store.Save(&oauth2.Token{
		AccessToken:  "expired-token",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	a := &Authenticator{
		CredentialsFile: writeCredentials(t, server.URL),
		Store:           store,
		Prompt:          strings.NewReader("good-code\n"),
	}

	ts, err := a.Credential(context.Background())
	require.NoError(t, err)

	token, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "exchanged-token", token.AccessToken)
}

func TestHTTPClient(t *testing.T) {
	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	client := HTTPClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc", TokenType: "Bearer"}))

	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "Bearer abc", gotAuth)
}

func TestSetupInstructions(t *testing.T) {
	msg := SetupInstructions("creds.json")
	assert.Contains(t, msg, "creds.json")
	assert.Contains(t, msg, "Desktop app")
}
