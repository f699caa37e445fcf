// Package google provides OAuth2 authentication and token management for Google APIs.
//
// An Authenticator reads the OAuth client from a downloaded credentials.json
// file, reuses the token kept in a CredentialStore, and falls back to the
// manual installed-app flow when no usable token is stored. Refreshed tokens
// are written back to the store.
package google
