package google

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"calflow/internal/config"
)

func writeToken(t *testing.T, path string, tok *oauth2.Token) {
	t.Helper()
	b, err := json.Marshal(tok)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
}

func TestCredentials_Status(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		token *oauth2.Token
		want  bool
	}{
		{name: "no token", want: false},
		{name: "valid token", token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}, want: true},
		{name: "expired with refresh token", token: &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)}, want: true},
		{name: "expired without refresh token", token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(-time.Hour)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "token.json")
			if tt.token != nil {
				writeToken(t, path, tt.token)
			}

			st := NewCredentials(config.GoogleConfig{TokenFile: path}, zerolog.Nop()).Status()
			assert.Equal(t, tt.want, st.Authenticated)
			if !tt.want {
				assert.NotEmpty(t, st.Reason)
			}
		})
	}
}

func TestCredentials_OAuthConfig(t *testing.T) {
	t.Parallel()

	t.Run("from client id and secret", func(t *testing.T) {
		t.Parallel()

		c := NewCredentials(config.GoogleConfig{ClientID: "id", ClientSecret: "secret", RedirectURL: "http://localhost:7000/oauth/callback"}, zerolog.Nop())
		url, err := c.AuthCodeURL("state")
		require.NoError(t, err)
		assert.Contains(t, url, "client_id=id")
		assert.Contains(t, url, "access_type=offline")
		assert.Contains(t, url, "auth%2Fcalendar")
	})

	t.Run("from credentials file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "credentials.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"installed":{"client_id":"file-id","client_secret":"s","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`), 0o600))

		oc, err := NewCredentials(config.GoogleConfig{CredentialsFile: path}, zerolog.Nop()).OAuthConfig()
		require.NoError(t, err)
		assert.Equal(t, "file-id", oc.ClientID)
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Parallel()

		_, err := NewCredentials(config.GoogleConfig{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}, zerolog.Nop()).OAuthConfig()
		assert.ErrorIs(t, err, config.ErrNotConfigured)
	})
}

func TestSavingTokenSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "token.json")
	c := NewCredentials(config.GoogleConfig{TokenFile: path}, zerolog.Nop())

	fresh := &oauth2.Token{AccessToken: "new", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
	src := &savingTokenSource{base: oauth2.StaticTokenSource(fresh), creds: c, last: "old"}

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)

	saved, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", saved.AccessToken)
	assert.Equal(t, "r", saved.RefreshToken)
}
