package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"calflow/internal/config"
)

// AuthStatus describes whether a usable token is on disk.
type AuthStatus struct {
	Authenticated bool      `json:"authenticated"`
	Expiry        time.Time `json:"expiry,omitzero"`
	Reason        string    `json:"reason,omitempty"`
}

// Credentials loads, refreshes and persists the OAuth token used by the
// Calendar Gateway.
type Credentials struct {
	cfg    config.GoogleConfig
	logger zerolog.Logger

	mu sync.Mutex
}

func NewCredentials(cfg config.GoogleConfig, logger zerolog.Logger) *Credentials {
	return &Credentials{cfg: cfg, logger: logger}
}

// OAuthConfig reads client credentials from the configuration, falling back
// to the credentials file.
func (c *Credentials) OAuthConfig() (*oauth2.Config, error) {
	if c.cfg.ClientID != "" && c.cfg.ClientSecret != "" {
		return &oauth2.Config{
			ClientID:     c.cfg.ClientID,
			ClientSecret: c.cfg.ClientSecret,
			RedirectURL:  c.cfg.RedirectURL,
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(c.cfg.CredentialsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found, provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET or a credentials file",
				config.ErrNotConfigured, c.cfg.CredentialsFile)
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	oc, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	if c.cfg.RedirectURL != "" {
		oc.RedirectURL = c.cfg.RedirectURL
	}
	return oc, nil
}

// Status reports whether the stored token can be used, either directly or
// after a refresh.
func (c *Credentials) Status() AuthStatus {
	c.mu.Lock()
	tok, err := tokenFromFile(c.cfg.TokenFile)
	c.mu.Unlock()

	switch {
	case err != nil:
		return AuthStatus{Reason: "no stored token"}
	case tok.Valid():
		return AuthStatus{Authenticated: true, Expiry: tok.Expiry}
	case tok.RefreshToken != "":
		return AuthStatus{Authenticated: true, Expiry: tok.Expiry, Reason: "token will be refreshed on next use"}
	default:
		return AuthStatus{Reason: "token expired and cannot be refreshed"}
	}
}

// AuthCodeURL returns the consent page URL for the interactive flow.
func (c *Credentials) AuthCodeURL(state string) (string, error) {
	oc, err := c.OAuthConfig()
	if err != nil {
		return "", err
	}
	return oc.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades an authorization code for a token and stores it.
func (c *Credentials) Exchange(ctx context.Context, code string) error {
	oc, err := c.OAuthConfig()
	if err != nil {
		return err
	}
	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := saveToken(c.cfg.TokenFile, tok); err != nil {
		return err
	}
	c.logger.Info().Str("file", c.cfg.TokenFile).Msg("google token saved")
	return nil
}

// HTTPClient returns an authorized client. Refreshed tokens are written back
// to the token file.
func (c *Credentials) HTTPClient(ctx context.Context) (*http.Client, error) {
	if st := c.Status(); !st.Authenticated {
		return nil, fmt.Errorf("%w: %s", ErrNotAuthenticated, st.Reason)
	}

	oc, err := c.OAuthConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	c.mu.Lock()
	tok, err := tokenFromFile(c.cfg.TokenFile)
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	src := &savingTokenSource{
		base:  oauth2.ReuseTokenSource(tok, oc.TokenSource(context.WithoutCancel(ctx), tok)),
		last:  tok.AccessToken,
		creds: c,
	}
	return oauth2.NewClient(context.WithoutCancel(ctx), src), nil
}

// savingTokenSource persists a token whenever the underlying source hands
// out a new access token.
type savingTokenSource struct {
	base  oauth2.TokenSource
	creds *Credentials

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: token refresh failed: %w", ErrNotAuthenticated, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		s.creds.mu.Lock()
		err := saveToken(s.creds.cfg.TokenFile, tok)
		s.creds.mu.Unlock()
		if err != nil {
			s.creds.logger.Warn().Err(err).Msg("failed to persist refreshed google token")
		} else {
			s.creds.logger.Info().Msg("google token refreshed")
		}
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("unable to write token file: %w", err)
	}
	return nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
