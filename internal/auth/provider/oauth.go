// Package provider talks to the identity provider's OAuth token endpoint.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/pysugar/launcher-accounts/internal/auth/token"
)

// Microsoft identity platform defaults used by the launcher sign-in flow.
const (
	DefaultTokenURL = "https://login.microsoftonline.com/consumers/oauth2/v2.0/token"
	DefaultClientID = "00000000402b5328"
)

// DefaultScopes are the scopes the launcher signs in with.
var DefaultScopes = []string{"XboxLive.signin", "offline_access"}

// Config describes the token endpoint.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// OAuthRefresher implements token.Refresher with the refresh_token grant.
type OAuthRefresher struct {
	config     *oauth2.Config
	httpClient *http.Client
}

var _ token.Refresher = (*OAuthRefresher)(nil)

// NewOAuthRefresher builds a refresher for cfg. Empty fields fall back to the defaults.
func NewOAuthRefresher(cfg Config, httpClient *http.Client) *OAuthRefresher {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Scopes == nil {
		cfg.Scopes = DefaultScopes
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuthRefresher{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

// Refresh exchanges refreshToken for a new access token.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*token.Grant, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", token.ErrInvalidRefreshToken)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	ts := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	newToken, err := ts.Token()
	if err != nil {
		return nil, classifyError(err)
	}
	if newToken.AccessToken == "" || newToken.Expiry.IsZero() {
		return nil, fmt.Errorf("%w: response has no access_token or expires_in", token.ErrMalformedResponse)
	}

	grant := &token.Grant{
		AccessToken: newToken.AccessToken,
		ExpiresAt:   newToken.Expiry,
	}
	// oauth2 carries the old refresh token forward when the provider does not rotate it.
	if newToken.RefreshToken != refreshToken {
		grant.RefreshToken = newToken.RefreshToken
	}
	return grant, nil
}

// permanentErrorCodes are OAuth error codes that no retry will fix.
var permanentErrorCodes = map[string]bool{
	"invalid_grant":       true,
	"invalid_client":      true,
	"unauthorized_client": true,
}

// classifyError maps an oauth2 failure onto the token error taxonomy.
func classifyError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if permanentErrorCodes[retrieveErr.ErrorCode] || isRevoked(retrieveErr.ErrorDescription) {
			return fmt.Errorf("%w: %s", token.ErrInvalidRefreshToken, describe(retrieveErr))
		}
		return fmt.Errorf("%w: %s", token.ErrNetworkFailure, describe(retrieveErr))
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", token.ErrNetworkFailure, err)
	}

	// Remaining oauth2 errors come from decoding a 2xx body.
	msg := err.Error()
	if strings.Contains(msg, "cannot parse") || strings.Contains(msg, "missing access_token") {
		return fmt.Errorf("%w: %w", token.ErrMalformedResponse, err)
	}
	return fmt.Errorf("%w: %w", token.ErrNetworkFailure, err)
}

func isRevoked(description string) bool {
	d := strings.ToLower(description)
	return strings.Contains(d, "revoked") || strings.Contains(d, "token has been expired")
}

func describe(e *oauth2.RetrieveError) string {
	status := 0
	if e.Response != nil {
		status = e.Response.StatusCode
	}
	if e.ErrorCode == "" {
		return fmt.Sprintf("token endpoint returned %d", status)
	}
	if e.ErrorDescription == "" {
		return fmt.Sprintf("token endpoint returned %d: %s", status, e.ErrorCode)
	}
	return fmt.Sprintf("token endpoint returned %d: %s (%s)", status, e.ErrorCode, e.ErrorDescription)
}
