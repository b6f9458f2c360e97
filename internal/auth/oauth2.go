package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// OAuth2 grant names.
const (
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
)

// TokenError wraps a failed OAuth2 token exchange. It is fatal only for the
// requests that depend on the profile, never for the run.
type TokenError struct {
	Label string
	Err   error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("OAuth2 token exchange for profile %q failed: %v", e.Label, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// Authenticator applies a profile to outgoing requests and, for OAuth2
// profiles, owns the run-scoped token cache. The token round trip happens
// before the first dependent request; afterwards the cached token is reused
// until Invalidate drops it.
type Authenticator struct {
	profile *Profile
	client  *http.Client
	token   string
}

// NewAuthenticator wraps a validated profile. The client carries the proxied
// transport so token exchanges travel the same path as the run's traffic.
func NewAuthenticator(profile *Profile, client *http.Client) *Authenticator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Authenticator{profile: profile, client: client}
}

// Profile returns the wrapped profile.
func (a *Authenticator) Profile() *Profile { return a.profile }

// Apply mutates the request for the profile's variant, acquiring an OAuth2
// token first when needed.
func (a *Authenticator) Apply(ctx context.Context, req *http.Request, jar http.CookieJar) error {
	if a.profile == nil {
		return nil
	}
	if a.profile.Type != TypeOAuth2 {
		return a.profile.Apply(req, jar)
	}

	token, err := a.accessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Invalidate drops the cached token. The runner calls this once after a 401
// so the next Apply performs exactly one re-acquisition.
func (a *Authenticator) Invalidate() {
	a.token = ""
}

func (a *Authenticator) accessToken(ctx context.Context) (string, error) {
	if a.token != "" {
		return a.token, nil
	}

	cfg := a.profile.OAuth2
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)

	var token *oauth2.Token
	var err error

	grant := cfg.Grant
	if grant == "" {
		grant = GrantClientCredentials
	}

	switch grant {
	case GrantClientCredentials:
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       splitScope(cfg.Scope),
		}
		token, err = cc.Token(ctx)

	case GrantPassword:
		oc := oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
			Scopes:       splitScope(cfg.Scope),
		}
		token, err = oc.PasswordCredentialsToken(ctx, cfg.Username, cfg.Password)

	case GrantRefreshToken:
		tokenURL := cfg.RefreshURL
		if tokenURL == "" {
			tokenURL = cfg.TokenURL
		}
		oc := oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		}
		token, err = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}).Token()

	default:
		return "", fmt.Errorf("%w: unknown OAuth2 grant %q", ErrIncompleteProfile, grant)
	}

	if err != nil {
		return "", &TokenError{Label: a.profile.Label, Err: err}
	}
	if token.AccessToken == "" {
		return "", &TokenError{Label: a.profile.Label, Err: fmt.Errorf("empty access token")}
	}

	a.token = token.AccessToken
	return a.token, nil
}

func splitScope(scope string) []string {
	if scope == "" {
		return nil
	}
	return strings.Fields(scope)
}
