package auth

import (
	"encoding/base64"
	"fmt"
	"net/http"
)

// Apply mutates a fully-assembled request according to the profile's
// variant. OAuth2 profiles are applied through an Authenticator, which owns
// the token cache; calling Apply directly on one is a programming error.
func (p *Profile) Apply(req *http.Request, jar http.CookieJar) error {
	switch p.Type {
	case TypeBasic:
		credentials := base64.StdEncoding.EncodeToString(
			[]byte(p.Basic.Username + ":" + p.Basic.Password))
		req.Header.Set("Authorization", "Basic "+credentials)

	case TypeBearer:
		req.Header.Set("Authorization", "Bearer "+p.Bearer.Token)

	case TypeAPIKey:
		cfg := p.APIKey
		switch cfg.Location {
		case "query":
			q := req.URL.Query()
			q.Set(cfg.Name(), cfg.Secret())
			req.URL.RawQuery = q.Encode()
		case "cookie":
			cookie := &http.Cookie{Name: cfg.Name(), Value: cfg.Secret()}
			if jar != nil {
				jar.SetCookies(req.URL, []*http.Cookie{cookie})
			} else {
				req.AddCookie(cookie)
			}
		default:
			req.Header.Set(cfg.Name(), cfg.Secret())
		}

	case TypeOAuth1:
		return signOAuth1(req, p.OAuth1)

	case TypeOAuth2:
		return fmt.Errorf("%w: OAuth2 profiles must be applied through an Authenticator",
			ErrIncompleteProfile)

	default:
		return fmt.Errorf("%w: unknown auth type %q", ErrIncompleteProfile, p.Type)
	}
	return nil
}
