// Package auth loads labeled authentication profiles and applies their
// request mutations before dispatch.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrIncompleteProfile is returned when a profile is missing fields its
// variant requires.
var ErrIncompleteProfile = errors.New("incomplete auth profile")

// Type identifies an authentication variant.
type Type string

const (
	TypeBasic  Type = "basic"
	TypeBearer Type = "bearer"
	TypeAPIKey Type = "apikey"
	TypeOAuth1 Type = "oauth1"
	TypeOAuth2 Type = "oauth2"
)

// Types lists the supported variants, which double as the store's
// subdirectory names.
func Types() []Type {
	return []Type{TypeBasic, TypeBearer, TypeAPIKey, TypeOAuth1, TypeOAuth2}
}

// Profile is a labeled authentication configuration. Exactly one variant
// pointer is set, matching Type.
type Profile struct {
	Label string
	Type  Type

	Basic  *BasicConfig
	Bearer *BearerConfig
	APIKey *APIKeyConfig
	OAuth1 *OAuth1Config
	OAuth2 *OAuth2Config
}

// BasicConfig carries HTTP basic credentials.
type BasicConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// BearerConfig carries a static bearer token.
type BearerConfig struct {
	Token string `json:"token"`
}

// APIKeyConfig places a key into a header, query parameter, or cookie.
// ParamName defaults to X-API-Key; Location defaults to header.
type APIKeyConfig struct {
	Key       string `json:"key"`
	Value     string `json:"value,omitempty"`
	Location  string `json:"location,omitempty"`
	ParamName string `json:"param_name,omitempty"`
}

// Secret returns the key material, accepting either field name.
func (c *APIKeyConfig) Secret() string {
	if c.Value != "" {
		return c.Value
	}
	return c.Key
}

// Name returns the header/parameter/cookie name.
func (c *APIKeyConfig) Name() string {
	if c.ParamName != "" {
		return c.ParamName
	}
	return "X-API-Key"
}

// OAuth1Config carries OAuth 1.0a signing material.
type OAuth1Config struct {
	ConsumerKey     string `json:"consumer_key"`
	ConsumerSecret  string `json:"consumer_secret"`
	Token           string `json:"token,omitempty"`
	TokenSecret     string `json:"token_secret,omitempty"`
	SignatureMethod string `json:"signature_method,omitempty"`
}

// OAuth2Config carries the token-exchange parameters for the supported
// grants: client_credentials, password, and refresh_token.
type OAuth2Config struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	TokenURL     string `json:"token_url"`
	Grant        string `json:"grant,omitempty"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	Scope        string `json:"scope,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	RefreshURL   string `json:"refresh_url,omitempty"`
}

// UnmarshalJSON decodes the flat profile file shape {label, type, fields...}
// into the variant matching the type tag.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var head struct {
		Label string `json:"label"`
		Type  Type   `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	p.Label = head.Label
	p.Type = head.Type

	switch head.Type {
	case TypeBasic:
		p.Basic = &BasicConfig{}
		return json.Unmarshal(data, p.Basic)
	case TypeBearer:
		p.Bearer = &BearerConfig{}
		return json.Unmarshal(data, p.Bearer)
	case TypeAPIKey:
		p.APIKey = &APIKeyConfig{}
		return json.Unmarshal(data, p.APIKey)
	case TypeOAuth1:
		p.OAuth1 = &OAuth1Config{}
		return json.Unmarshal(data, p.OAuth1)
	case TypeOAuth2:
		p.OAuth2 = &OAuth2Config{}
		return json.Unmarshal(data, p.OAuth2)
	default:
		return fmt.Errorf("%w: unknown auth type %q", ErrIncompleteProfile, head.Type)
	}
}

// MarshalJSON writes the flat profile file shape back out.
func (p *Profile) MarshalJSON() ([]byte, error) {
	fields := map[string]interface{}{
		"label": p.Label,
		"type":  p.Type,
	}

	var variant interface{}
	switch p.Type {
	case TypeBasic:
		variant = p.Basic
	case TypeBearer:
		variant = p.Bearer
	case TypeAPIKey:
		variant = p.APIKey
	case TypeOAuth1:
		variant = p.OAuth1
	case TypeOAuth2:
		variant = p.OAuth2
	}
	if variant != nil {
		data, err := json.Marshal(variant)
		if err != nil {
			return nil, err
		}
		var extra map[string]interface{}
		if err := json.Unmarshal(data, &extra); err != nil {
			return nil, err
		}
		for k, v := range extra {
			fields[k] = v
		}
	}
	return json.Marshal(fields)
}

// Validate checks that the variant's required fields are present.
func (p *Profile) Validate() error {
	switch p.Type {
	case TypeBasic:
		if p.Basic == nil || p.Basic.Username == "" {
			return fmt.Errorf("%w: basic auth requires username", ErrIncompleteProfile)
		}
	case TypeBearer:
		if p.Bearer == nil || p.Bearer.Token == "" {
			return fmt.Errorf("%w: bearer auth requires token", ErrIncompleteProfile)
		}
	case TypeAPIKey:
		if p.APIKey == nil || p.APIKey.Secret() == "" {
			return fmt.Errorf("%w: API key auth requires a key value", ErrIncompleteProfile)
		}
		switch p.APIKey.Location {
		case "", "header", "query", "cookie":
		default:
			return fmt.Errorf("%w: unknown API key location %q", ErrIncompleteProfile, p.APIKey.Location)
		}
	case TypeOAuth1:
		if p.OAuth1 == nil || p.OAuth1.ConsumerKey == "" || p.OAuth1.ConsumerSecret == "" {
			return fmt.Errorf("%w: OAuth1 requires consumer key and secret", ErrIncompleteProfile)
		}
		switch p.OAuth1.SignatureMethod {
		case "", SignatureHMACSHA1, SignatureHMACSHA256, SignaturePlaintext:
		default:
			return fmt.Errorf("%w: unknown OAuth1 signature method %q",
				ErrIncompleteProfile, p.OAuth1.SignatureMethod)
		}
	case TypeOAuth2:
		if p.OAuth2 == nil || p.OAuth2.ClientID == "" || p.OAuth2.TokenURL == "" {
			return fmt.Errorf("%w: OAuth2 requires client_id and token_url", ErrIncompleteProfile)
		}
		switch p.OAuth2.Grant {
		case "", GrantClientCredentials:
		case GrantPassword:
			if p.OAuth2.Username == "" {
				return fmt.Errorf("%w: password grant requires username", ErrIncompleteProfile)
			}
		case GrantRefreshToken:
			if p.OAuth2.RefreshToken == "" {
				return fmt.Errorf("%w: refresh_token grant requires refresh_token", ErrIncompleteProfile)
			}
		default:
			return fmt.Errorf("%w: unknown OAuth2 grant %q", ErrIncompleteProfile, p.OAuth2.Grant)
		}
	default:
		return fmt.Errorf("%w: unknown auth type %q", ErrIncompleteProfile, p.Type)
	}
	return nil
}

// ProfileNotFoundError reports a label with no stored profile, carrying the
// labels that do exist so the caller can list them.
type ProfileNotFoundError struct {
	Label     string
	Available []string
}

func (e *ProfileNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("auth profile %q not found (no profiles stored)", e.Label)
	}
	return fmt.Sprintf("auth profile %q not found (available: %s)",
		e.Label, strings.Join(e.Available, ", "))
}

// Store is a directory of profiles laid out as <dir>/<type>/<label>.json.
type Store struct {
	dir string
}

// NewStore opens a profile store rooted at dir. The directory need not
// exist; an absent store simply has no profiles.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Labels returns every stored profile label, sorted.
func (s *Store) Labels() []string {
	var labels []string
	for _, t := range Types() {
		entries, err := os.ReadDir(filepath.Join(s.dir, string(t)))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			labels = append(labels, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	sort.Strings(labels)
	return labels
}

// Load finds a profile by label across all type subdirectories, validates
// it, and returns it. An unknown label yields ProfileNotFoundError listing
// what is available.
func (s *Store) Load(label string) (*Profile, error) {
	for _, t := range Types() {
		path := filepath.Join(s.dir, string(t), label+".json")
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		profile, err := ParseProfile(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if profile.Label == "" {
			profile.Label = label
		}
		return profile, nil
	}
	return nil, &ProfileNotFoundError{Label: label, Available: s.Labels()}
}

// Save writes a profile into its type subdirectory.
func (s *Store) Save(p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	dir := filepath.Join(s.dir, string(p.Type))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, p.Label+".json"), data, 0o600)
}

// ParseProfile decodes and validates a single profile document.
func ParseProfile(content []byte) (*Profile, error) {
	var profile Profile
	if err := json.Unmarshal(content, &profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteProfile, err)
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}
