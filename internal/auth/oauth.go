package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/sakif/secrets/internal/model"
)

// Profile is the provider-neutral identity returned by a successful exchange.
type Profile struct {
	ProviderID  string // the provider's stable account ID
	DisplayName string // human-readable name; not unique
}

// ProfileDecoder turns a provider's userinfo response body into a Profile.
type ProfileDecoder func(body io.Reader) (*Profile, error)

// Provider wraps golang.org/x/oauth2 for one Authorization Code provider.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
// 1. We redirect the user to the provider's consent page (AuthURL) with our
//    client ID, the requested scopes and a signed `state` value.
// 2. The user approves (or denies) on the provider's site.
// 3. The provider redirects back to our callback URL with a short-lived `code`.
// 4. We exchange the code for an access token, server-to-server, using our
//    client secret. The token never reaches the browser.
// 5. We call the provider's userinfo endpoint with the token.
//
// Google and Facebook differ only in endpoints, scopes and the shape of the
// userinfo JSON, so one struct with a pluggable decoder serves both.
type Provider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
	decode      ProfileDecoder
}

// NewProvider builds a Provider from explicit parts. The Google/Facebook
// constructors below are thin wrappers; tests use this directly to point the
// endpoints at an httptest.Server.
func NewProvider(name string, config *oauth2.Config, userInfoURL string, decode ProfileDecoder) *Provider {
	return &Provider{name: name, config: config, userInfoURL: userInfoURL, decode: decode}
}

// GoogleUserInfoURL is the OpenID Connect userinfo endpoint (v3).
const GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// FacebookUserInfoURL asks the Graph API for just the fields we store.
const FacebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name"

// NewGoogleProvider creates the Google provider.
//
// Credentials come from https://console.cloud.google.com/apis/credentials.
// callbackURL must match an "Authorized redirect URI" exactly, e.g.
// "http://localhost:3000/auth/google/secrets".
//
// Scope "profile" is enough for the account ID and display name.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *Provider {
	return NewProvider(model.ProviderGoogle, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"profile"},
		Endpoint:     endpoints.Google,
	}, GoogleUserInfoURL, DecodeGoogleProfile)
}

// NewFacebookProvider creates the Facebook provider.
// The default public_profile permission covers id and name, so no scope is requested.
func NewFacebookProvider(appID, appSecret, callbackURL string) *Provider {
	return NewProvider(model.ProviderFacebook, &oauth2.Config{
		ClientID:     appID,
		ClientSecret: appSecret,
		RedirectURL:  callbackURL,
		Endpoint:     endpoints.Facebook,
	}, FacebookUserInfoURL, DecodeFacebookProfile)
}

// Name returns the provider name ("google", "facebook").
func (p *Provider) Name() string {
	return p.name
}

// AuthURL returns the consent-page URL carrying the given state.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the user's profile.
func (p *Provider) Exchange(ctx context.Context, code string) (*Profile, error) {
	// Step 1: code → access token (POST to the provider's token endpoint)
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: %s: exchanging code: %w", p.name, err)
	}

	// Step 2: call userinfo. config.Client adds "Authorization: Bearer <token>".
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: %s: building userinfo request: %w", p.name, err)
	}
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: %s: calling userinfo: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: %s: userinfo returned status %d", p.name, resp.StatusCode)
	}

	// Step 3: provider-specific JSON → Profile
	profile, err := p.decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("auth: %s: %w", p.name, err)
	}
	if profile.ProviderID == "" {
		return nil, fmt.Errorf("auth: %s: userinfo has no account ID", p.name)
	}
	return profile, nil
}

// DecodeGoogleProfile reads {"sub": "...", "name": "..."}.
func DecodeGoogleProfile(body io.Reader) (*Profile, error) {
	var v struct {
		Sub  string `json:"sub"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}
	return &Profile{ProviderID: v.Sub, DisplayName: v.Name}, nil
}

// DecodeFacebookProfile reads {"id": "...", "name": "..."}.
func DecodeFacebookProfile(body io.Reader) (*Profile, error) {
	var v struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}
	return &Profile{ProviderID: v.ID, DisplayName: v.Name}, nil
}
