package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeProviderServer serves a token endpoint and a userinfo endpoint.
// The token endpoint only accepts code "good-code".
func fakeProviderServer(t *testing.T, userinfo string, userinfoStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(userinfoStatus)
		fmt.Fprint(w, userinfo)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testProvider(srv *httptest.Server, decode ProfileDecoder) *Provider {
	return NewProvider("google", &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:3000/auth/google/secrets",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, srv.URL+"/userinfo", decode)
}

func TestProvider_Exchange_Google(t *testing.T) {
	srv := fakeProviderServer(t, `{"sub":"1098","name":"Alice Example"}`, http.StatusOK)
	p := testProvider(srv, DecodeGoogleProfile)

	profile, err := p.Exchange(context.Background(), "good-code")

	require.NoError(t, err)
	assert.Equal(t, "1098", profile.ProviderID)
	assert.Equal(t, "Alice Example", profile.DisplayName)
}

func TestProvider_Exchange_Facebook(t *testing.T) {
	srv := fakeProviderServer(t, `{"id":"fb-77","name":"Bob"}`, http.StatusOK)
	p := testProvider(srv, DecodeFacebookProfile)

	profile, err := p.Exchange(context.Background(), "good-code")

	require.NoError(t, err)
	assert.Equal(t, "fb-77", profile.ProviderID)
}

func TestProvider_Exchange_Failures(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		userinfo string
		status   int
	}{
		{"bad code", "bad-code", `{"sub":"1"}`, http.StatusOK},
		{"userinfo error status", "good-code", `{}`, http.StatusInternalServerError},
		{"userinfo not json", "good-code", `<html>`, http.StatusOK},
		{"userinfo without id", "good-code", `{"name":"x"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeProviderServer(t, tt.userinfo, tt.status)
			p := testProvider(srv, DecodeGoogleProfile)

			_, err := p.Exchange(context.Background(), tt.code)
			assert.Error(t, err)
		})
	}
}

func TestProvider_AuthURL(t *testing.T) {
	p := NewGoogleProvider("cid", "csecret", "http://localhost:3000/auth/google/secrets")

	u, err := url.Parse(p.AuthURL("the-state"))
	require.NoError(t, err)

	q := u.Query()
	assert.True(t, strings.HasPrefix(u.String(), "https://accounts.google.com/"))
	assert.Equal(t, "the-state", q.Get("state"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "profile", q.Get("scope"))
	assert.Equal(t, "http://localhost:3000/auth/google/secrets", q.Get("redirect_uri"))
	assert.Equal(t, "google", p.Name())
}

func TestNewFacebookProvider(t *testing.T) {
	p := NewFacebookProvider("app", "secret", "http://x/auth/facebook/secrets")

	assert.Equal(t, "facebook", p.Name())
	assert.Contains(t, p.AuthURL("s"), "facebook.com")
}
