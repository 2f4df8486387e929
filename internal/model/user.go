// Package model defines the data structures used throughout the application.
package model

import "time"

// Provider names. They double as strategy names in the strategy registry
// and as the {provider} segment of the OAuth routes.
const (
	ProviderLocal    = "local"
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// User represents one account and its single secret.
//
// A user can hold several credentials at once: a local password, a Google
// account ID and a Facebook account ID. Empty strings mean "absent"; the
// stores persist them as NULL (SQL) or omit the field (Mongo) so the unique
// indexes only apply to values that are actually set.
//
// WHY Username AND DisplayName?
// Username is the login identifier typed into the local login form and is
// UNIQUE across the store. OAuth accounts don't have one; they are
// identified by the provider's display name (DisplayName), which is not
// unique ("John Smith" can sign in with Google twice). Keeping the two apart
// lets us enforce uniqueness where it matters without rejecting OAuth users.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"` // never serialised
	GoogleID     string    `json:"googleId,omitempty"`
	FacebookID   string    `json:"facebookId,omitempty"`
	Secret       string    `json:"secret,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasCredential reports whether the record can authenticate through at least
// one strategy. A record with no credential fields set is inert.
func (u *User) HasCredential() bool {
	return u.PasswordHash != "" || u.GoogleID != "" || u.FacebookID != ""
}

// HasSecret reports whether the user has submitted a secret.
func (u *User) HasSecret() bool {
	return u.Secret != ""
}

// ProviderID returns the provider-issued account ID for the given provider,
// or "" if the user has not linked that provider.
func (u *User) ProviderID(provider string) string {
	switch provider {
	case ProviderGoogle:
		return u.GoogleID
	case ProviderFacebook:
		return u.FacebookID
	default:
		return ""
	}
}

// SetProviderID stores a provider-issued account ID on the user.
// Unknown providers are ignored.
func (u *User) SetProviderID(provider, id string) {
	switch provider {
	case ProviderGoogle:
		u.GoogleID = id
	case ProviderFacebook:
		u.FacebookID = id
	}
}

// IsOAuthProvider reports whether name is one of the supported OAuth providers.
func IsOAuthProvider(name string) bool {
	return name == ProviderGoogle || name == ProviderFacebook
}
