package model

import "testing"

func TestHasCredential(t *testing.T) {
	tests := []struct {
		name string
		user User
		want bool
	}{
		{"no credentials", User{Username: "a@x.com"}, false},
		{"password only", User{PasswordHash: "$2a$10$abc"}, true},
		{"google only", User{GoogleID: "g-1"}, true},
		{"facebook only", User{FacebookID: "f-1"}, true},
		{"all three", User{PasswordHash: "h", GoogleID: "g", FacebookID: "f"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.HasCredential(); got != tt.want {
				t.Errorf("HasCredential() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProviderID_RoundTrip(t *testing.T) {
	var u User
	u.SetProviderID(ProviderGoogle, "g-42")
	u.SetProviderID(ProviderFacebook, "f-42")
	u.SetProviderID("myspace", "ignored")

	if got := u.ProviderID(ProviderGoogle); got != "g-42" {
		t.Errorf("ProviderID(google) = %q, want %q", got, "g-42")
	}
	if got := u.ProviderID(ProviderFacebook); got != "f-42" {
		t.Errorf("ProviderID(facebook) = %q, want %q", got, "f-42")
	}
	if got := u.ProviderID("myspace"); got != "" {
		t.Errorf("ProviderID(myspace) = %q, want empty", got)
	}
}

func TestIsOAuthProvider(t *testing.T) {
	for _, name := range []string{ProviderGoogle, ProviderFacebook} {
		if !IsOAuthProvider(name) {
			t.Errorf("IsOAuthProvider(%q) = false, want true", name)
		}
	}
	for _, name := range []string{ProviderLocal, "", "github"} {
		if IsOAuthProvider(name) {
			t.Errorf("IsOAuthProvider(%q) = true, want false", name)
		}
	}
}
