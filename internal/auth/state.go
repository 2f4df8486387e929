package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// StateTTL bounds how long a user may linger on the provider's consent page.
const StateTTL = 10 * time.Minute

const stateIssuer = "secrets"

// ErrInvalidState covers every reason a callback's state is rejected:
// bad signature, expired, wrong provider, or already used.
var ErrInvalidState = errors.New("auth: invalid oauth state")

// StateService issues and checks the OAuth `state` parameter.
//
// WHY A SIGNED STATE?
// The state is our CSRF defence for the callback: without it, an attacker
// could make a victim's browser complete a login with the ATTACKER's code,
// silently signing the victim into the attacker's account.
//
// The state is an HS256 JWT:
//
//	{"iss":"secrets","aud":["google"],"jti":"<xid>","iat":...,"exp":...}
//
// It is set both in a short-lived cookie and in the redirect URL. On the
// callback we check the two match, verify the signature, the audience
// (provider) and the expiry, and then burn the jti in the NonceGuard so the
// same state can never be replayed.
type StateService struct {
	secret []byte
	guard  *NonceGuard
	now    func() time.Time
}

// NewStateService creates a StateService. guard may be nil, in which case
// states are not single-use (only used in tests).
func NewStateService(secret string, guard *NonceGuard) (*StateService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: state secret must be at least 16 characters")
	}
	return &StateService{secret: []byte(secret), guard: guard, now: time.Now}, nil
}

// Issue returns a signed state token bound to provider.
func (s *StateService) Issue(provider string) (string, error) {
	now := s.now()
	c := jwt.RegisteredClaims{
		ID:        xid.New().String(),
		Issuer:    stateIssuer,
		Audience:  jwt.ClaimStrings{provider},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(StateTTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing state: %w", err)
	}
	return signed, nil
}

// Validate checks a state token for provider and consumes it.
//
// ALGORITHM CONFUSION:
// jwt.WithValidMethods rejects tokens that claim "none" or an asymmetric
// algorithm, so only our own HS256 signatures pass.
func (s *StateService) Validate(state, provider string) error {
	token, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithAudience(provider),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	c, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || c.ID == "" {
		return fmt.Errorf("%w: missing nonce", ErrInvalidState)
	}

	if s.guard != nil {
		if err := s.guard.Consume(c.ID); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
	}
	return nil
}
