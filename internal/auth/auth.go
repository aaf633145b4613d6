// Package auth verifies upstream identity-provider tokens and issues the
// session tokens carried by API requests.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is what an upstream provider asserts about a login: a verified
// email plus a display name. The handshake itself happens elsewhere; this
// package only consumes its result.
type Identity struct {
	Email string
	Name  string
}

// TokenVerifier validates a provider token and extracts the identity.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (Identity, error)
}

// OIDCVerifier validates provider ID tokens using OIDC discovery and JWKS.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier creates a verifier from an OIDC issuer URL. When no
// audience is configured the aud claim is not checked, otherwise every
// token would fail against the empty string.
func NewOIDCVerifier(ctx context.Context, issuerURL, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, err
	}
	verifier := provider.Verifier(oidcConfigFor(audience))
	return &OIDCVerifier{verifier: verifier}, nil
}

func oidcConfigFor(audience string) *oidc.Config {
	if audience == "" {
		return &oidc.Config{SkipClientIDCheck: true}
	}
	return &oidc.Config{ClientID: audience}
}

// Verify checks the ID token signature and pulls the email and name claims.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Identity{}, err
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, err
	}
	if strings.TrimSpace(claims.Email) == "" {
		return Identity{}, errors.New("token has no email claim")
	}

	return Identity{Email: claims.Email, Name: claims.Name}, nil
}

// SessionClaims are carried in the HS256 session tokens this service issues.
// They double as the cached identity the resolver falls back on when the
// user store is unavailable.
type SessionClaims struct {
	UserID int    `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Sessions issues and parses session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

// Issue signs a session token for the given user.
func (s *Sessions) Issue(userID int, email, name, role string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: userID,
		Email:  email,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates a session token and returns its claims.
func (s *Sessions) Parse(tokenString string) (SessionClaims, error) {
	claims := SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return SessionClaims{}, err
	}
	if !token.Valid {
		return SessionClaims{}, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Email) == "" {
		return SessionClaims{}, errors.New("missing email claim")
	}
	return claims, nil
}
