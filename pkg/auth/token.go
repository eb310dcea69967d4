// Package auth verifies the bearer tokens issued by the storefront auth
// service. Tokens are HS256 JWTs whose subject is the user id.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ayurkart/storefront-backend/pkg/config"
)

var (
	ErrNoSecret       = errors.New("jwt secret is not configured")
	errSubjectMissing = errors.New("token subject is missing")
)

// Identity is the caller a verified token speaks for.
type Identity struct {
	UserID uuid.UUID
	Role   string
	Email  string
}

type claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks signature, issuer, audience and expiry.
type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{key: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}
}

func (v *Verifier) Verify(token string) (Identity, error) {
	if len(v.key) == 0 {
		return Identity{}, ErrNoSecret
	}
	var c claims
	if _, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.key, nil
	}); err != nil {
		return Identity{}, err
	}
	if c.Subject == "" {
		return Identity{}, errSubjectMissing
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("token subject: %w", err)
	}
	return Identity{UserID: id, Role: c.Role, Email: c.Email}, nil
}

// Issue signs a token for who, valid for the configured lifetime from now.
// Production tokens come from the auth service; this serves local tooling
// and tests.
func Issue(cfg config.JWTConfig, now time.Time, who Identity) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", ErrNoSecret
	case cfg.ExpirationMinutes <= 0:
		return "", errors.New("jwt expiration must be positive")
	case who.UserID == uuid.Nil:
		return "", errSubjectMissing
	}
	c := claims{
		Email: strings.TrimSpace(who.Email),
		Role:  who.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   who.UserID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
		},
	}
	if cfg.Audience != "" {
		c.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(cfg.Secret))
}
