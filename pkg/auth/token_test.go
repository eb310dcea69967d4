package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayurkart/storefront-backend/pkg/config"
)

func jwtConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "storefront", Audience: "authenticated", ExpirationMinutes: 30}
}

func TestIssueThenVerify(t *testing.T) {
	cfg := jwtConfig()
	who := Identity{UserID: uuid.New(), Role: "customer", Email: " vaidya@example.com "}

	token, err := Issue(cfg, time.Now(), who)
	require.NoError(t, err)

	got, err := NewVerifier(cfg).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, who.UserID, got.UserID)
	assert.Equal(t, "customer", got.Role)
	assert.Equal(t, "vaidya@example.com", got.Email)
}

func TestVerifyRejects(t *testing.T) {
	cfg := jwtConfig()
	valid, err := Issue(cfg, time.Now(), Identity{UserID: uuid.New()})
	require.NoError(t, err)
	expired, err := Issue(cfg, time.Now().Add(-2*time.Hour), Identity{UserID: uuid.New()})
	require.NoError(t, err)

	otherSecret := cfg
	otherSecret.Secret = "other"
	otherAudience := cfg
	otherAudience.Audience = "service_role"
	otherIssuer := cfg
	otherIssuer.Issuer = "elsewhere"

	cases := map[string]struct {
		cfg   config.JWTConfig
		token string
		want  error
	}{
		"tampered":       {cfg, valid + "x", nil},
		"expired":        {cfg, expired, jwt.ErrTokenExpired},
		"wrong secret":   {otherSecret, valid, jwt.ErrTokenSignatureInvalid},
		"wrong audience": {otherAudience, valid, jwt.ErrTokenInvalidAudience},
		"wrong issuer":   {otherIssuer, valid, jwt.ErrTokenInvalidIssuer},
		"no secret":      {config.JWTConfig{}, valid, ErrNoSecret},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewVerifier(tc.cfg).Verify(tc.token)
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestVerifyRejectsNonUUIDSubject(t *testing.T) {
	cfg := jwtConfig()
	now := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "not-a-uuid",
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = NewVerifier(cfg).Verify(signed)
	assert.ErrorContains(t, err, "token subject")
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	cfg := jwtConfig()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = NewVerifier(cfg).Verify(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestIssueRequiresSubject(t *testing.T) {
	_, err := Issue(jwtConfig(), time.Now(), Identity{})
	assert.Error(t, err)
}
