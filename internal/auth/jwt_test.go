// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/roadwatch/internal/config"
	"github.com/carterperez-dev/roadwatch/internal/core"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            testSecret,
		AccessTokenExpire: 24 * time.Hour,
		Issuer:            "roadwatch",
		Audience:          "roadwatch-api",
	}
}

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(testJWTConfig())
	require.NoError(t, err)
	return issuer
}

func TestIssueAndValidate(t *testing.T) {
	issuer := newTestIssuer(t)

	token, claims, err := issuer.Issue("Agent@Example.com", "manager")
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt, 5*time.Second)

	got, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", got.Subject)
	assert.Equal(t, "manager", got.Role)
	assert.Equal(t, claims.TokenID, got.TokenID)
}

func TestNewTokenIssuerRejectsShortSecret(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Secret = "short"

	_, err := NewTokenIssuer(cfg)
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestValidateExpired(t *testing.T) {
	issuer := newTestIssuer(t)
	issuer.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	token, _, err := issuer.Issue("a@example.com", "user")
	require.NoError(t, err)

	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestValidateFailsClosed(t *testing.T) {
	issuer := newTestIssuer(t)

	other, err := NewTokenIssuer(config.JWTConfig{
		Secret:            "ffffffffffffffffffffffffffffffff",
		AccessTokenExpire: time.Hour,
		Issuer:            "roadwatch",
		Audience:          "roadwatch-api",
	})
	require.NoError(t, err)
	foreign, _, err := other.Issue("a@example.com", "user")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"wrong key", foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Validate(tt.token)
			assert.ErrorIs(t, err, core.ErrTokenInvalid)
		})
	}
}

func TestValidateRejectsMissingOrUnknownRole(t *testing.T) {
	issuer := newTestIssuer(t)

	sign := func(role any) string {
		now := time.Now()
		b := jwt.NewBuilder().
			JwtID("jti").
			Issuer("roadwatch").
			Audience([]string{"roadwatch-api"}).
			Subject("a@example.com").
			IssuedAt(now).
			Expiration(now.Add(time.Hour)).
			Claim("type", tokenTypeAccess)
		if role != nil {
			b = b.Claim("role", role)
		}
		tok, err := b.Build()
		require.NoError(t, err)
		signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), issuer.key))
		require.NoError(t, err)
		return string(signed)
	}

	for name, role := range map[string]any{
		"missing": nil,
		"admin":   "admin",
		"numeric": 1,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Validate(sign(role))
			assert.ErrorIs(t, err, core.ErrTokenInvalid)
		})
	}
}
