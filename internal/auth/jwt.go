// AngelaMos | 2026
// jwt.go

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/roadwatch/internal/config"
	"github.com/carterperez-dev/roadwatch/internal/core"
	"github.com/carterperez-dev/roadwatch/internal/user"
)

const (
	tokenTypeAccess = "access"
	clockSkew       = 30 * time.Second
)

var ErrWeakSecret = errors.New("jwt secret too short")

// TokenIssuer signs and validates HS256 session tokens. The key comes from
// configuration so every environment carries its own secret.
type TokenIssuer struct {
	key    jwk.Key
	config config.JWTConfig
	now    func() time.Time
}

type Claims struct {
	Subject   string
	Role      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func NewTokenIssuer(cfg config.JWTConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("new token issuer: %w", ErrWeakSecret)
	}

	key, err := jwk.Import([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("import hmac key: %w", err)
	}

	if setErr := key.Set(jwk.AlgorithmKey, jwa.HS256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	return &TokenIssuer{
		key:    key,
		config: cfg,
		now:    time.Now,
	}, nil
}

// Issue signs a token for subjectEmail carrying role.
func (i *TokenIssuer) Issue(subjectEmail, role string) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		Subject:   user.NormalizeEmail(subjectEmail),
		Role:      strings.ToLower(role),
		TokenID:   uuid.New().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.config.AccessTokenExpire),
	}

	token, err := jwt.NewBuilder().
		JwtID(claims.TokenID).
		Issuer(i.config.Issuer).
		Audience([]string{i.config.Audience}).
		Subject(claims.Subject).
		IssuedAt(now).
		Expiration(claims.ExpiresAt).
		NotBefore(now).
		Claim("role", claims.Role).
		Claim("type", tokenTypeAccess).
		Build()
	if err != nil {
		return "", nil, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), i.key))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return string(signed), claims, nil
}

// Validate fails closed: any parse, signature, expiry, issuer or claim
// problem yields core.ErrTokenInvalid or core.ErrTokenExpired. A missing or
// unknown role never defaults to a valid one.
func (i *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), i.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithAudience(i.config.Audience),
		jwt.WithAcceptableSkew(clockSkew),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("validate token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("validate token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil ||
		tokenType != tokenTypeAccess {
		return nil, fmt.Errorf(
			"validate token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"validate token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	var role string
	if err := token.Get("role", &role); err != nil || !knownRole(role) {
		return nil, fmt.Errorf(
			"validate token: missing or unknown role claim: %w",
			core.ErrTokenInvalid,
		)
	}

	jti, _ := token.JwtID()
	iat, _ := token.IssuedAt()
	exp, _ := token.Expiration()

	return &Claims{
		Subject:   subject,
		Role:      role,
		TokenID:   jti,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}

func knownRole(role string) bool {
	return role == user.RoleUser || role == user.RoleManager
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}
