package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/foxseedlab/tablesession/internal/identity"
)

const bearerPrefix = "Bearer "

type actorClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
}

// JWTProvider authenticates HS256 bearer tokens whose subject is the numeric
// user id.
type JWTProvider struct {
	secret []byte
	now    func() time.Time
}

func NewJWTProvider(secret string) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), now: time.Now}
}

// Authenticate accepts either a raw token or an Authorization header value.
func (p *JWTProvider) Authenticate(_ context.Context, credential string) (identity.Actor, error) {
	raw := strings.TrimSpace(credential)
	if len(raw) >= len(bearerPrefix) && strings.EqualFold(raw[:len(bearerPrefix)], bearerPrefix) {
		raw = strings.TrimSpace(raw[len(bearerPrefix):])
	}
	if raw == "" {
		return identity.Actor{}, fmt.Errorf("%w: missing token", identity.ErrUnauthenticated)
	}

	var claims actorClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return identity.Actor{}, mapJWTError(err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return identity.Actor{}, fmt.Errorf("%w: subject must be a positive user id", identity.ErrUnauthenticated)
	}
	role := identity.Role(claims.Role)
	if !role.Valid() {
		return identity.Actor{}, fmt.Errorf("%w: unknown role %q", identity.ErrUnauthenticated, claims.Role)
	}
	return identity.Actor{UserID: userID, Username: claims.Username, Role: role}, nil
}

// IssueToken signs a token for actor. ttl <= 0 issues a token without expiry.
func (p *JWTProvider) IssueToken(actor identity.Actor, ttl time.Duration) (string, error) {
	if !actor.Role.Valid() {
		return "", fmt.Errorf("unknown role %q", actor.Role)
	}
	now := p.now()
	claims := actorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatInt(actor.UserID, 10),
			IssuedAt: jwt.NewNumericDate(now),
		},
		Username: actor.Username,
		Role:     string(actor.Role),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: token expired", identity.ErrUnauthenticated)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: invalid signature", identity.ErrUnauthenticated)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: malformed token", identity.ErrUnauthenticated)
	default:
		return fmt.Errorf("%w: %v", identity.ErrUnauthenticated, err)
	}
}
