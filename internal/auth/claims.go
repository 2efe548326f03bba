package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// defaultAccessTTL applies when a non-positive TTL is requested.
const defaultAccessTTL = 15 * time.Minute

// CustomClaims extends the registered JWT claims with the actor's role and
// group memberships.
type CustomClaims struct {
	jwt.RegisteredClaims
	Role   Role     `json:"role"`
	Groups []string `json:"groups,omitempty"`
}

// Actor converts validated claims to the request identity.
func (c *CustomClaims) Actor() Actor {
	return Actor{
		ID:       c.Subject,
		Role:     c.Role,
		GroupIDs: append([]string(nil), c.Groups...),
	}
}

// GenerateAccessToken signs an HS256 access token for actor. Tokens are
// normally issued by the account service; this exists for operators and
// tests that share the secret.
func GenerateAccessToken(actor Actor, secret string, ttlMinutes int) (string, error) {
	ttl := time.Duration(ttlMinutes) * time.Minute
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}

	now := time.Now()
	claims := CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Role:   actor.Role,
		Groups: actor.GroupIDs,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// ParseToken validates signature, expiry and required fields of an access
// token and returns its claims.
func ParseToken(tokenString, secret string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}

	return claims, nil
}
