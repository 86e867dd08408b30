package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/astralcore/haven/internal/models"
)

// Claims is the payload inside every access token. The hub never issues
// tokens for end users; it only verifies what the identity service signed.
type Claims struct {
	UserID      uuid.UUID  `json:"user_id"`
	Role        string     `json:"role"`
	Active      bool       `json:"active"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the resolved result the hub consumes: who the credential
// belongs to and whether the account may connect right now.
type Identity struct {
	UserID      uuid.UUID
	Role        models.Role
	Active      bool
	LockedUntil *time.Time
}

// Locked reports whether the account is currently locked out.
func (id Identity) Locked(now time.Time) bool {
	return id.LockedUntil != nil && now.Before(*id.LockedUntil)
}

// Resolver verifies credentials into identities. The HMAC-secret
// implementation below is the default; tests substitute their own.
type Resolver interface {
	Resolve(credential string) (Identity, error)
}

type jwtResolver struct {
	secret string
}

func NewResolver(secret string) Resolver {
	return &jwtResolver{secret: secret}
}

func (r *jwtResolver) Resolve(credential string) (Identity, error) {
	claims, err := ParseToken(credential, r.secret)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		UserID:      claims.UserID,
		Role:        models.Role(claims.Role),
		Active:      claims.Active,
		LockedUntil: claims.LockedUntil,
	}, nil
}

// GenerateToken signs a token for a user. Used by tooling and tests; the
// production issuer lives in the identity service.
func GenerateToken(userID uuid.UUID, role models.Role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: userID,
		Role:   string(role),
		Active: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "haven",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a token string and extracts the claims. It verifies
// the HMAC signature, expiry, and that the signing method was not switched
// to "none" or an asymmetric algorithm.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}
