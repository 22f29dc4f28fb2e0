package auth

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pratik-mahalle/wiman/internal/pkg/errors"
)

// Roles carried in the token
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Claims is the token payload issued by the auth service
type Claims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified caller
type Identity struct {
	UserID int64
	Email  string
	Role   string
}

// IsAdmin reports whether the caller may use admin operations
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Authenticate verifies an HS256 token and returns who it was issued to.
// It has no side effects so any transport can call it.
func Authenticate(token, secret string) (Identity, error) {
	if token == "" {
		return Identity{}, errors.Unauthorized("Missing authentication token")
	}

	claims, err := ParseClaims(token, secret)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, errors.Unauthorized("Token expired")
		}
		return Identity{}, errors.Unauthorized("Invalid token")
	}
	if claims.UserID <= 0 {
		return Identity{}, errors.Unauthorized("Token has no user")
	}

	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	return Identity{UserID: claims.UserID, Email: claims.Email, Role: role}, nil
}

// ParseClaims parses and validates a token signed with secret
func ParseClaims(tokenStr, secret string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

// Mint signs a token the way the auth service does. Used by the CLI and tests.
func Mint(id Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return token.SignedString([]byte(secret))
}
