// Package auth resolves credential tokens into user identities.
// The engine consumes it through the contract.Authenticator interface;
// resolution failure is never fatal for a connection.
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lyceum/errors"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type TokenAuthenticator struct {
	secret []byte
}

func NewTokenAuthenticator(secret string) *TokenAuthenticator {
	return &TokenAuthenticator{secret: []byte(secret)}
}

// ResolveIdentity validates the signature and expiration of a JWT and
// extracts the user identifier it carries.
func (a *TokenAuthenticator) ResolveIdentity(_ context.Context, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", errors.ErrInvalidToken
	}
	return claims.UserID, nil
}

// GenerateToken creates a signed JWT for a specific user.
// Used by the probe client and by tests.
func (a *TokenAuthenticator) GenerateToken(userID string, ttl time.Duration) (string, error) {
	claims := &CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "lyceum",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
