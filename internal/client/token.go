package client

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims accepts both the standard subject and the UserID claim issued
// by older auth servers.
type sessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"UserID,omitempty"`
}

// OwnerFromToken extracts the owner id from a session token. The signature is
// not verified here; the remote verifies it on every request.
func OwnerFromToken(token string) (string, error) {
	claims := &sessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	if claims.Subject != "" {
		return claims.Subject, nil
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	return "", fmt.Errorf("%w: token carries no owner", ErrUnauthorized)
}
