package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims are the claims carried by access tokens.
// SessionID binds the token to a server-tracked session, so ending the
// session invalidates the token even before it expires.
type TokenClaims struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}
