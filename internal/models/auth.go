package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Principal is the acting user of a workflow call.
type Principal struct {
	ID   string
	Role UserRole
}

// PrincipalFromClaims converts token claims into a Principal; nil claims yield the zero value.
func PrincipalFromClaims(c *JWTClaims) Principal {
	if c == nil {
		return Principal{}
	}
	return Principal{ID: c.UserID, Role: c.Role}
}

// IsStaff reports whether the principal manages campaigns.
func (p Principal) IsStaff() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager
}
