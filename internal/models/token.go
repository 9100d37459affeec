package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the identity embedded in issued access tokens.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Username  string   `json:"username"`
	Role      UserRole `json:"role"`
	StudentID string   `json:"student_id,omitempty"`
	jwt.RegisteredClaims
}
