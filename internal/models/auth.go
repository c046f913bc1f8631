package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens. Every caller acts on
// behalf of exactly one organization.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	OrgID    string `json:"org_id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// Actor identifies who performs a workflow operation.
type Actor struct {
	OrgID  string
	UserID string
}
