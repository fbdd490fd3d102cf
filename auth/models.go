package auth

import "time"

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleOperator Role = "operator"
)

// User is the domain representation of an authenticated user. It mirrors the
// users table and carries no JSON annotations so different presentation
// layers can shape it as needed.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the actor extracted from verified credentials. Its UserID is
// what the lifecycle engine receives as the acting party.
type Identity struct {
	UserID string
	Role   Role
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
