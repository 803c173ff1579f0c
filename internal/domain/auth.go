package domain

import "time"

// Identity is the authenticated principal resolved from a session token.
type Identity struct {
	UserID    string
	Role      UserRole
	TokenID   string
	ExpiresAt time.Time
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}
