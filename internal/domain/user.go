package domain

import "time"

// UserRole separates studio administrators from clients.
type UserRole string

const (
	UserRoleClient UserRole = "client"
	UserRoleAdmin  UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == UserRoleClient || r == UserRoleAdmin
}

// User is a dashboard account. Clients own projects; admins see everything.
type User struct {
	ID            string    `json:"id"`
	Email         *string   `json:"email"`
	Role          UserRole  `json:"role"`
	CompanyName   *string   `json:"company_name"`
	ContactPerson *string   `json:"contact_person"`
	Phone         *string   `json:"phone"`
	AvatarURL     *string   `json:"avatar_url"`
	PasswordHash  string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user bypasses per-client scoping.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == UserRoleAdmin
}
