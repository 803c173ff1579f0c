package repository

import "github.com/cosmiccode/portal/internal/domain"

// Scope restricts reads to rows owned by one client. The zero value reads
// everything and is only handed out for administrators.
type Scope struct {
	ClientID string
}

// ScopeFor returns the read scope of a dashboard user.
func ScopeFor(user *domain.User) Scope {
	if user.IsAdmin() {
		return Scope{}
	}
	return Scope{ClientID: user.ID}
}

// All reports whether the scope is unrestricted.
func (s Scope) All() bool {
	return s.ClientID == ""
}

// arg returns the client filter as a nullable query parameter.
func (s Scope) arg() *string {
	if s.All() {
		return nil
	}
	id := s.ClientID
	return &id
}
