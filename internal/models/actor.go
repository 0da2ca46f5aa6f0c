package models

// RequestMeta describes the HTTP request a mutation originated from.
type RequestMeta struct {
	IP        string
	UserAgent string
	RequestID string
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID string
	Role   UserRole
	Name   string
	Meta   RequestMeta
}

// IsAdmin reports whether the actor holds the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
