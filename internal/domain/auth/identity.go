package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Role enumerates user roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ErrUserNotFound is returned when no user matches the requested id.
var ErrUserNotFound = errors.New("user not found")

// User is the subset of the account record needed to authorize requests.
type User struct {
	ID     string
	Name   string
	Email  string
	Phone  string
	Role   Role
	Active bool
}

// Identity is the authenticated caller of an operation.
type Identity struct {
	UserID string
	Role   Role
	Name   string
	Email  string
	Phone  string
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Repository provides user lookups.
type Repository interface {
	FindUser(ctx context.Context, id string) (*User, error)
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
