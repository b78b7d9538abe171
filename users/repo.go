package users

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Repo implementations when no user matches.
var ErrNotFound = errors.New("user not found")

// Repo is the persistence boundary for user records. Concurrency discipline
// and credential-equality semantics (hash comparison) belong to the
// implementation, not to the callers.
type Repo interface {
	// Create persists a new user and returns it with the store-assigned ID.
	Create(ctx context.Context, user *User) (*User, error)

	// GetByID returns the user with the given ID or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*User, error)

	// All returns every stored user.
	All(ctx context.Context) ([]User, error)

	// FindByCredentials returns every user whose name and password match the
	// given pair. Callers decide what a result size other than one means.
	FindByCredentials(ctx context.Context, name, password string) ([]User, error)

	// Admins returns every admin-flagged user.
	Admins(ctx context.Context) ([]User, error)

	// Update overwrites the stored record for user.ID, or ErrNotFound.
	Update(ctx context.Context, user *User) error

	// Delete removes the user with the given ID, or ErrNotFound.
	Delete(ctx context.Context, id int64) error
}
