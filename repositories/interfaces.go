package repositories

import (
	"context"
	"errors"

	"github.com/upb/eloboost/models"
)

// ErrNotFound is returned by lookups that match no record
var ErrNotFound = errors.New("record not found")

// UserRepository handles user data operations
type UserRepository interface {
	// UpsertLogin creates the user for rec's provider id on first login and
	// applies the login to the existing record otherwise. created reports
	// which of the two happened. Concurrent logins for the same provider id
	// never produce two records.
	UpsertLogin(ctx context.Context, rec models.LoginRecord) (user *models.User, created bool, err error)

	// GetByID retrieves a user by ID. Unknown or malformed ids yield ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// List retrieves users ordered by most recent login
	List(ctx context.Context, limit, offset int) ([]*models.User, error)

	// Ping checks connectivity with the backing store
	Ping(ctx context.Context) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Users UserRepository
}
