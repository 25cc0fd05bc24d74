package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUserName  = errors.New("user name already taken")
	ErrConcurrencyFailure = errors.New("optimistic concurrency failure, user has been modified")
)

// UserRepository stores users. Update only succeeds when the stored
// ConcurrencyStamp equals the one on the record being written; the stored
// record then receives a new stamp.
type UserRepository interface {
	Create(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByUserName(ctx context.Context, userName string) (User, error)
	Update(ctx context.Context, u User) (User, error)
}
