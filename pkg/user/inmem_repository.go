package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type InMemUserRepository struct {
	mutex sync.RWMutex
	users map[uuid.UUID]User
}

func NewInMemUserRepository() *InMemUserRepository {
	return &InMemUserRepository{
		users: make(map[uuid.UUID]User),
	}
}

func (r *InMemUserRepository) Create(ctx context.Context, u User) (User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return createUser(r.users, u)
}

func (r *InMemUserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *InMemUserRepository) GetByUserName(ctx context.Context, userName string) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return findByUserName(r.users, userName)
}

func (r *InMemUserRepository) Update(ctx context.Context, u User) (User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return updateUser(r.users, u)
}

// createUser and updateUser hold the rules shared by the map-backed
// repositories. Callers hold the write lock.
func createUser(users map[uuid.UUID]User, u User) (User, error) {
	if _, err := findByUserName(users, u.UserName); err == nil {
		return User{}, ErrDuplicateUserName
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.ConcurrencyStamp = uuid.NewString()
	users[u.ID] = u
	return u, nil
}

func updateUser(users map[uuid.UUID]User, u User) (User, error) {
	stored, ok := users[u.ID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if stored.ConcurrencyStamp != u.ConcurrencyStamp {
		return User{}, ErrConcurrencyFailure
	}
	u.CreatedAt = stored.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	u.ConcurrencyStamp = uuid.NewString()
	users[u.ID] = u
	return u, nil
}

func findByUserName(users map[uuid.UUID]User, userName string) (User, error) {
	key := NormalizeUserName(userName)
	for _, u := range users {
		if NormalizeUserName(u.UserName) == key {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}
