package user

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// FileUserRepository keeps users in a single JSON file, rewritten on every
// change through a temp file and rename.
type FileUserRepository struct {
	path  string
	users map[uuid.UUID]User
	mutex sync.RWMutex
}

type userData struct {
	Users []User `json:"users"`
}

func NewFileUserRepository(path string) (*FileUserRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileUserRepository{
		path:  path,
		users: make(map[uuid.UUID]User),
	}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

func (r *FileUserRepository) Create(ctx context.Context, u User) (User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	created, err := createUser(r.users, u)
	if err != nil {
		return User{}, err
	}
	if err := r.save(); err != nil {
		delete(r.users, created.ID)
		return User{}, fmt.Errorf("failed to save: %w", err)
	}
	return created, nil
}

func (r *FileUserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *FileUserRepository) GetByUserName(ctx context.Context, userName string) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return findByUserName(r.users, userName)
}

func (r *FileUserRepository) Update(ctx context.Context, u User) (User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	previous := r.users[u.ID]
	updated, err := updateUser(r.users, u)
	if err != nil {
		return User{}, err
	}
	if err := r.save(); err != nil {
		r.users[u.ID] = previous
		return User{}, fmt.Errorf("failed to save: %w", err)
	}
	return updated, nil
}

func (r *FileUserRepository) load() error {
	raw, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	var data userData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	for _, u := range data.Users {
		r.users[u.ID] = u
	}
	return nil
}

func (r *FileUserRepository) save() error {
	data := userData{Users: make([]User, 0, len(r.users))}
	for _, u := range r.users {
		data.Users = append(data.Users, u)
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := r.path + ".tmp"
	if err := os.WriteFile(tempFile, raw, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, r.path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
