package user

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testUserRepository runs the behaviour every backend must share.
func testUserRepository(t *testing.T, repo UserRepository) {
	ctx := context.Background()
	name := "alice-" + uuid.NewString()[:8]

	created, err := repo.Create(ctx, User{
		UserName:       name,
		Email:          name + "@example.com",
		PhoneNumber:    "+15551234567",
		SecurityStamp:  NewSecurityStamp(),
		LockoutEnabled: true,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	require.NotEmpty(t, created.ConcurrencyStamp)

	t.Run("GetByID", func(t *testing.T) {
		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, name, got.UserName)
		assert.Equal(t, "+15551234567", got.PhoneNumber)
	})

	t.Run("GetByUserNameIgnoresCase", func(t *testing.T) {
		got, err := repo.GetByUserName(ctx, " "+name+" ")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrUserNotFound)
		_, err = repo.GetByUserName(ctx, "nobody-"+uuid.NewString())
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("DuplicateUserName", func(t *testing.T) {
		_, err := repo.Create(ctx, User{UserName: name, SecurityStamp: NewSecurityStamp()})
		assert.ErrorIs(t, err, ErrDuplicateUserName)
	})

	t.Run("UpdateRotatesConcurrencyStamp", func(t *testing.T) {
		current, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)

		current.PhoneNumberConfirmed = true
		current.EnableFactor(FactorPhone)
		updated, err := repo.Update(ctx, current)
		require.NoError(t, err)
		assert.NotEqual(t, current.ConcurrencyStamp, updated.ConcurrencyStamp)
		assert.True(t, updated.Phone2FAEnabled)
		assert.True(t, updated.TwoFactorEnabled)

		stored, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, stored.PhoneNumberConfirmed)
		assert.Equal(t, updated.ConcurrencyStamp, stored.ConcurrencyStamp)
	})

	t.Run("StaleUpdateIsRejected", func(t *testing.T) {
		first, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		second := first

		first.Email2FAEnabled = true
		_, err = repo.Update(ctx, first)
		require.NoError(t, err)

		second.Phone2FAEnabled = false
		_, err = repo.Update(ctx, second)
		assert.ErrorIs(t, err, ErrConcurrencyFailure)
	})

	t.Run("UpdateUnknownUser", func(t *testing.T) {
		_, err := repo.Update(ctx, User{ID: uuid.New(), ConcurrencyStamp: "x"})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestInMemUserRepository(t *testing.T) {
	testUserRepository(t, NewInMemUserRepository())
}

func TestFileUserRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "users.json")
	repo, err := NewFileUserRepository(path)
	require.NoError(t, err)
	testUserRepository(t, repo)

	t.Run("Reload", func(t *testing.T) {
		created, err := repo.Create(context.Background(), User{UserName: "bob", SecurityStamp: NewSecurityStamp()})
		require.NoError(t, err)

		reopened, err := NewFileUserRepository(path)
		require.NoError(t, err)
		got, err := reopened.GetByID(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob", got.UserName)
		assert.Equal(t, created.ConcurrencyStamp, got.ConcurrencyStamp)
	})
}

func TestNewUserRepository(t *testing.T) {
	repo, err := NewUserRepository("inmem", RepositoryConfig{})
	require.NoError(t, err)
	assert.IsType(t, &InMemUserRepository{}, repo)

	_, err = NewUserRepository("postgres", RepositoryConfig{})
	assert.Error(t, err)

	_, err = NewUserRepository("file", RepositoryConfig{})
	assert.Error(t, err)

	_, err = NewUserRepository("mongo", RepositoryConfig{})
	assert.Error(t, err)
}
