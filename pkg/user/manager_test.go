package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestManager(t *testing.T, opts ...Option) (*UserManager, *InMemUserRepository) {
	t.Helper()
	repo := NewInMemUserRepository()
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewUserManager(repo, opts...), repo
}

func TestCreateUserAndCheckPassword(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	u, err := m.CreateUser(ctx, "alice", "alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.True(t, u.LockoutEnabled)
	assert.NotEmpty(t, u.SecurityStamp)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	assert.True(t, m.CheckPassword(u, "correct horse"))
	assert.False(t, m.CheckPassword(u, "battery staple"))

	found, err := m.FindByName(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = m.CreateUser(ctx, "  ", "", "pw")
	assert.Error(t, err)
}

func TestSetPhoneNumberResetsConfirmation(t *testing.T) {
	m, _ := newTestManager(t)
	u := &User{PhoneNumber: "+15550000000", PhoneNumberConfirmed: true}

	m.SetPhoneNumber(u, "+15550000000")
	assert.True(t, m.IsPhoneNumberConfirmed(u))

	m.SetPhoneNumber(u, "+15551111111")
	assert.Equal(t, "+15551111111", m.GetPhoneNumber(u))
	assert.False(t, m.IsPhoneNumberConfirmed(u))
}

func TestUpdateCopiesStampBack(t *testing.T) {
	m, repo := newTestManager(t)
	ctx := context.Background()

	u, err := m.CreateUser(ctx, "alice", "", "pw")
	require.NoError(t, err)

	result := m.SetTwoFactorEnabled(ctx, u, true)
	assert.False(t, result.Succeeded, "no factor enrolled")
	assert.False(t, u.TwoFactorEnabled)

	u.Phone2FAEnabled = true
	oldStamp := u.ConcurrencyStamp
	result = m.SetTwoFactorEnabled(ctx, u, true)
	require.True(t, result.Succeeded)
	assert.NotEqual(t, oldStamp, u.ConcurrencyStamp)
	assert.True(t, m.GetTwoFactorEnabled(u))

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.TwoFactorEnabled)

	// a second update from the same in-memory copy still works
	assert.True(t, m.Update(ctx, u).Succeeded)
}

func TestUpdateConflictKeepsInMemoryChange(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	u, err := m.CreateUser(ctx, "alice", "", "pw")
	require.NoError(t, err)
	stale := *u

	require.True(t, m.Update(ctx, u).Succeeded)

	stale.PhoneNumberConfirmed = true
	result := m.Update(ctx, &stale)
	assert.False(t, result.Succeeded)
	assert.NotEmpty(t, result.Errors)
	assert.True(t, stale.PhoneNumberConfirmed)
}

func TestAccessFailedLocksOut(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m, _ := newTestManager(t, WithLockout(3, 10*time.Minute), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	u, err := m.CreateUser(ctx, "alice", "", "pw")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		locked, err := m.AccessFailed(ctx, u)
		require.NoError(t, err)
		assert.False(t, locked)
	}
	assert.Equal(t, 2, u.AccessFailedCount)

	locked, err := m.AccessFailed(ctx, u)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.True(t, m.IsLockedOut(u))
	assert.Equal(t, now.Add(10*time.Minute), *u.LockoutEnd)

	require.NoError(t, m.ResetAccessFailedCount(ctx, u))
	assert.False(t, m.IsLockedOut(u))
	assert.Zero(t, u.AccessFailedCount)
}

func TestAccessFailedWithoutLockout(t *testing.T) {
	m, _ := newTestManager(t)
	u := &User{LockoutEnabled: false}
	locked, err := m.AccessFailed(context.Background(), u)
	require.NoError(t, err)
	assert.False(t, locked)
	assert.Zero(t, u.AccessFailedCount)
}
