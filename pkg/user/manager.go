package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 5 * time.Minute
)

// Result reports the outcome of a user-store update. Errors are
// user-presentable descriptions.
type Result struct {
	Succeeded bool
	Errors    []string
}

func Success() Result {
	return Result{Succeeded: true}
}

func Failed(errs ...string) Result {
	return Result{Errors: errs}
}

// UserManager applies account rules on top of a UserRepository.
type UserManager struct {
	repo              UserRepository
	maxFailedAttempts int
	lockoutDuration   time.Duration
	bcryptCost        int
	now               func() time.Time
}

type Option func(*UserManager)

func WithLockout(maxFailedAttempts int, duration time.Duration) Option {
	return func(m *UserManager) {
		m.maxFailedAttempts = maxFailedAttempts
		m.lockoutDuration = duration
	}
}

func WithBcryptCost(cost int) Option {
	return func(m *UserManager) {
		m.bcryptCost = cost
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *UserManager) {
		m.now = now
	}
}

func NewUserManager(repo UserRepository, opts ...Option) *UserManager {
	m := &UserManager{
		repo:              repo,
		maxFailedAttempts: DefaultMaxFailedAttempts,
		lockoutDuration:   DefaultLockoutDuration,
		bcryptCost:        bcrypt.DefaultCost,
		now:               func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateUser registers a new account with lockout enabled and a fresh
// security stamp.
func (m *UserManager) CreateUser(ctx context.Context, userName, email, password string) (*User, error) {
	if NormalizeUserName(userName) == "" {
		return nil, fmt.Errorf("user name is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := m.repo.Create(ctx, User{
		UserName:       userName,
		Email:          email,
		PasswordHash:   string(hash),
		SecurityStamp:  NewSecurityStamp(),
		LockoutEnabled: true,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("User created", "user_id", created.ID, "user_name", created.UserName)
	return &created, nil
}

func (m *UserManager) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *UserManager) FindByName(ctx context.Context, userName string) (*User, error) {
	u, err := m.repo.GetByUserName(ctx, userName)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *UserManager) CheckPassword(u *User, password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (m *UserManager) GetPhoneNumber(u *User) string {
	return u.PhoneNumber
}

// SetPhoneNumber changes the number in memory and resets its confirmation.
// Nothing is persisted until Update.
func (m *UserManager) SetPhoneNumber(u *User, phoneNumber string) {
	if u.PhoneNumber == phoneNumber {
		return
	}
	u.PhoneNumber = phoneNumber
	u.PhoneNumberConfirmed = false
}

func (m *UserManager) IsPhoneNumberConfirmed(u *User) bool {
	return u.PhoneNumberConfirmed
}

func (m *UserManager) GetTwoFactorEnabled(u *User) bool {
	return u.TwoFactorEnabled
}

// SetTwoFactorEnabled writes the overall flag and persists it. Turning it on
// needs at least one enrolled factor; turning it off leaves the per-factor
// flags alone.
func (m *UserManager) SetTwoFactorEnabled(ctx context.Context, u *User, enabled bool) Result {
	if enabled && !u.HasAnyFactor() {
		return Failed("Two-factor authentication needs an enrolled factor.")
	}
	u.TwoFactorEnabled = enabled
	return m.Update(ctx, u)
}

// UpdateSecurityStamp rotates the stamp and persists it.
func (m *UserManager) UpdateSecurityStamp(ctx context.Context, u *User) Result {
	u.SecurityStamp = NewSecurityStamp()
	return m.Update(ctx, u)
}

// Update persists u. On success the new ConcurrencyStamp and UpdatedAt are
// copied back into u. On failure u keeps its in-memory changes.
func (m *UserManager) Update(ctx context.Context, u *User) Result {
	updated, err := m.repo.Update(ctx, *u)
	if err != nil {
		slog.Error("Failed to update user", "user_id", u.ID, "err", err)
		switch {
		case errors.Is(err, ErrConcurrencyFailure):
			return Failed("The user was modified by another request.")
		case errors.Is(err, ErrUserNotFound):
			return Failed("The user no longer exists.")
		default:
			return Failed(err.Error())
		}
	}
	u.ConcurrencyStamp = updated.ConcurrencyStamp
	u.UpdatedAt = updated.UpdatedAt
	return Success()
}

func (m *UserManager) IsLockedOut(u *User) bool {
	return u.IsLockedOut(m.now())
}

// AccessFailed counts one failed attempt and locks the account once the
// threshold is reached. It reports whether the user is now locked out.
func (m *UserManager) AccessFailed(ctx context.Context, u *User) (bool, error) {
	if !u.LockoutEnabled {
		return false, nil
	}
	u.AccessFailedCount++
	lockedOut := false
	if u.AccessFailedCount >= m.maxFailedAttempts {
		end := m.now().Add(m.lockoutDuration)
		u.LockoutEnd = &end
		u.AccessFailedCount = 0
		lockedOut = true
		slog.Warn("User locked out", "user_id", u.ID, "until", end)
	}
	if result := m.Update(ctx, u); !result.Succeeded {
		return lockedOut, fmt.Errorf("failed to record access failure: %v", result.Errors)
	}
	return lockedOut, nil
}

func (m *UserManager) ResetAccessFailedCount(ctx context.Context, u *User) error {
	if u.AccessFailedCount == 0 && u.LockoutEnd == nil {
		return nil
	}
	u.AccessFailedCount = 0
	u.LockoutEnd = nil
	if result := m.Update(ctx, u); !result.Succeeded {
		return fmt.Errorf("failed to reset access failures: %v", result.Errors)
	}
	return nil
}
