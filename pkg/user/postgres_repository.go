package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type PostgresUserRepository struct {
	db DBTX
}

func NewPostgresUserRepository(db DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, user_name, email, email_confirmed, password_hash,
	phone_number, phone_number_confirmed,
	two_factor_enabled, phone_2fa_enabled, email_2fa_enabled, authenticator_app_2fa_enabled, passkeys_2fa_enabled,
	authenticator_key, security_stamp, concurrency_stamp,
	lockout_enabled, lockout_end, access_failed_count, created_at, updated_at`

const uniqueViolation = "23505"

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.UserName, &u.Email, &u.EmailConfirmed, &u.PasswordHash,
		&u.PhoneNumber, &u.PhoneNumberConfirmed,
		&u.TwoFactorEnabled, &u.Phone2FAEnabled, &u.Email2FAEnabled, &u.AuthenticatorApp2FAEnabled, &u.Passkeys2FAEnabled,
		&u.AuthenticatorKey, &u.SecurityStamp, &u.ConcurrencyStamp,
		&u.LockoutEnabled, &u.LockoutEnd, &u.AccessFailedCount, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (r *PostgresUserRepository) Create(ctx context.Context, u User) (User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $19)
		RETURNING ` + userColumns

	created, err := scanUser(r.db.QueryRow(ctx, query,
		u.ID, u.UserName, u.Email, u.EmailConfirmed, u.PasswordHash,
		u.PhoneNumber, u.PhoneNumberConfirmed,
		u.TwoFactorEnabled, u.Phone2FAEnabled, u.Email2FAEnabled, u.AuthenticatorApp2FAEnabled, u.Passkeys2FAEnabled,
		u.AuthenticatorKey, u.SecurityStamp, uuid.NewString(),
		u.LockoutEnabled, u.LockoutEnd, u.AccessFailedCount, now,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrDuplicateUserName
		}
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByUserName(ctx context.Context, userName string) (User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(user_name) = $1`, NormalizeUserName(userName)))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to get user by name: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, u User) (User, error) {
	query := `
		UPDATE users SET
			user_name = $2, email = $3, email_confirmed = $4, password_hash = $5,
			phone_number = $6, phone_number_confirmed = $7,
			two_factor_enabled = $8, phone_2fa_enabled = $9, email_2fa_enabled = $10,
			authenticator_app_2fa_enabled = $11, passkeys_2fa_enabled = $12,
			authenticator_key = $13, security_stamp = $14,
			lockout_enabled = $15, lockout_end = $16, access_failed_count = $17,
			concurrency_stamp = $18, updated_at = $19
		WHERE id = $1 AND concurrency_stamp = $20
		RETURNING ` + userColumns

	updated, err := scanUser(r.db.QueryRow(ctx, query,
		u.ID, u.UserName, u.Email, u.EmailConfirmed, u.PasswordHash,
		u.PhoneNumber, u.PhoneNumberConfirmed,
		u.TwoFactorEnabled, u.Phone2FAEnabled, u.Email2FAEnabled,
		u.AuthenticatorApp2FAEnabled, u.Passkeys2FAEnabled,
		u.AuthenticatorKey, u.SecurityStamp,
		u.LockoutEnabled, u.LockoutEnd, u.AccessFailedCount,
		uuid.NewString(), time.Now().UTC(), u.ConcurrencyStamp,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// either the row is gone or the stamp moved on
		if _, getErr := r.GetByID(ctx, u.ID); errors.Is(getErr, ErrUserNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, ErrConcurrencyFailure
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return updated, nil
}
