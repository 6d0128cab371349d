package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, realm_id, username, email, email_verified, first_name, last_name,
	enabled, password_hash, password_changed_at, federation_link, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.RealmID, &u.Username, &u.Email, &u.EmailVerified,
		&u.FirstName, &u.LastName, &u.Enabled, &u.PasswordHash, &u.PasswordChangedAt,
		&u.FederationLink, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

// users carries row-level security (see migrations/000001_init.up.sql),
// so every statement below runs inside a transaction with
// app.current_realm set via WithRealmContext rather than querying the
// pool directly — otherwise the policy's USING clause matches nothing.

func (r *UserRepo) GetByUsername(ctx context.Context, realmID uuid.UUID, username string) (User, error) {
	var u User
	err := WithRealmContext(ctx, r.pool, realmID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE realm_id = $1 AND username = $2`, realmID, username)
		var serr error
		u, serr = scanUser(row)
		return serr
	})
	return u, err
}

func (r *UserRepo) GetByEmail(ctx context.Context, realmID uuid.UUID, email string) (User, error) {
	var u User
	err := WithRealmContext(ctx, r.pool, realmID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE realm_id = $1 AND email = $2`, realmID, email)
		var serr error
		u, serr = scanUser(row)
		return serr
	})
	return u, err
}

func (r *UserRepo) GetByID(ctx context.Context, realmID, id uuid.UUID) (User, error) {
	var u User
	err := WithRealmContext(ctx, r.pool, realmID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE realm_id = $1 AND id = $2`, realmID, id)
		var serr error
		u, serr = scanUser(row)
		return serr
	})
	return u, err
}

func (r *UserRepo) Create(ctx context.Context, u User) (User, error) {
	const q = `
		INSERT INTO users (id, realm_id, username, email, email_verified, first_name, last_name,
			enabled, password_hash, password_changed_at, federation_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		RETURNING ` + userColumns

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	var created User
	err := WithRealmContext(ctx, r.pool, u.RealmID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, q, u.ID, u.RealmID, u.Username, u.Email, u.EmailVerified,
			u.FirstName, u.LastName, u.Enabled, u.PasswordHash, u.PasswordChangedAt, u.FederationLink)
		var serr error
		created, serr = scanUser(row)
		return serr
	})
	return created, err
}

// UpdatePassword sets a new password hash and bumps PasswordChangedAt,
// used by both self-service change and admin-forced reset.
func (r *UserRepo) UpdatePassword(ctx context.Context, realmID, userID uuid.UUID, passwordHash string) error {
	return WithRealmContext(ctx, r.pool, realmID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1, password_changed_at = now(), updated_at = now() WHERE id = $2`, passwordHash, userID)
		if err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *UserRepo) SetEmailVerified(ctx context.Context, realmID, userID uuid.UUID, verified bool) error {
	return ExecInRealmContext(ctx, r.pool, realmID,
		`UPDATE users SET email_verified = $1, updated_at = now() WHERE id = $2`, verified, userID)
}
