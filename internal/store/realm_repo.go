package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by every repository lookup that finds no row.
var ErrNotFound = errors.New("not found")

// RealmRepo persists Realm rows. Realms are looked up by name far more
// often than by ID (every request path starts with /{realm}/...), so
// GetByName is the hot path the realm cache sits in front of.
type RealmRepo struct {
	pool *pgxpool.Pool
}

func NewRealmRepo(pool *pgxpool.Pool) *RealmRepo {
	return &RealmRepo{pool: pool}
}

func (r *RealmRepo) GetByName(ctx context.Context, name string) (Realm, error) {
	const q = `
		SELECT id, name, display_name, enabled,
			access_token_lifespan_seconds, refresh_token_lifespan_seconds, offline_token_lifespan_seconds,
			pw_min_length, pw_require_upper, pw_require_lower, pw_require_digit, pw_require_special,
			pw_history_count, pw_max_age_days,
			bf_enabled, bf_max_failures, bf_lockout_seconds, bf_failure_reset_seconds, bf_permanent_after,
			mfa_required, registration_allowed, require_email_verification, theme,
			created_at, updated_at
		FROM realms WHERE name = $1`

	var realm Realm
	var accessSec, refreshSec, offlineSec int64
	var lockoutSec, resetSec int64

	err := r.pool.QueryRow(ctx, q, name).Scan(
		&realm.ID, &realm.Name, &realm.DisplayName, &realm.Enabled,
		&accessSec, &refreshSec, &offlineSec,
		&realm.PasswordPolicy.MinLength, &realm.PasswordPolicy.RequireUppercase,
		&realm.PasswordPolicy.RequireLowercase, &realm.PasswordPolicy.RequireDigits,
		&realm.PasswordPolicy.RequireSpecial, &realm.PasswordPolicy.HistoryCount,
		&realm.PasswordPolicy.MaxAgeDays,
		&realm.BruteForcePolicy.Enabled, &realm.BruteForcePolicy.MaxLoginFailures,
		&lockoutSec, &resetSec, &realm.BruteForcePolicy.PermanentLockoutAfter,
		&realm.MFARequired, &realm.RegistrationAllowed, &realm.RequireEmailVerification, &realm.Theme,
		&realm.CreatedAt, &realm.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Realm{}, ErrNotFound
	}
	if err != nil {
		return Realm{}, fmt.Errorf("failed to load realm %q: %w", name, err)
	}

	realm.AccessTokenLifespan = time.Duration(accessSec) * time.Second
	realm.RefreshTokenLifespan = time.Duration(refreshSec) * time.Second
	realm.OfflineTokenLifespan = time.Duration(offlineSec) * time.Second
	realm.BruteForcePolicy.LockoutDuration = time.Duration(lockoutSec) * time.Second
	realm.BruteForcePolicy.FailureResetTime = time.Duration(resetSec) * time.Second

	return realm, nil
}

func (r *RealmRepo) GetByID(ctx context.Context, id uuid.UUID) (Realm, error) {
	const q = `SELECT name FROM realms WHERE id = $1`
	var name string
	if err := r.pool.QueryRow(ctx, q, id).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Realm{}, ErrNotFound
		}
		return Realm{}, fmt.Errorf("failed to look up realm %s: %w", id, err)
	}
	return r.GetByName(ctx, name)
}
