package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the
// login-failure helpers below can run either directly against the pool
// or inside a caller-held transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CredentialRepo covers TOTP enrollment, recovery codes, password
// history, and login-failure counters: the four tables the MFA Engine,
// Password Policy, and Brute-Force Guard sit on top of.
type CredentialRepo struct {
	pool *pgxpool.Pool
}

func NewCredentialRepo(pool *pgxpool.Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

func (r *CredentialRepo) GetTOTP(ctx context.Context, userID uuid.UUID) (UserCredentialTOTP, error) {
	const q = `SELECT user_id, encrypted_secret, algorithm, digits, period, enabled, last_used_step FROM user_credentials_totp WHERE user_id = $1`
	var c UserCredentialTOTP
	err := r.pool.QueryRow(ctx, q, userID).Scan(&c.UserID, &c.EncryptedSecret, &c.Algorithm, &c.Digits, &c.Period, &c.Enabled, &c.LastUsedStep)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserCredentialTOTP{}, ErrNotFound
	}
	if err != nil {
		return UserCredentialTOTP{}, fmt.Errorf("failed to load TOTP credential: %w", err)
	}
	return c, nil
}

func (r *CredentialRepo) UpsertTOTP(ctx context.Context, c UserCredentialTOTP) error {
	const q = `
		INSERT INTO user_credentials_totp (user_id, encrypted_secret, algorithm, digits, period, enabled, last_used_step)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id) DO UPDATE SET
			encrypted_secret = EXCLUDED.encrypted_secret, algorithm = EXCLUDED.algorithm,
			digits = EXCLUDED.digits, period = EXCLUDED.period, enabled = EXCLUDED.enabled,
			last_used_step = EXCLUDED.last_used_step`
	_, err := r.pool.Exec(ctx, q, c.UserID, c.EncryptedSecret, c.Algorithm, c.Digits, c.Period, c.Enabled, c.LastUsedStep)
	if err != nil {
		return fmt.Errorf("failed to upsert TOTP credential: %w", err)
	}
	return nil
}

// AdvanceTOTPStep atomically records step as the last-accepted step,
// but only if it is newer than what's stored — the guard that turns a
// duplicated/replayed code submission into a rejection. It reports
// whether the advance was accepted.
func (r *CredentialRepo) AdvanceTOTPStep(ctx context.Context, userID uuid.UUID, step int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_credentials_totp SET last_used_step = $2 WHERE user_id = $1 AND last_used_step < $2`,
		userID, step)
	if err != nil {
		return false, fmt.Errorf("failed to advance TOTP step: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CredentialRepo) DeleteTOTP(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_credentials_totp WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete TOTP credential: %w", err)
	}
	return nil
}

func (r *CredentialRepo) ReplaceRecoveryCodes(ctx context.Context, userID uuid.UUID, codeHashes []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM recovery_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear recovery codes: %w", err)
	}
	for _, h := range codeHashes {
		if _, err := tx.Exec(ctx, `INSERT INTO recovery_codes (id, user_id, code_hash, used) VALUES ($1,$2,$3,false)`,
			uuid.New(), userID, h); err != nil {
			return fmt.Errorf("failed to insert recovery code: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// ConsumeRecoveryCode marks one unused recovery code matching codeHash as
// used, atomically, so the same code cannot be replayed by a racing
// second request.
func (r *CredentialRepo) ConsumeRecoveryCode(ctx context.Context, userID uuid.UUID, codeHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE recovery_codes SET used = true WHERE user_id = $1 AND code_hash = $2 AND used = false`,
		userID, codeHash)
	if err != nil {
		return false, fmt.Errorf("failed to consume recovery code: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CredentialRepo) AddPasswordHistory(ctx context.Context, h PasswordHistory) error {
	const q = `INSERT INTO password_history (id, user_id, realm_id, password_hash, created_at) VALUES ($1,$2,$3,$4, now())`
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, q, h.ID, h.UserID, h.RealmID, h.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to record password history: %w", err)
	}
	return nil
}

// RecentPasswordHashes returns the most recent `limit` password hashes
// for history-reuse checks, newest first.
func (r *CredentialRepo) RecentPasswordHashes(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT password_hash FROM password_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load password history: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan password history row: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

func (r *CredentialRepo) PruneOldPasswordHistory(ctx context.Context, userID uuid.UUID, keep int) error {
	const q = `
		DELETE FROM password_history
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM password_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
		)`
	_, err := r.pool.Exec(ctx, q, userID, keep)
	if err != nil {
		return fmt.Errorf("failed to prune password history: %w", err)
	}
	return nil
}

// WithLoginFailureLock serializes a check-then-record brute-force
// decision for one user: it opens a transaction, takes a FOR UPDATE lock
// on the user's own row as the per-(realm,user) anchor, and runs fn with
// that lock held until commit. Without this, two concurrent bad login
// attempts can both count the failure total before either one records
// its own, letting more than MaxLoginFailures attempts through.
func (r *CredentialRepo) WithLoginFailureLock(ctx context.Context, realmID, userID uuid.UUID, fn func(tx pgx.Tx) error) error {
	return WithRealmContext(ctx, r.pool, realmID, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
			return fmt.Errorf("failed to lock user row for brute-force check: %w", err)
		}
		return fn(tx)
	})
}

// RecordLoginFailure inserts one failure row for the Brute-Force Guard's
// rolling window count. Pass r.pool for db when not already inside a
// WithLoginFailureLock transaction.
func (r *CredentialRepo) RecordLoginFailure(ctx context.Context, db querier, f LoginFailure) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	const q = `INSERT INTO login_failures (id, user_id, realm_id, ip_address, created_at) VALUES ($1,$2,$3,$4, now())`
	_, err := db.Exec(ctx, q, f.ID, f.UserID, f.RealmID, f.IPAddress)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	return nil
}

// CountRecentLoginFailures counts failures for the user since `since`,
// the window the Brute-Force Guard's failure-reset-time defines.
func (r *CredentialRepo) CountRecentLoginFailures(ctx context.Context, db querier, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := db.QueryRow(ctx,
		`SELECT count(*) FROM login_failures WHERE user_id = $1 AND created_at > $2`, userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count login failures: %w", err)
	}
	return n, nil
}

// LatestLoginFailureAt returns the timestamp of the user's most recent
// failure, or the zero Time if none exist.
func (r *CredentialRepo) LatestLoginFailureAt(ctx context.Context, db querier, userID uuid.UUID) (time.Time, error) {
	var t time.Time
	err := db.QueryRow(ctx,
		`SELECT created_at FROM login_failures WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load latest login failure: %w", err)
	}
	return t, nil
}

func (r *CredentialRepo) ClearLoginFailures(ctx context.Context, db querier, userID uuid.UUID) error {
	_, err := db.Exec(ctx, `DELETE FROM login_failures WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear login failures: %w", err)
	}
	return nil
}
