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

type DeviceCodeRepo struct {
	pool *pgxpool.Pool
}

func NewDeviceCodeRepo(pool *pgxpool.Pool) *DeviceCodeRepo {
	return &DeviceCodeRepo{pool: pool}
}

func (r *DeviceCodeRepo) Create(ctx context.Context, d DeviceCode) error {
	const q = `
		INSERT INTO device_codes (device_code, user_code, realm_id, client_id, scopes, interval_seconds, expires_at, status, user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.pool.Exec(ctx, q, d.DeviceCode, d.UserCode, d.RealmID, d.ClientID, d.Scopes,
		int64(d.Interval.Seconds()), d.ExpiresAt, d.Status, d.UserID)
	if err != nil {
		return fmt.Errorf("failed to store device code: %w", err)
	}
	return nil
}

func scanDeviceCode(row pgx.Row) (DeviceCode, error) {
	var d DeviceCode
	var intervalSec int64
	err := row.Scan(&d.DeviceCode, &d.UserCode, &d.RealmID, &d.ClientID, &d.Scopes,
		&intervalSec, &d.ExpiresAt, &d.Status, &d.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return DeviceCode{}, ErrNotFound
	}
	if err != nil {
		return DeviceCode{}, fmt.Errorf("failed to scan device code: %w", err)
	}
	d.Interval = time.Duration(intervalSec) * time.Second
	return d, nil
}

const deviceCodeColumns = `device_code, user_code, realm_id, client_id, scopes, interval_seconds, expires_at, status, user_id`

func (r *DeviceCodeRepo) GetByDeviceCode(ctx context.Context, deviceCode string) (DeviceCode, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deviceCodeColumns+` FROM device_codes WHERE device_code = $1`, deviceCode)
	return scanDeviceCode(row)
}

func (r *DeviceCodeRepo) GetByUserCode(ctx context.Context, userCode string) (DeviceCode, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deviceCodeColumns+` FROM device_codes WHERE user_code = $1`, userCode)
	return scanDeviceCode(row)
}

// Approve transitions a pending device code to approved and binds it to
// the user who completed the browser half of the flow. It returns
// ErrNotFound if no pending code matches (unknown, or already approved or
// denied).
func (r *DeviceCodeRepo) Approve(ctx context.Context, userCode string, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE device_codes SET status = 'approved', user_id = $1 WHERE user_code = $2 AND status = 'pending'`,
		userID, userCode)
	if err != nil {
		return fmt.Errorf("failed to approve device code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DeviceCodeRepo) Deny(ctx context.Context, userCode string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE device_codes SET status = 'denied' WHERE user_code = $1 AND status = 'pending'`, userCode)
	if err != nil {
		return fmt.Errorf("failed to deny device code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a device code, e.g. once its approved status has been
// exchanged for tokens, so a second poll after success finds no code
// (ErrNotFound) rather than reissuing tokens.
func (r *DeviceCodeRepo) Delete(ctx context.Context, deviceCode string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM device_codes WHERE device_code = $1`, deviceCode)
	if err != nil {
		return fmt.Errorf("failed to delete device code: %w", err)
	}
	return nil
}

func (r *DeviceCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM device_codes WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired device codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
