package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SigningKeyRepo struct {
	pool *pgxpool.Pool
}

func NewSigningKeyRepo(pool *pgxpool.Pool) *SigningKeyRepo {
	return &SigningKeyRepo{pool: pool}
}

const signingKeyColumns = `id, realm_id, kid, algorithm, public_key_pem, private_key_pem, active, created_at`

func scanSigningKey(row pgx.Row) (RealmSigningKey, error) {
	var k RealmSigningKey
	err := row.Scan(&k.ID, &k.RealmID, &k.Kid, &k.Algorithm, &k.PublicKeyPEM, &k.PrivateKeyPEM, &k.Active, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RealmSigningKey{}, ErrNotFound
	}
	if err != nil {
		return RealmSigningKey{}, fmt.Errorf("failed to scan signing key: %w", err)
	}
	return k, nil
}

// Active returns every currently active signing key for a realm, newest
// first; JWKS publishes all of them, and the token factory signs with the
// newest.
func (r *SigningKeyRepo) Active(ctx context.Context, realmID uuid.UUID) ([]RealmSigningKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+signingKeyColumns+` FROM realm_signing_keys WHERE realm_id = $1 AND active = true ORDER BY created_at DESC`,
		realmID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active signing keys: %w", err)
	}
	defer rows.Close()

	var keys []RealmSigningKey
	for rows.Next() {
		var k RealmSigningKey
		if err := rows.Scan(&k.ID, &k.RealmID, &k.Kid, &k.Algorithm, &k.PublicKeyPEM, &k.PrivateKeyPEM, &k.Active, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signing key row: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *SigningKeyRepo) GetByKid(ctx context.Context, realmID uuid.UUID, kid string) (RealmSigningKey, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+signingKeyColumns+` FROM realm_signing_keys WHERE realm_id = $1 AND kid = $2`, realmID, kid)
	return scanSigningKey(row)
}

func (r *SigningKeyRepo) Create(ctx context.Context, k RealmSigningKey) (RealmSigningKey, error) {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	const q = `
		INSERT INTO realm_signing_keys (id, realm_id, kid, algorithm, public_key_pem, private_key_pem, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())
		RETURNING ` + signingKeyColumns
	row := r.pool.QueryRow(ctx, q, k.ID, k.RealmID, k.Kid, k.Algorithm, k.PublicKeyPEM, k.PrivateKeyPEM, k.Active)
	return scanSigningKey(row)
}

// Deactivate retires a key so the JWKS stops publishing it and the token
// factory stops signing with it, without deleting its row (old tokens
// signed under it may still be outstanding and need to verify).
func (r *SigningKeyRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE realm_signing_keys SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate signing key: %w", err)
	}
	return nil
}
