package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConsentRepo persists the durable grant ledger (UserConsent). The
// transient ConsentRequest half of consent lives in the Transient store,
// not here, since it is opaque-id keyed and short-lived by nature.
type ConsentRepo struct {
	pool *pgxpool.Pool
}

func NewConsentRepo(pool *pgxpool.Pool) *ConsentRepo {
	return &ConsentRepo{pool: pool}
}

func (r *ConsentRepo) Get(ctx context.Context, userID, clientID uuid.UUID) (UserConsent, error) {
	const q = `SELECT user_id, client_id, scopes, granted_at FROM user_consents WHERE user_id = $1 AND client_id = $2`
	var c UserConsent
	err := r.pool.QueryRow(ctx, q, userID, clientID).Scan(&c.UserID, &c.ClientID, &c.Scopes, &c.GrantedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserConsent{}, ErrNotFound
	}
	if err != nil {
		return UserConsent{}, fmt.Errorf("failed to load consent: %w", err)
	}
	return c, nil
}

// Grant upserts the consent row, unioning newly granted scopes with any
// already on record so a narrower re-consent never silently revokes a
// broader prior grant.
func (r *ConsentRepo) Grant(ctx context.Context, userID, clientID uuid.UUID, scopes []string) error {
	const q = `
		INSERT INTO user_consents (user_id, client_id, scopes, granted_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, client_id) DO UPDATE
		SET scopes = (
			SELECT array_agg(DISTINCT s) FROM unnest(user_consents.scopes || EXCLUDED.scopes) AS s
		), granted_at = now()`
	if _, err := r.pool.Exec(ctx, q, userID, clientID, scopes); err != nil {
		return fmt.Errorf("failed to grant consent: %w", err)
	}
	return nil
}

func (r *ConsentRepo) Revoke(ctx context.Context, userID, clientID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_consents WHERE user_id = $1 AND client_id = $2`, userID, clientID)
	if err != nil {
		return fmt.Errorf("failed to revoke consent: %w", err)
	}
	return nil
}

// HasAll reports whether every requested scope is already covered by a
// prior grant, deciding whether the consent screen can be skipped.
func (c UserConsent) HasAll(requested []string) bool {
	granted := make(map[string]bool, len(c.Scopes))
	for _, s := range c.Scopes {
		granted[s] = true
	}
	for _, s := range requested {
		if !granted[s] {
			return false
		}
	}
	return true
}
