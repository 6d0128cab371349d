package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClientRepo struct {
	pool *pgxpool.Pool
}

func NewClientRepo(pool *pgxpool.Pool) *ClientRepo {
	return &ClientRepo{pool: pool}
}

const clientColumns = `id, realm_id, client_id, client_type, client_secret_hash, redirect_uris,
	web_origins, grant_types, require_consent, backchannel_logout_uri,
	backchannel_logout_session_required, service_account_user_id, default_scopes, optional_scopes,
	created_at, updated_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	var grantTypes []string
	err := row.Scan(&c.ID, &c.RealmID, &c.ClientID, &c.ClientType, &c.ClientSecretHash,
		&c.RedirectURIs, &c.WebOrigins, &grantTypes, &c.RequireConsent, &c.BackchannelLogoutURI,
		&c.BackchannelLogoutSessionRequired, &c.ServiceAccountUserID, &c.DefaultScopes, &c.OptionalScopes,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("failed to scan client: %w", err)
	}
	c.GrantTypes = make([]GrantType, len(grantTypes))
	for i, g := range grantTypes {
		c.GrantTypes[i] = GrantType(g)
	}
	return c, nil
}

// clients carries row-level security (see migrations/000001_init.up.sql),
// so every statement below runs inside a transaction with
// app.current_realm set via WithRealmContext rather than querying the
// pool directly — otherwise the policy's USING clause matches nothing.

func (r *ClientRepo) GetByClientID(ctx context.Context, realmID uuid.UUID, clientID string) (Client, error) {
	var c Client
	err := WithRealmContext(ctx, r.pool, realmID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE realm_id = $1 AND client_id = $2`, realmID, clientID)
		var serr error
		c, serr = scanClient(row)
		return serr
	})
	return c, err
}

func (r *ClientRepo) GetByID(ctx context.Context, realmID, id uuid.UUID) (Client, error) {
	var c Client
	err := WithRealmContext(ctx, r.pool, realmID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE realm_id = $1 AND id = $2`, realmID, id)
		var serr error
		c, serr = scanClient(row)
		return serr
	})
	return c, err
}

func (r *ClientRepo) Create(ctx context.Context, c Client) (Client, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	grantTypes := make([]string, len(c.GrantTypes))
	for i, g := range c.GrantTypes {
		grantTypes[i] = string(g)
	}

	const q = `
		INSERT INTO clients (id, realm_id, client_id, client_type, client_secret_hash, redirect_uris,
			web_origins, grant_types, require_consent, backchannel_logout_uri,
			backchannel_logout_session_required, service_account_user_id, default_scopes, optional_scopes,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14, now(), now())
		RETURNING ` + clientColumns

	var created Client
	err := WithRealmContext(ctx, r.pool, c.RealmID, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, q, c.ID, c.RealmID, c.ClientID, c.ClientType, c.ClientSecretHash,
			c.RedirectURIs, c.WebOrigins, grantTypes, c.RequireConsent, c.BackchannelLogoutURI,
			c.BackchannelLogoutSessionRequired, c.ServiceAccountUserID, c.DefaultScopes, c.OptionalScopes)
		var serr error
		created, serr = scanClient(row)
		return serr
	})
	return created, err
}

// ListBackchannelSubscribers returns every client in the realm with a
// configured backchannel_logout_uri, the set a logout needs to fan out
// to. Clients that never registered a logout URI are excluded in SQL
// rather than filtered by the caller.
func (r *ClientRepo) ListBackchannelSubscribers(ctx context.Context, realmID uuid.UUID) ([]Client, error) {
	var clients []Client
	err := WithRealmContext(ctx, r.pool, realmID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+clientColumns+` FROM clients WHERE realm_id = $1 AND backchannel_logout_uri <> ''`, realmID)
		if err != nil {
			return fmt.Errorf("failed to list backchannel subscribers: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c, serr := scanClient(rows)
			if serr != nil {
				return serr
			}
			clients = append(clients, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list backchannel subscribers: %w", err)
	}
	return clients, nil
}

// RotateSecret replaces a confidential client's secret hash. Called from
// the operator CLI once a client has already been resolved within its
// realm, so the realm context is threaded through rather than bypassing
// RLS entirely.
func (r *ClientRepo) RotateSecret(ctx context.Context, realmID, clientPK uuid.UUID, newHash string) error {
	return WithRealmContext(ctx, r.pool, realmID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE clients SET client_secret_hash = $1, updated_at = now() WHERE id = $2`, newHash, clientPK)
		if err != nil {
			return fmt.Errorf("failed to rotate client secret: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ValidRedirectURI reports whether uri is registered for the client,
// exact match only (the spec makes no allowance for wildcard redirects).
func (c Client) ValidRedirectURI(uri string) bool {
	for _, r := range c.RedirectURIs {
		if r == uri {
			return true
		}
	}
	return false
}
