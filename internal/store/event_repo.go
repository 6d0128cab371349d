package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is an append-only login or admin event row, per spec.md §4.12.
type Event struct {
	ID        uuid.UUID
	RealmID   uuid.UUID
	EventType string
	UserID    *uuid.UUID
	ClientID  string
	IPAddress string
	Details   []byte // JSONB
	CreatedAt time.Time
}

type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) Insert(ctx context.Context, e Event) error {
	const q = `
		INSERT INTO events (realm_id, event_type, user_id, client_id, ip_address, details, created_at)
		VALUES ($1,$2,$3,$4,$5,$6, now())`
	_, err := r.pool.Exec(ctx, q, e.RealmID, e.EventType, e.UserID, e.ClientID, e.IPAddress, e.Details)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// DeleteExpired sweeps events older than retention for realmID, per the
// realm's configured eventsExpiration.
func (r *EventRepo) DeleteExpired(ctx context.Context, realmID uuid.UUID, retention time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM events WHERE realm_id = $1 AND created_at < $2`,
		realmID, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByRealm returns the most recent events for a realm, newest first,
// bounded by limit, for the admin events surface.
func (r *EventRepo) ListByRealm(ctx context.Context, realmID uuid.UUID, limit int) ([]Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, realm_id, event_type, user_id, client_id, ip_address, details, created_at
		 FROM events WHERE realm_id = $1 ORDER BY created_at DESC LIMIT $2`, realmID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RealmID, &e.EventType, &e.UserID, &e.ClientID, &e.IPAddress, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
