// Package consent implements the durable UserConsent grant ledger and
// the transient ConsentRequest used to drive the consent-screen
// round-trip during an authorization request.
package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

// ledgerStore is the slice of ConsentRepo the Ledger needs.
type ledgerStore interface {
	Get(ctx context.Context, userID, clientID uuid.UUID) (store.UserConsent, error)
	Grant(ctx context.Context, userID, clientID uuid.UUID, scopes []string) error
	Revoke(ctx context.Context, userID, clientID uuid.UUID) error
}

// Ledger wraps the durable grant record, deciding whether a consent
// prompt can be skipped per spec.md §4.7.
type Ledger struct {
	repo ledgerStore
}

func NewLedger(repo *store.ConsentRepo) *Ledger {
	return &Ledger{repo: repo}
}

// HasConsent reports whether every scope in requested is already covered
// by a prior grant for (userID, clientID).
func (l *Ledger) HasConsent(ctx context.Context, userID, clientID uuid.UUID, requested []string) (bool, error) {
	c, err := l.repo.Get(ctx, userID, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load consent: %w", err)
	}
	return c.HasAll(requested), nil
}

// Grant unions scopes into the existing grant, never narrowing a prior
// broader grant.
func (l *Ledger) Grant(ctx context.Context, userID, clientID uuid.UUID, scopes []string) error {
	if err := l.repo.Grant(ctx, userID, clientID, scopes); err != nil {
		return fmt.Errorf("failed to grant consent: %w", err)
	}
	return nil
}

func (l *Ledger) Revoke(ctx context.Context, userID, clientID uuid.UUID) error {
	if err := l.repo.Revoke(ctx, userID, clientID); err != nil {
		return fmt.Errorf("failed to revoke consent: %w", err)
	}
	return nil
}

const (
	requestTTL      = 10 * time.Minute
	requestKeyPrefix = "consent-request:"
	requestIDBytes  = 16
)

var ErrRequestNotFound = errors.New("consent request not found or expired")

// Request is the transient {userId, clientId, clientName, realmName,
// scopes, oauthParams} record that drives a single consent-screen
// round-trip, per spec.md §3's ConsentRequest entity.
type Request struct {
	UserID      uuid.UUID         `json:"user_id"`
	ClientID    uuid.UUID         `json:"client_id"`
	ClientName  string            `json:"client_name"`
	RealmName   string            `json:"realm_name"`
	Scopes      []string          `json:"scopes"`
	OAuthParams map[string]string `json:"oauth_params"`
}

// Requests stores ConsentRequest objects with single-use, rotate-on-read
// semantics: every successful Get immediately deletes the old id and
// re-stores the same payload under a fresh one, so the consent form's
// hidden id field can never be replayed to skip a later step.
type Requests struct {
	transient store.Transient
}

func NewRequests(transient store.Transient) *Requests {
	return &Requests{transient: transient}
}

// Create stores a new consent request and returns its opaque id.
func (r *Requests) Create(ctx context.Context, req Request) (string, error) {
	id, err := crypto.GenerateSecureToken(requestIDBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate consent request id: %w", err)
	}
	if err := store.PutJSON(ctx, r.transient, requestKeyPrefix+id, req, requestTTL); err != nil {
		return "", fmt.Errorf("failed to store consent request: %w", err)
	}
	return id, nil
}

// Get loads the request for id, deletes it, and re-stores it under a
// freshly generated id so the caller's next round-trip carries a new,
// unguessable-from-the-old-one id. It returns the request and that new
// id; the caller must use the new id for any subsequent Get.
func (r *Requests) Get(ctx context.Context, id string) (Request, string, error) {
	var req Request
	if err := store.GetJSON(ctx, r.transient, requestKeyPrefix+id, &req); err != nil {
		if errors.Is(err, store.ErrTransientNotFound) {
			return Request{}, "", ErrRequestNotFound
		}
		return Request{}, "", fmt.Errorf("failed to load consent request: %w", err)
	}
	if err := r.transient.Delete(ctx, requestKeyPrefix+id); err != nil {
		return Request{}, "", fmt.Errorf("failed to rotate consent request: %w", err)
	}

	newID, err := r.Create(ctx, req)
	if err != nil {
		return Request{}, "", err
	}
	return req, newID, nil
}

// Invalidate deletes a request outright, e.g. once consent has been
// granted or denied and no further round-trip is needed.
func (r *Requests) Invalidate(ctx context.Context, id string) error {
	if err := r.transient.Delete(ctx, requestKeyPrefix+id); err != nil {
		return fmt.Errorf("failed to invalidate consent request: %w", err)
	}
	return nil
}
