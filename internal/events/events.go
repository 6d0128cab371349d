// Package events implements the Events Recorder: non-blocking append of
// login and admin events onto a bounded async queue, plus the retention
// sweep that deletes expired rows.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

// Type is the event_type column value. The vocabulary widens the
// teacher's ad hoc EventType strings into the login/admin split spec.md
// §4.12 describes.
type Type string

const (
	TypeLoginSuccess            Type = "LOGIN_SUCCESS"
	TypeLoginFailed             Type = "LOGIN_FAILED"
	TypeLogout                  Type = "LOGOUT"
	TypeMFAChallenge            Type = "MFA_CHALLENGE"
	TypeMFAFailed               Type = "MFA_FAILED"
	TypeTokenRefresh            Type = "TOKEN_REFRESH"
	TypeTokenReuseDetected      Type = "TOKEN_REUSE_DETECTED"
	TypeBackchannelLogoutFailed Type = "BACKCHANNEL_LOGOUT_FAILED"
	TypePasswordReset           Type = "ADMIN_PASSWORD_RESET"
	TypeUserDisabled            Type = "ADMIN_USER_DISABLED"
	TypeClientUpdated           Type = "ADMIN_CLIENT_UPDATED"
	TypeRealmUpdated            Type = "ADMIN_REALM_UPDATED"
	TypeSelfServicePasswordReset Type = "PASSWORD_RESET_COMPLETED"
	TypeEmailVerified            Type = "EMAIL_VERIFIED"
	TypeMFAEnabled               Type = "MFA_ENABLED"
	TypeMFADisabled              Type = "MFA_DISABLED"
)

const queueDepth = 1024

// eventStore is the slice of EventRepo a Recorder needs.
type eventStore interface {
	Insert(ctx context.Context, e store.Event) error
	DeleteExpired(ctx context.Context, realmID uuid.UUID, retention time.Duration) (int64, error)
}

// Recorder appends events without ever blocking the caller: Record
// enqueues onto a bounded channel drained by a single background worker,
// and silently drops on overflow (events are the lowest-priority item in
// the scheduling model, dropped before backchannel-logout notifications
// and before email).
type Recorder struct {
	repo   eventStore
	logger *slog.Logger
	queue  chan store.Event
}

func NewRecorder(repo *store.EventRepo, logger *slog.Logger) *Recorder {
	r := &Recorder{repo: repo, logger: logger, queue: make(chan store.Event, queueDepth)}
	go r.worker()
	return r
}

func (r *Recorder) worker() {
	for e := range r.queue {
		if err := r.repo.Insert(context.Background(), e); err != nil {
			r.logger.Error("failed to persist event", "event_type", e.EventType, "error", err)
		}
	}
}

func (r *Recorder) enqueue(e store.Event) {
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("event queue full, dropping event", "event_type", e.EventType, "realm_id", e.RealmID)
	}
}

func marshalDetails(details map[string]string) []byte {
	if len(details) == 0 {
		return []byte("{}")
	}
	b, err := json.Marshal(details)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// LoginEvent is the input to RecordLoginEvent.
type LoginEvent struct {
	RealmID  uuid.UUID
	Type     Type
	UserID   *uuid.UUID
	ClientID string
	IP       string
	Error    string
}

func (r *Recorder) RecordLoginEvent(ctx context.Context, ev LoginEvent) {
	details := map[string]string{}
	if ev.Error != "" {
		details["error"] = ev.Error
	}
	r.enqueue(store.Event{
		RealmID:   ev.RealmID,
		EventType: string(ev.Type),
		UserID:    ev.UserID,
		ClientID:  ev.ClientID,
		IPAddress: ev.IP,
		Details:   marshalDetails(details),
	})
}

// AdminEvent is the input to RecordAdminEvent.
type AdminEvent struct {
	RealmID  uuid.UUID
	Type     Type
	ActorID  *uuid.UUID
	Resource string
	Details  map[string]string
}

func (r *Recorder) RecordAdminEvent(ctx context.Context, ev AdminEvent) {
	details := make(map[string]string, len(ev.Details)+1)
	for k, v := range ev.Details {
		details[k] = v
	}
	if ev.Resource != "" {
		details["resource"] = ev.Resource
	}
	r.enqueue(store.Event{
		RealmID:   ev.RealmID,
		EventType: string(ev.Type),
		UserID:    ev.ActorID,
		Details:   marshalDetails(details),
	})
}

// RecordBackchannelLogoutFailure implements internal/backchannel's
// EventRecorder interface, so a Dispatcher can be handed a Recorder
// directly without this package importing internal/backchannel.
func (r *Recorder) RecordBackchannelLogoutFailure(ctx context.Context, realmID, clientID uuid.UUID, sid string, err error) {
	r.enqueue(store.Event{
		RealmID:   realmID,
		EventType: string(TypeBackchannelLogoutFailed),
		ClientID:  clientID.String(),
		Details:   marshalDetails(map[string]string{"sid": sid, "error": err.Error()}),
	})
}

// SweepExpired deletes events past realmID's configured retention. It runs
// only when called; nothing in this repository schedules it.
func (r *Recorder) SweepExpired(ctx context.Context, realmID uuid.UUID, retention time.Duration) (int64, error) {
	return r.repo.DeleteExpired(ctx, realmID, retention)
}
