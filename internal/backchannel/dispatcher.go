// Package backchannel delivers OpenID Connect Back-Channel Logout 1.0
// notifications to relying parties when an SSO session ends. Delivery is
// detached from the request that triggered it: Notify enqueues and
// returns immediately, and a bounded pool of workers does the actual
// HTTP POST with retry/backoff in the background.
package backchannel

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/authme/core/internal/token"
	"github.com/google/uuid"
)

const (
	maxAttempts  = 3
	baseBackoff  = 1 * time.Second
	postTimeout  = 5 * time.Second
	queueDepth   = 256
)

// EventRecorder is the slice of the events recorder a Dispatcher needs.
// internal/events.Recorder satisfies it; kept as a narrow interface here
// so this package never imports internal/events directly.
type EventRecorder interface {
	RecordBackchannelLogoutFailure(ctx context.Context, realmID, clientID uuid.UUID, sid string, err error)
}

// noopRecorder is used when the caller doesn't wire a recorder (e.g. in
// tests), so a nil check isn't needed on every failure path.
type noopRecorder struct{}

func (noopRecorder) RecordBackchannelLogoutFailure(context.Context, uuid.UUID, uuid.UUID, string, error) {
}

// Target is one client to notify that session sid ended.
type Target struct {
	RealmID  uuid.UUID
	ClientID uuid.UUID
	URI      string
	Subject  string // user id the session belonged to
}

type job struct {
	target Target
	sid    string
}

// tokenMinter is the slice of token.Issuer a Dispatcher needs, narrowed
// so package tests can mint fake logout tokens without a real signing
// key store.
type tokenMinter interface {
	Mint(ctx context.Context, realmID uuid.UUID, subject string, audience []string, ttl time.Duration, claims token.Claims) (string, error)
}

// Dispatcher fans out logout_token deliveries across a bounded worker
// pool so a slow or dead client endpoint never backs up the request path
// that triggered the logout.
type Dispatcher struct {
	issuer   tokenMinter
	client   *http.Client
	recorder EventRecorder
	jobs     chan job
}

// NewDispatcher starts workerCount background workers draining the
// dispatch queue. Call Close to stop them.
func NewDispatcher(issuer *token.Issuer, recorder EventRecorder, workerCount int) *Dispatcher {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if workerCount < 1 {
		workerCount = 1
	}
	d := &Dispatcher{
		issuer:   issuer,
		client:   &http.Client{Timeout: postTimeout},
		recorder: recorder,
		jobs:     make(chan job, queueDepth),
	}
	for i := 0; i < workerCount; i++ {
		go d.worker()
	}
	return d
}

// Notify enqueues a backchannel logout notification for every target.
// Queue overflow drops the notification after logging it as a dropped
// event — per the scheduling model, backchannel logout is the
// higher-priority queue item relative to ordinary events and is dropped
// last, but an unbounded queue isn't an option either.
func (d *Dispatcher) Notify(ctx context.Context, sid string, targets []Target) {
	for _, t := range targets {
		if t.URI == "" {
			continue
		}
		select {
		case d.jobs <- job{target: t, sid: sid}:
		default:
			d.recorder.RecordBackchannelLogoutFailure(ctx, t.RealmID, t.ClientID, sid,
				fmt.Errorf("backchannel logout queue full, notification dropped"))
		}
	}
}

// Close stops accepting new notifications. Already-queued jobs still in
// flight are allowed to drain by the caller closing the channel only
// after it stops sending; in practice the process exits shortly after,
// so workers are daemon goroutines rather than joined here.
func (d *Dispatcher) Close() {
	close(d.jobs)
}

func (d *Dispatcher) worker() {
	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx := context.Background()
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(baseBackoff * time.Duration(1<<uint(attempt-1)))
		}
		if err := d.attempt(ctx, j); err != nil {
			lastErr = err
			continue
		}
		return
	}
	d.recorder.RecordBackchannelLogoutFailure(ctx, j.target.RealmID, j.target.ClientID, j.sid, lastErr)
}

func (d *Dispatcher) attempt(ctx context.Context, j job) error {
	logoutToken, err := d.issuer.Mint(ctx, j.target.RealmID, j.target.Subject, []string{j.target.ClientID.String()},
		2*time.Minute, token.Claims{
			SID:    j.sid,
			Events: map[string]struct{}{token.BackchannelLogoutEvent: {}},
		})
	if err != nil {
		return fmt.Errorf("failed to mint logout token: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	body := bytes.NewBufferString("logout_token=" + logoutToken)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, j.target.URI, body)
	if err != nil {
		return fmt.Errorf("failed to build backchannel logout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("backchannel logout POST failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backchannel logout endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
