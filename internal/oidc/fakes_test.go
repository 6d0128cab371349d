package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/authme/core/internal/backchannel"
	"github.com/authme/core/internal/session"
	"github.com/authme/core/internal/store"
	"github.com/authme/core/internal/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// --- clientStore -----------------------------------------------------

type fakeClients struct {
	byClientID map[string]store.Client
	byID       map[uuid.UUID]store.Client
}

func newFakeClients(clients ...store.Client) *fakeClients {
	f := &fakeClients{byClientID: map[string]store.Client{}, byID: map[uuid.UUID]store.Client{}}
	for _, c := range clients {
		f.byClientID[c.ClientID] = c
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeClients) GetByClientID(ctx context.Context, realmID uuid.UUID, clientID string) (store.Client, error) {
	c, ok := f.byClientID[clientID]
	if !ok {
		return store.Client{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeClients) ListBackchannelSubscribers(ctx context.Context, realmID uuid.UUID) ([]store.Client, error) {
	var out []store.Client
	for _, c := range f.byID {
		if c.BackchannelLogoutURI != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- userStore ---------------------------------------------------------

type fakeUsers struct {
	byID map[uuid.UUID]store.User
}

func newFakeUsers(users ...store.User) *fakeUsers {
	f := &fakeUsers{byID: map[uuid.UUID]store.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, realmID, id uuid.UUID) (store.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

// --- authCodeStore -----------------------------------------------------

type fakeAuthCodes struct {
	codes map[string]store.AuthorizationCode
}

func newFakeAuthCodes() *fakeAuthCodes {
	return &fakeAuthCodes{codes: map[string]store.AuthorizationCode{}}
}

func (f *fakeAuthCodes) Create(ctx context.Context, ac store.AuthorizationCode) error {
	f.codes[ac.Code] = ac
	return nil
}

func (f *fakeAuthCodes) ConsumeAndGet(ctx context.Context, code string) (store.AuthorizationCode, error) {
	ac, ok := f.codes[code]
	if !ok {
		return store.AuthorizationCode{}, store.ErrNotFound
	}
	delete(f.codes, code)
	return ac, nil
}

// --- deviceCodeStore -----------------------------------------------------

type fakeDeviceCodes struct {
	byDeviceCode map[string]store.DeviceCode
}

func newFakeDeviceCodes() *fakeDeviceCodes {
	return &fakeDeviceCodes{byDeviceCode: map[string]store.DeviceCode{}}
}

func (f *fakeDeviceCodes) Create(ctx context.Context, d store.DeviceCode) error {
	f.byDeviceCode[d.DeviceCode] = d
	return nil
}

func (f *fakeDeviceCodes) GetByDeviceCode(ctx context.Context, deviceCode string) (store.DeviceCode, error) {
	d, ok := f.byDeviceCode[deviceCode]
	if !ok {
		return store.DeviceCode{}, store.ErrNotFound
	}
	return d, nil
}

func (f *fakeDeviceCodes) GetByUserCode(ctx context.Context, userCode string) (store.DeviceCode, error) {
	for _, d := range f.byDeviceCode {
		if d.UserCode == userCode {
			return d, nil
		}
	}
	return store.DeviceCode{}, store.ErrNotFound
}

func (f *fakeDeviceCodes) Approve(ctx context.Context, userCode string, userID uuid.UUID) error {
	for k, d := range f.byDeviceCode {
		if d.UserCode == userCode {
			d.Status = store.DeviceCodeApproved
			d.UserID = &userID
			f.byDeviceCode[k] = d
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeDeviceCodes) Deny(ctx context.Context, userCode string) error {
	for k, d := range f.byDeviceCode {
		if d.UserCode == userCode {
			d.Status = store.DeviceCodeDenied
			f.byDeviceCode[k] = d
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeDeviceCodes) Delete(ctx context.Context, deviceCode string) error {
	delete(f.byDeviceCode, deviceCode)
	return nil
}

// --- sessionStore -----------------------------------------------------

type fakeSessions struct {
	ended map[uuid.UUID]bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{ended: map[uuid.UUID]bool{}}
}

func (f *fakeSessions) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	f.ended[sessionID] = true
	return nil
}

// --- refresher -----------------------------------------------------

type fakeRefresher struct {
	tokens    map[string]store.RefreshToken
	consumed  map[string]store.RefreshToken // already rotated away; re-presenting one is a replay
	revoked   map[uuid.UUID]bool
	issueErr  error
	rotateErr error
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{
		tokens:   map[string]store.RefreshToken{},
		consumed: map[string]store.RefreshToken{},
		revoked:  map[uuid.UUID]bool{},
	}
}

func (f *fakeRefresher) Issue(ctx context.Context, realmID, sessionID, userID, clientID uuid.UUID, scopes []string, lifetime time.Duration, isOffline bool) (string, store.RefreshToken, error) {
	if f.issueErr != nil {
		return "", store.RefreshToken{}, f.issueErr
	}
	raw := "rt-" + uuid.NewString()
	rt := store.RefreshToken{
		ID: uuid.New(), RealmID: realmID, SessionID: sessionID, UserID: userID, ClientID: clientID,
		Scopes: scopes, IsOffline: isOffline, ExpiresAt: time.Now().Add(lifetime),
	}
	f.tokens[raw] = rt
	return raw, rt, nil
}

func (f *fakeRefresher) Peek(ctx context.Context, rawToken string) (store.RefreshToken, error) {
	if rt, ok := f.tokens[rawToken]; ok {
		return rt, nil
	}
	// A token already rotated away still resolves here (its row is kept,
	// just marked consumed), so a caller can learn its SessionID to
	// revoke the family on replay.
	if rt, ok := f.consumed[rawToken]; ok {
		return rt, nil
	}
	return store.RefreshToken{}, store.ErrNotFound
}

func (f *fakeRefresher) Rotate(ctx context.Context, rawToken string, clientID uuid.UUID, scopes []string, lifetime time.Duration) (string, store.RefreshToken, error) {
	if f.rotateErr != nil {
		return "", store.RefreshToken{}, f.rotateErr
	}
	if _, ok := f.consumed[rawToken]; ok {
		return "", store.RefreshToken{}, session.ErrReused
	}
	old, ok := f.tokens[rawToken]
	if !ok {
		return "", store.RefreshToken{}, store.ErrNotFound
	}
	delete(f.tokens, rawToken)
	f.consumed[rawToken] = old
	if len(scopes) == 0 {
		scopes = old.Scopes
	}
	next := store.RefreshToken{
		ID: uuid.New(), RealmID: old.RealmID, SessionID: old.SessionID, UserID: old.UserID,
		ClientID: clientID, Scopes: scopes, IsOffline: old.IsOffline, ExpiresAt: time.Now().Add(lifetime),
	}
	raw := "rt-" + uuid.NewString()
	f.tokens[raw] = next
	return raw, next, nil
}

func (f *fakeRefresher) Revoke(ctx context.Context, rawToken string) error {
	delete(f.tokens, rawToken)
	return nil
}

func (f *fakeRefresher) RevokeSessionFamily(ctx context.Context, sessionID uuid.UUID) error {
	f.revoked[sessionID] = true
	for raw, rt := range f.tokens {
		if rt.SessionID == sessionID {
			delete(f.tokens, raw)
		}
	}
	return nil
}

// --- consentLedger -----------------------------------------------------

type fakeConsent struct {
	has    bool
	hasErr error
}

func (f *fakeConsent) HasConsent(ctx context.Context, userID, clientID uuid.UUID, requested []string) (bool, error) {
	return f.has, f.hasErr
}

// --- credentialVerifier -----------------------------------------------------

type fakeVerifier struct {
	user store.User
	err  error
}

func (f *fakeVerifier) Verify(ctx context.Context, realm store.Realm, username, password, ip string) (store.User, error) {
	return f.user, f.err
}

// --- tokenIssuer -----------------------------------------------------

// fakeIssuer mints deterministic, unsigned placeholder strings and keeps
// the claims they were minted with in memory so Verify can resolve them
// back, without ever touching RSA keys or a real signer.
type fakeIssuer struct {
	minted  map[string]*token.Claims
	mintErr error
}

func newFakeIssuer() *fakeIssuer {
	return &fakeIssuer{minted: map[string]*token.Claims{}}
}

func (f *fakeIssuer) Mint(ctx context.Context, realmID uuid.UUID, subject string, audience []string, ttl time.Duration, claims token.Claims) (string, error) {
	if f.mintErr != nil {
		return "", f.mintErr
	}
	claims.RealmID = realmID
	claims.Subject = subject
	claims.Audience = jwt.ClaimStrings(audience)
	tok := fmt.Sprintf("tok-%s", uuid.NewString())
	c := claims
	f.minted[tok] = &c
	return tok, nil
}

func (f *fakeIssuer) Verify(ctx context.Context, realmID uuid.UUID, tokenString string) (*token.Claims, error) {
	c, ok := f.minted[tokenString]
	if !ok {
		return nil, token.ErrInvalidToken
	}
	return c, nil
}

// --- dispatcher -----------------------------------------------------

type fakeDispatcher struct {
	calls []struct {
		sid     string
		targets []backchannel.Target
	}
}

func (f *fakeDispatcher) Notify(ctx context.Context, sid string, targets []backchannel.Target) {
	f.calls = append(f.calls, struct {
		sid     string
		targets []backchannel.Target
	}{sid, targets})
}
