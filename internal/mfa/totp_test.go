package mfa

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTOTPStore struct {
	creds map[uuid.UUID]store.UserCredentialTOTP
}

func newFakeTOTPStore() *fakeTOTPStore {
	return &fakeTOTPStore{creds: make(map[uuid.UUID]store.UserCredentialTOTP)}
}

func (f *fakeTOTPStore) GetTOTP(_ context.Context, userID uuid.UUID) (store.UserCredentialTOTP, error) {
	c, ok := f.creds[userID]
	if !ok {
		return store.UserCredentialTOTP{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeTOTPStore) UpsertTOTP(_ context.Context, c store.UserCredentialTOTP) error {
	f.creds[c.UserID] = c
	return nil
}

func (f *fakeTOTPStore) DeleteTOTP(_ context.Context, userID uuid.UUID) error {
	delete(f.creds, userID)
	return nil
}

func (f *fakeTOTPStore) ReplaceRecoveryCodes(_ context.Context, _ uuid.UUID, _ []string) error {
	return nil
}

func (f *fakeTOTPStore) AdvanceTOTPStep(_ context.Context, userID uuid.UUID, step int64) (bool, error) {
	c, ok := f.creds[userID]
	if !ok {
		return false, store.ErrNotFound
	}
	if step <= c.LastUsedStep {
		return false, nil
	}
	c.LastUsedStep = step
	f.creds[userID] = c
	return true, nil
}

func testMasterKey(t *testing.T) crypto.MasterKey {
	t.Helper()
	hexKey, err := crypto.GenerateMasterKey()
	require.NoError(t, err)
	key, err := crypto.ParseMasterKey(hexKey)
	require.NoError(t, err)
	return key
}

func TestCreatePending_ProducesOTPAuthURI(t *testing.T) {
	pending, err := CreatePending("authme", "alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, pending.Secret)
	assert.True(t, strings.HasPrefix(pending.OTPAuthURI, "otpauth://totp/"))
	assert.Contains(t, pending.OTPAuthURI, "authme")
}

func TestTOTPEngine_CompleteEnrollment(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTOTPStore()
	engine := &TOTPEngine{credentials: fake, masterKey: testMasterKey(t)}

	pending, err := CreatePending("authme", "alice@example.com")
	require.NoError(t, err)

	code, err := totp.GenerateCode(pending.Secret, time.Now())
	require.NoError(t, err)

	userID := uuid.New()
	codes, err := engine.CompleteEnrollment(ctx, userID, pending, code)
	require.NoError(t, err)
	assert.Len(t, codes, codeCount)

	stored := fake.creds[userID]
	assert.True(t, stored.Enabled)
	assert.NotEqual(t, pending.Secret, stored.EncryptedSecret, "secret must be encrypted at rest")
}

func TestTOTPEngine_CompleteEnrollment_WrongCode(t *testing.T) {
	engine := &TOTPEngine{credentials: newFakeTOTPStore(), masterKey: testMasterKey(t)}
	pending, err := CreatePending("authme", "alice@example.com")
	require.NoError(t, err)

	_, err = engine.CompleteEnrollment(context.Background(), uuid.New(), pending, "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestTOTPEngine_CompleteEnrollment_AlreadyEnrolled(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTOTPStore()
	key := testMasterKey(t)
	engine := &TOTPEngine{credentials: fake, masterKey: key}

	userID := uuid.New()
	fake.creds[userID] = store.UserCredentialTOTP{UserID: userID, Enabled: true, EncryptedSecret: "enc:whatever"}

	pending, err := CreatePending("authme", "alice@example.com")
	require.NoError(t, err)
	code, err := totp.GenerateCode(pending.Secret, time.Now())
	require.NoError(t, err)

	_, err = engine.CompleteEnrollment(ctx, userID, pending, code)
	assert.ErrorIs(t, err, ErrAlreadySetUp)
}

func TestTOTPEngine_VerifyTOTP_AcceptsCurrentWindow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTOTPStore()
	key := testMasterKey(t)
	engine := &TOTPEngine{credentials: fake, masterKey: key}

	secret := "JBSWY3DPEHPK3PXP"
	encrypted, err := crypto.Encrypt(key, secret)
	require.NoError(t, err)
	userID := uuid.New()
	fake.creds[userID] = store.UserCredentialTOTP{UserID: userID, EncryptedSecret: encrypted, Enabled: true, Period: 30, Digits: 6}

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	ok, err := engine.VerifyTOTP(ctx, userID, code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTOTPEngine_VerifyTOTP_RejectsReplay(t *testing.T) {
	ctx := context.Background()
	fake := newFakeTOTPStore()
	key := testMasterKey(t)
	engine := &TOTPEngine{credentials: fake, masterKey: key}

	secret := "JBSWY3DPEHPK3PXP"
	encrypted, err := crypto.Encrypt(key, secret)
	require.NoError(t, err)
	userID := uuid.New()
	fake.creds[userID] = store.UserCredentialTOTP{UserID: userID, EncryptedSecret: encrypted, Enabled: true, Period: 30, Digits: 6}

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	ok, err := engine.VerifyTOTP(ctx, userID, code)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.VerifyTOTP(ctx, userID, code)
	require.NoError(t, err)
	assert.False(t, ok, "the same code must not validate twice")
}

func TestTOTPEngine_VerifyTOTP_NotEnrolled(t *testing.T) {
	engine := &TOTPEngine{credentials: newFakeTOTPStore(), masterKey: testMasterKey(t)}
	_, err := engine.VerifyTOTP(context.Background(), uuid.New(), "123456")
	assert.ErrorIs(t, err, ErrNotEnrolled)
}
