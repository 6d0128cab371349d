package store

import (
	"time"

	"github.com/google/uuid"
)

// ClientType distinguishes clients that can hold a secret from those that
// cannot (SPA, native, device).
type ClientType string

const (
	ClientTypeConfidential ClientType = "CONFIDENTIAL"
	ClientTypePublic       ClientType = "PUBLIC"
)

// GrantType is one of the five grants the OAuth/OIDC core dispatches.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantDeviceCode        GrantType = "urn:ietf:params:oauth:grant-type:device_code"
)

// DeviceCodeStatus tracks where a device-flow authorization stands.
type DeviceCodeStatus string

const (
	DeviceCodePending  DeviceCodeStatus = "pending"
	DeviceCodeApproved DeviceCodeStatus = "approved"
	DeviceCodeDenied   DeviceCodeStatus = "denied"
	DeviceCodeExpired  DeviceCodeStatus = "expired"
)

// VerificationTokenType identifies which one-shot flow a token belongs to.
type VerificationTokenType string

const (
	VerificationEmailVerify    VerificationTokenType = "email_verification"
	VerificationPasswordReset  VerificationTokenType = "password_reset"
	VerificationChangePassword VerificationTokenType = "change_password"
)

// PasswordPolicy is the realm's password complexity and rotation policy.
type PasswordPolicy struct {
	MinLength         int
	RequireUppercase  bool
	RequireLowercase  bool
	RequireDigits     bool
	RequireSpecial    bool
	HistoryCount      int
	MaxAgeDays        int // 0 = no expiry
}

// BruteForcePolicy is the realm's login-failure lockout policy.
type BruteForcePolicy struct {
	Enabled               bool
	MaxLoginFailures      int
	LockoutDuration       time.Duration
	FailureResetTime      time.Duration
	PermanentLockoutAfter int // failures; 0 = disabled
}

// Realm is the tenant root. Name is the stable, URL-safe identifier used
// in every request path; it is unique across the whole process.
type Realm struct {
	ID                       uuid.UUID
	Name                     string
	DisplayName              string
	Enabled                  bool
	AccessTokenLifespan      time.Duration
	RefreshTokenLifespan     time.Duration
	OfflineTokenLifespan     time.Duration
	PasswordPolicy           PasswordPolicy
	BruteForcePolicy         BruteForcePolicy
	MFARequired              bool
	RegistrationAllowed      bool
	RequireEmailVerification bool
	SMTPConfig               *SMTPConfig
	Theme                    string
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// SMTPConfig is opaque configuration handed to the mailer; the core never
// dials SMTP itself.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
}

// User is scoped to exactly one realm.
type User struct {
	ID                uuid.UUID
	RealmID           uuid.UUID
	Username           string
	Email              string
	EmailVerified      bool
	FirstName          string
	LastName           string
	Enabled            bool
	PasswordHash       string // Argon2id-encoded; empty when purely federated
	PasswordChangedAt  time.Time
	FederationLink     string // opaque external reference, empty when local
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Client is an OAuth client registered within a realm.
type Client struct {
	ID                               uuid.UUID
	RealmID                          uuid.UUID
	ClientID                         string
	ClientType                       ClientType
	ClientSecretHash                 string // empty for PUBLIC clients
	RedirectURIs                     []string
	WebOrigins                       []string
	GrantTypes                       []GrantType
	RequireConsent                   bool
	BackchannelLogoutURI             string
	BackchannelLogoutSessionRequired bool
	ServiceAccountUserID             *uuid.UUID // non-nil iff client_credentials granted
	DefaultScopes                    []string
	OptionalScopes                   []string
	CreatedAt                        time.Time
	UpdatedAt                        time.Time
}

// SupportsGrant reports whether g is one of the client's configured grant
// types.
func (c Client) SupportsGrant(g GrantType) bool {
	for _, gt := range c.GrantTypes {
		if gt == g {
			return true
		}
	}
	return false
}

// Role is a realm-role (ClientID nil) or a client-role (ClientID set).
type Role struct {
	ID          uuid.UUID
	RealmID     uuid.UUID
	ClientID    *uuid.UUID
	Name        string
	Description string
}

// Group is a node in a realm's group tree; ParentID nil marks a root.
type Group struct {
	ID       uuid.UUID
	RealmID  uuid.UUID
	ParentID *uuid.UUID
	Name     string
	RoleIDs  []uuid.UUID
}

// ClientScope is a named, assignable OAuth scope with attached protocol
// mappers (claim-shaping rules, out of core scope here beyond the name).
type ClientScope struct {
	ID        uuid.UUID
	RealmID   uuid.UUID
	Name      string
	BuiltIn   bool
	Mappers   []ProtocolMapper
}

// ProtocolMapper describes one claim to attach to issued tokens when its
// owning scope is present.
type ProtocolMapper struct {
	Name      string
	ClaimName string
	ClaimType string // "string", "int", "bool", "list"
}

// AuthorizationCode is single-use; Consumed is flipped atomically by the
// store layer via ConsumeAndGet.
type AuthorizationCode struct {
	Code     string
	RealmID  uuid.UUID
	ClientID uuid.UUID
	UserID   uuid.UUID
	// SessionID is the SSO session that was active when the authorize
	// request was approved, so the token endpoint can bind the
	// resulting refresh token to that exact session.
	SessionID     *uuid.UUID
	RedirectURI   string
	Scopes        []string
	Nonce         string
	CodeChallenge string
	CodeChallengeMethod string
	ExpiresAt           time.Time
	Consumed            bool
}

// LoginSession is a browser SSO session. The cookie carries RawToken; only
// TokenHash is ever persisted.
type LoginSession struct {
	ID        uuid.UUID
	RealmID   uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// RefreshToken is bound to a LoginSession. Rotation atomically revokes the
// old row and inserts a new one (see store's RotateRefreshToken).
type RefreshToken struct {
	ID      uuid.UUID
	RealmID uuid.UUID
	// SessionID is nilable: offline tokens keep it only as an origin
	// pointer and the column is cleared, not cascaded, when the SSO
	// session is deleted.
	SessionID uuid.UUID
	UserID    uuid.UUID
	ClientID  uuid.UUID
	TokenHash string
	Scopes    []string
	IsOffline bool
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// DeviceCode is the server-side record of an in-flight device
// authorization grant.
type DeviceCode struct {
	DeviceCode string
	UserCode   string
	RealmID    uuid.UUID
	ClientID   uuid.UUID
	Scopes     []string
	Interval   time.Duration
	ExpiresAt  time.Time
	Status     DeviceCodeStatus
	UserID     *uuid.UUID
}

// UserConsent is the durable record of scopes a user has already granted a
// client; it is consulted to decide whether a consent prompt is needed.
type UserConsent struct {
	UserID    uuid.UUID
	ClientID  uuid.UUID
	Scopes    []string
	GrantedAt time.Time
}

// VerificationToken is a one-shot, hashed token backing email
// verification, password reset, and forced password change.
type VerificationToken struct {
	TokenHash string
	UserID    uuid.UUID
	RealmID   uuid.UUID
	Type      VerificationTokenType
	ExpiresAt time.Time
}

// UserCredentialTOTP is a user's enrolled TOTP factor. EncryptedSecret is
// sealed under the realm's master key before it ever reaches this struct.
type UserCredentialTOTP struct {
	UserID          uuid.UUID
	EncryptedSecret string
	Algorithm       string
	Digits          int
	Period          int
	Enabled         bool
	// LastUsedStep is the Unix-time step index of the most recently
	// accepted code, so a code cannot be replayed within its own
	// validity window once it has been consumed.
	LastUsedStep int64
}

// RecoveryCode is a single MFA backup code; Used is set once it is
// consumed and never cleared.
type RecoveryCode struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	CodeHash string
	Used     bool
}

// PasswordHistory records a prior password hash so the policy can reject
// reuse within PasswordPolicy's configured HistoryCount.
type PasswordHistory struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	RealmID      uuid.UUID
	PasswordHash string
	CreatedAt    time.Time
}

// LoginFailure is one failed credential check, counted by the Brute-Force
// Guard.
type LoginFailure struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	RealmID   uuid.UUID
	IPAddress string
	CreatedAt time.Time
}

// RealmSigningKey is one RSA keypair in a realm's signing-key set. JWKS
// publishes every row with Active = true; PrivateKeyPEM is encrypted at
// rest under the process master key.
type RealmSigningKey struct {
	ID            uuid.UUID
	RealmID       uuid.UUID
	Kid           string
	Algorithm     string
	PublicKeyPEM  string
	PrivateKeyPEM string // "enc:..." — decrypt via internal/crypto before use
	Active        bool
	CreatedAt     time.Time
}
