// Package api wires the store, session, consent, authn, token, and oidc
// packages into chi HTTP handlers: the realm-scoped OAuth2/OIDC protocol
// endpoints, the browser login/consent/device-verification pages that
// front them, and the process-level /healthz and /metrics surfaces.
// Protocol logic itself lives in internal/oidc; this package only
// parses requests, resolves the per-realm oidc.Core, and renders
// responses.
package api

import (
	"log/slog"
	"net/http"
	"sync"

	custommiddleware "github.com/authme/core/internal/api/middleware"
	"github.com/authme/core/internal/authn"
	"github.com/authme/core/internal/backchannel"
	"github.com/authme/core/internal/consent"
	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/events"
	"github.com/authme/core/internal/mailer"
	"github.com/authme/core/internal/mfa"
	"github.com/authme/core/internal/oidc"
	"github.com/authme/core/internal/realm"
	"github.com/authme/core/internal/session"
	"github.com/authme/core/internal/store"
	"github.com/authme/core/internal/token"
	"github.com/authme/core/internal/verify"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// realmServices is the set of request-handling collaborators that are
// parameterized by a realm's issuer URL: the Token Factory, the OAuth/
// OIDC Core built on top of it, and the backchannel Dispatcher that
// mints logout_tokens with that same issuer. Cached per realm so a
// steady-state request never reconstructs them.
type realmServices struct {
	core       *oidc.Core
	keys       *token.KeySet
	dispatcher *backchannel.Dispatcher
}

// Server holds every collaborator the HTTP layer needs and builds the
// chi router that dispatches to them.
type Server struct {
	Router *chi.Mux
	Pool   *pgxpool.Pool
	Logger *slog.Logger

	baseURL string

	realmResolver *realm.Resolver
	realmRepo     *store.RealmRepo

	clients     *store.ClientRepo
	users       *store.UserRepo
	authCodes   *store.AuthCodeRepo
	deviceCodes *store.DeviceCodeRepo
	signingKeys *store.SigningKeyRepo
	masterKey   crypto.MasterKey

	sessions        *session.Store
	refresher       *session.Refresher
	consent         *consent.Ledger
	consentRequests *consent.Requests
	verifier        *authn.CredentialVerifier
	roles           oidc.RoleResolver
	recorder        *events.Recorder
	challenges      *mfa.Challenges
	totp            *mfa.TOTPEngine
	recoveryCodes   *mfa.RecoveryCodes
	passwordPolicy  *authn.PasswordPolicy
	verifyTokens    *verify.Tokens
	mailer          mailer.EmailSender
	hasher          crypto.PasswordHasher

	mu      sync.RWMutex
	byRealm map[uuid.UUID]*realmServices
}

// Deps bundles every collaborator NewServer needs to wire; a struct
// keeps the constructor readable as the set of dependencies grows, the
// way the teacher's cmd/api/main.go assembles its AuthService before
// handing it to api.NewServer.
type Deps struct {
	Pool        *pgxpool.Pool
	Logger      *slog.Logger
	BaseURL     string
	MasterKey   crypto.MasterKey

	RealmResolver *realm.Resolver
	RealmRepo     *store.RealmRepo
	Clients       *store.ClientRepo
	Users         *store.UserRepo
	AuthCodes     *store.AuthCodeRepo
	DeviceCodes   *store.DeviceCodeRepo
	SigningKeys   *store.SigningKeyRepo

	Sessions        *session.Store
	Refresher       *session.Refresher
	Consent         *consent.Ledger
	ConsentRequests *consent.Requests
	Verifier        *authn.CredentialVerifier
	Roles           oidc.RoleResolver
	Recorder        *events.Recorder
	Challenges      *mfa.Challenges
	TOTP            *mfa.TOTPEngine
	RecoveryCodes   *mfa.RecoveryCodes
	PasswordPolicy  *authn.PasswordPolicy
	VerifyTokens    *verify.Tokens
	Mailer          mailer.EmailSender
	Hasher          crypto.PasswordHasher
}

func NewServer(d Deps) *Server {
	s := &Server{
		Pool:          d.Pool,
		Logger:        d.Logger,
		baseURL:       d.BaseURL,
		realmResolver: d.RealmResolver,
		realmRepo:     d.RealmRepo,
		clients:       d.Clients,
		users:         d.Users,
		authCodes:     d.AuthCodes,
		deviceCodes:   d.DeviceCodes,
		signingKeys:   d.SigningKeys,
		masterKey:     d.MasterKey,
		sessions:        d.Sessions,
		refresher:       d.Refresher,
		consent:         d.Consent,
		consentRequests: d.ConsentRequests,
		verifier:        d.Verifier,
		roles:           d.Roles,
		recorder:        d.Recorder,
		challenges:      d.Challenges,
		totp:            d.TOTP,
		recoveryCodes:   d.RecoveryCodes,
		passwordPolicy:  d.PasswordPolicy,
		verifyTokens:    d.VerifyTokens,
		mailer:          d.Mailer,
		hasher:          d.Hasher,
		byRealm:         make(map[uuid.UUID]*realmServices),
	}
	s.Router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	r.Use(sentryHandler.Handle)

	r.Use(custommiddleware.RequestLogger)
	r.Use(custommiddleware.PanicRecovery)
	r.Use(custommiddleware.Metrics)

	limiter := custommiddleware.NewIPRateLimiter(20, 40)
	r.Use(limiter.Middleware)

	r.Get("/healthz", s.HealthHandler())
	r.Handle("/metrics", s.MetricsHandler())

	r.Route("/realms/{realmName}", func(r chi.Router) {
		r.Use(realm.Middleware(s.realmResolver, s.Logger))
		r.Use(tagSentryRealm)

		r.Get("/.well-known/openid-configuration", s.DiscoveryHandler())
		r.Get("/jwks", s.JWKSHandler())
		r.Get("/auth", s.AuthorizeHandler())
		r.Post("/token", s.TokenHandler())
		r.Post("/token/introspect", s.IntrospectHandler())
		r.Post("/revoke", s.RevokeHandler())
		r.Get("/userinfo", s.UserInfoHandler())
		r.Handle("/logout", s.EndSessionHandler())
		r.Get("/auth/device", s.DeviceAuthorizationHandler())

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.CSRF)
			r.Get("/login", s.LoginPageHandler())
			r.Post("/login", s.LoginSubmitHandler())
			r.Get("/mfa", s.MFAPageHandler())
			r.Post("/mfa", s.MFASubmitHandler())
			r.Get("/consent", s.ConsentPageHandler())
			r.Post("/consent", s.ConsentSubmitHandler())
			r.Get("/device", s.DeviceVerifyPageHandler())
			r.Post("/auth/device/verify", s.DeviceVerifySubmitHandler())

			r.Get("/forgot-password", s.ForgotPasswordPageHandler())
			r.Post("/forgot-password", s.ForgotPasswordSubmitHandler())
			r.Get("/reset-password", s.ResetPasswordPageHandler())
			r.Post("/reset-password", s.ResetPasswordSubmitHandler())

			r.Get("/mfa/setup", s.MFASetupPageHandler())
			r.Post("/mfa/setup", s.MFASetupSubmitHandler())
			r.Post("/mfa/disable", s.MFADisableSubmitHandler())
		})

		r.Get("/verify-email", s.VerifyEmailHandler())
	})

	return r
}

// tagSentryRealm attaches the resolved realm to the request's Sentry
// scope once realm.Middleware has run, so a panic report downstream can
// be filtered by tenant.
func tagSentryRealm(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rlm := realm.MustFromContext(r.Context())
		custommiddleware.SetSentryRealm(rlm.ID.String(), rlm.Name)
		next.ServeHTTP(w, r)
	})
}

// servicesFor returns (creating and caching on first use) the realm-
// scoped collaborators for rlm. Built lazily rather than at startup
// since realms can be created after the process boots.
func (s *Server) servicesFor(rlm store.Realm) *realmServices {
	s.mu.RLock()
	svc, ok := s.byRealm[rlm.ID]
	s.mu.RUnlock()
	if ok {
		return svc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if svc, ok := s.byRealm[rlm.ID]; ok {
		return svc
	}

	issuerURL := s.baseURL + "/realms/" + rlm.Name
	keys := token.NewKeySet(s.signingKeys, s.masterKey)
	issuer := token.NewIssuer(keys, issuerURL)
	dispatcher := backchannel.NewDispatcher(issuer, s.recorder, 4)
	core := oidc.NewCore(s.clients, s.users, s.authCodes, s.deviceCodes,
		s.sessions, s.refresher, s.consent, s.verifier, s.roles,
		dispatcher, issuer, issuerURL)

	svc = &realmServices{core: core, keys: keys, dispatcher: dispatcher}
	s.byRealm[rlm.ID] = svc
	return svc
}
