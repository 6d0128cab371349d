// Command api runs the authme OAuth2/OIDC identity provider: the realm-
// scoped protocol endpoints and the browser pages that front them.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authme/core/internal/api"
	"github.com/authme/core/internal/authn"
	"github.com/authme/core/internal/config"
	"github.com/authme/core/internal/consent"
	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/events"
	"github.com/authme/core/internal/ldapfed"
	"github.com/authme/core/internal/mailer"
	"github.com/authme/core/internal/mfa"
	"github.com/authme/core/internal/oidc"
	"github.com/authme/core/internal/realm"
	"github.com/authme/core/internal/session"
	"github.com/authme/core/internal/store"
	"github.com/authme/core/internal/verify"
	"github.com/authme/core/pkg/logger"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
)

func main() {
	// Config files are optional: in production we rely on the platform's
	// own env var injection, so a missing .env is not fatal.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// The logger isn't set up yet; this is the one place we fall
		// back to the standard logger.
		os.Stderr.WriteString("config_load_failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.Setup(cfg.Env)
	log.Info("application_startup", "env", cfg.Env)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
			Environment:      cfg.Env,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	ctx := context.Background()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database_connect_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("database_connected")

	var masterKey crypto.MasterKey
	if cfg.MasterKeyHex != "" {
		masterKey, err = crypto.ParseMasterKey(cfg.MasterKeyHex)
		if err != nil {
			log.Error("master_key_parse_failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("master_key_missing", "details", "dev_mode_unsafe_generating_ephemeral_key")
		generated, genErr := crypto.GenerateMasterKey()
		if genErr != nil {
			log.Error("master_key_generate_failed", "error", genErr)
			os.Exit(1)
		}
		masterKey, _ = crypto.ParseMasterKey(generated)
	}

	// Repositories
	realmRepo := store.NewRealmRepo(pool)
	clientRepo := store.NewClientRepo(pool)
	userRepo := store.NewUserRepo(pool)
	authCodeRepo := store.NewAuthCodeRepo(pool)
	deviceCodeRepo := store.NewDeviceCodeRepo(pool)
	signingKeyRepo := store.NewSigningKeyRepo(pool)
	sessionRepo := store.NewSessionRepo(pool)
	consentRepo := store.NewConsentRepo(pool)
	credentialRepo := store.NewCredentialRepo(pool)
	eventRepo := store.NewEventRepo(pool)
	verificationRepo := store.NewVerificationRepo(pool)

	var transient store.Transient
	if cfg.RedisURL != "" {
		redisStore, rerr := store.NewTransientRedisStore(cfg.RedisURL)
		if rerr != nil {
			log.Error("redis_connect_failed", "error", rerr)
			os.Exit(1)
		}
		transient = redisStore
		log.Info("transient_store_backend", "backend", "redis")
	} else {
		transient = store.NewTransientPostgresStore(pool)
		log.Info("transient_store_backend", "backend", "postgres")
	}

	// Domain services
	realmResolver := realm.NewResolver(realmRepo)
	hasher := crypto.NewArgon2idHasher()
	bruteForceGuard := authn.NewBruteForceGuard(credentialRepo)
	verifier := authn.NewCredentialVerifier(userRepo, bruteForceGuard, hasher, ldapfed.NoopVerifier{})

	sessionStore := session.NewStore(sessionRepo)
	refresher := session.NewRefresher(sessionRepo)

	consentLedger := consent.NewLedger(consentRepo)
	consentRequests := consent.NewRequests(transient)

	challenges := mfa.NewChallenges(transient)
	totpEngine := mfa.NewTOTPEngine(credentialRepo, masterKey)
	recoveryCodes := mfa.NewRecoveryCodes(credentialRepo)

	recorder := events.NewRecorder(eventRepo, log)

	passwordPolicy := authn.NewPasswordPolicy(credentialRepo, hasher)
	verifyTokens := verify.NewTokens(verificationRepo)
	emailSender := &mailer.LoggingMailer{Logger: log}

	server := api.NewServer(api.Deps{
		Pool:      pool,
		Logger:    log,
		BaseURL:   cfg.BaseURL,
		MasterKey: masterKey,

		RealmResolver: realmResolver,
		RealmRepo:     realmRepo,
		Clients:       clientRepo,
		Users:         userRepo,
		AuthCodes:     authCodeRepo,
		DeviceCodes:   deviceCodeRepo,
		SigningKeys:   signingKeyRepo,

		Sessions:        sessionStore,
		Refresher:       refresher,
		Consent:         consentLedger,
		ConsentRequests: consentRequests,
		Verifier:        verifier,
		Roles:           oidc.NoRoles{},
		Recorder:        recorder,
		Challenges:      challenges,
		TOTP:            totpEngine,
		RecoveryCodes:   recoveryCodes,
		PasswordPolicy:  passwordPolicy,
		VerifyTokens:    verifyTokens,
		Mailer:          emailSender,
		Hasher:          hasher,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}

		pool.Close()
		log.Info("database_pool_closed")
		log.Info("server_shutdown_complete")
	}
}
