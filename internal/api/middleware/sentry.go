package middleware

import "github.com/getsentry/sentry-go"

// SetSentryRealm tags the current request's Sentry scope with the
// resolved realm, so a crash report can be filtered by tenant.
func SetSentryRealm(realmID, realmName string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("realm_id", realmID)
		scope.SetTag("realm_name", realmName)
	})
}

// SetSentryUser attaches the authenticated user to the current request's
// Sentry scope.
func SetSentryUser(userID, ip string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: userID, IPAddress: ip})
	})
}
