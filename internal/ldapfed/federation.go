// Package ldapfed defines the contract the Credential Verifier delegates
// to for federated (LDAP-backed) users. LDAP import/sync itself is out of
// core scope; this package only carries the interface and a no-op
// implementation for realms that don't configure federation.
package ldapfed

import "context"

// Verifier binds a username/password pair against an external directory.
// A real implementation lives outside the core and is injected at
// startup; this package supplies only the seam.
type Verifier interface {
	// Verify attempts to bind username/password against the configured
	// directory for a realm. ok is false on any bind failure; err is
	// reserved for infrastructure failures (directory unreachable).
	Verify(ctx context.Context, realmID, username, password string) (ok bool, federationLink string, err error)
}

// NoopVerifier rejects every credential; it is wired in for realms that
// have no federation configured, so the Credential Verifier's federation
// branch always has a non-nil collaborator to call.
type NoopVerifier struct{}

func (NoopVerifier) Verify(ctx context.Context, realmID, username, password string) (bool, string, error) {
	return false, "", nil
}
