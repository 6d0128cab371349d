// Package authn is the credential-checking core: the Credential Verifier,
// the Brute-Force Guard, and the Password Policy, wired together the way
// an interactive login exercises them (verify → policy → guard).
package authn

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account locked")
	ErrAccountDisabled     = errors.New("account disabled")
)
