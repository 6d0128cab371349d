package api

import (
	"errors"
	"html"
	"net/http"
	"net/url"

	"github.com/authme/core/internal/events"
	"github.com/authme/core/internal/mfa"
	"github.com/authme/core/internal/realm"
)

// MFASetupPageHandler starts TOTP enrolment for the logged-in user: it
// generates a fresh secret and renders the otpauth:// URI (and the
// secret itself as a manual fallback) alongside a form to confirm
// possession with one code. The secret is not persisted until
// MFASetupSubmitHandler sees a valid code, so it round-trips through a
// hidden form field rather than server-side state.
func (s *Server) MFASetupPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		_, _, user, ok := s.resolveSession(ctx, r, rlm)
		if !ok {
			http.Redirect(w, r, "/realms/"+rlm.Name+"/login", http.StatusFound)
			return
		}

		pending, err := mfa.CreatePending(rlm.Name, user.Username)
		if err != nil {
			s.Logger.Error("failed to create pending totp enrollment", "error", err, "realm", rlm.Name)
			helpers500(w)
			return
		}
		s.renderMFASetupForm(w, r, http.StatusOK, rlm.Name, pending, "")
	}
}

func (s *Server) renderMFASetupForm(w http.ResponseWriter, r *http.Request, status int, realmName string, pending mfa.PendingEnrollment, errMsg string) {
	hidden := url.Values{"secret": {pending.Secret}}
	fields := `<p>Scan this URI with an authenticator app, or enter the secret manually:</p>
<p><code>` + html.EscapeString(pending.OTPAuthURI) + `</code></p>
<p>Secret: <code>` + html.EscapeString(pending.Secret) + `</code></p>
<label>Authentication code <input type="text" name="code" required autofocus autocomplete="one-time-code"></label><br>
<button type="submit">Enable two-factor authentication</button>`
	renderForm(w, status, "Set up two-factor authentication", "/realms/"+realmName+"/mfa/setup", csrfTokenOf(r), errMsg, hidden, fields)
}

// MFASetupSubmitHandler completes TOTP enrolment: it verifies the
// submitted code against the pending secret carried in the hidden form
// field, then persists the credential and a fresh set of recovery
// codes, shown exactly once.
func (s *Server) MFASetupSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		_, _, user, ok := s.resolveSession(ctx, r, rlm)
		if !ok {
			http.Redirect(w, r, "/realms/"+rlm.Name+"/login", http.StatusFound)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		pending := mfa.PendingEnrollment{Secret: r.FormValue("secret")}
		code := r.FormValue("code")

		codes, err := s.totp.CompleteEnrollment(ctx, user.ID, pending, code)
		if errors.Is(err, mfa.ErrInvalidCode) {
			s.renderMFASetupForm(w, r, http.StatusBadRequest, rlm.Name, pending, "that code didn't match, try again")
			return
		}
		if errors.Is(err, mfa.ErrAlreadySetUp) {
			renderMessage(w, http.StatusConflict, "Already enrolled", "Two-factor authentication is already enabled for this account.")
			return
		}
		if err != nil {
			s.Logger.Error("failed to complete totp enrollment", "error", err, "realm", rlm.Name)
			helpers500(w)
			return
		}

		s.recorder.RecordLoginEvent(ctx, events.LoginEvent{
			RealmID: rlm.ID, Type: events.TypeMFAEnabled, UserID: &user.ID,
		})

		body := "Two-factor authentication is now enabled. Save these recovery codes somewhere safe, they will not be shown again:\n"
		for _, c := range codes {
			body += "\n" + c
		}
		renderMessage(w, http.StatusOK, "Two-factor authentication enabled", body)
	}
}

// MFADisableSubmitHandler removes the logged-in user's TOTP credential
// and recovery codes. Reachable only by a user who already holds a
// valid SSO session, same as the setup endpoints.
func (s *Server) MFADisableSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		_, _, user, ok := s.resolveSession(ctx, r, rlm)
		if !ok {
			http.Redirect(w, r, "/realms/"+rlm.Name+"/login", http.StatusFound)
			return
		}

		if err := s.totp.Disable(ctx, user.ID); err != nil {
			s.Logger.Error("failed to disable totp", "error", err, "realm", rlm.Name)
			helpers500(w)
			return
		}

		s.recorder.RecordLoginEvent(ctx, events.LoginEvent{
			RealmID: rlm.ID, Type: events.TypeMFADisabled, UserID: &user.ID,
		})
		renderMessage(w, http.StatusOK, "Two-factor authentication disabled", "Two-factor authentication has been turned off for this account.")
	}
}
