package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/authme/core/internal/api/helpers"
	"github.com/authme/core/internal/events"
	"github.com/authme/core/internal/mfa"
	"github.com/authme/core/internal/realm"
)

// MFAPageHandler renders the second-factor form for a pending
// mfa.Challenge token, accepting either a TOTP code or a recovery code
// in the same field.
func (s *Server) MFAPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rlm := realm.MustFromContext(r.Context())
		token := r.URL.Query().Get("token")
		if _, err := s.challenges.Get(r.Context(), token); err != nil {
			http.Error(w, "mfa challenge not found or expired, please log in again", http.StatusGone)
			return
		}
		s.renderMFAForm(w, r, http.StatusOK, rlm.Name, token, "")
	}
}

func (s *Server) renderMFAForm(w http.ResponseWriter, r *http.Request, status int, realmName, token, errMsg string) {
	hidden := url.Values{"token": {token}}
	fields := `
<label>Authentication code <input type="text" name="code" required autofocus autocomplete="one-time-code"></label><br>
<button type="submit">Verify</button>`
	renderForm(w, status, "Two-factor verification", "/realms/"+realmName+"/mfa", csrfTokenOf(r), errMsg, hidden, fields)
}

// MFASubmitHandler verifies the submitted code against TOTP first, then
// recovery codes, against the challenge's attempt budget, before
// resuming the authorization flow the challenge was carrying.
func (s *Server) MFASubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		token := r.FormValue("token")
		code := r.FormValue("code")
		ip := helpers.GetRealIP(r)

		ch, err := s.challenges.Get(ctx, token)
		if err != nil {
			http.Error(w, "mfa challenge not found or expired, please log in again", http.StatusGone)
			return
		}

		if aerr := s.challenges.RecordAttempt(ctx, token); aerr != nil {
			s.recorder.RecordLoginEvent(ctx, events.LoginEvent{RealmID: rlm.ID, Type: events.TypeMFAFailed, UserID: &ch.UserID, IP: ip, Error: aerr.Error()})
			http.Error(w, "too many attempts, please log in again", http.StatusTooManyRequests)
			return
		}

		ok, verr := s.totp.VerifyTOTP(ctx, ch.UserID, code)
		if verr != nil && !errors.Is(verr, mfa.ErrNotEnrolled) {
			s.Logger.Error("failed to verify totp", "error", verr, "realm", rlm.Name)
			helpers500(w)
			return
		}
		if !ok {
			ok, verr = s.recoveryCodes.Consume(ctx, ch.UserID, code)
			if verr != nil {
				s.Logger.Error("failed to consume recovery code", "error", verr, "realm", rlm.Name)
				helpers500(w)
				return
			}
		}
		if !ok {
			s.recorder.RecordLoginEvent(ctx, events.LoginEvent{RealmID: rlm.ID, Type: events.TypeMFAFailed, UserID: &ch.UserID, IP: ip, Error: "invalid code"})
			s.renderMFAForm(w, r, http.StatusUnauthorized, rlm.Name, token, "invalid authentication code")
			return
		}

		_ = s.challenges.Invalidate(ctx, token)

		user, uerr := s.users.GetByID(ctx, rlm.ID, ch.UserID)
		if uerr != nil || !user.Enabled {
			http.Error(w, "account disabled", http.StatusForbidden)
			return
		}

		req := authorizeRequestFromParams(ch.OAuthParams)
		next := ch.OAuthParams[nextParamKey]
		s.establishSessionAndResume(ctx, w, r, rlm, user, ip, false, req, next)
	}
}
