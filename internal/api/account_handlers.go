package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/authme/core/internal/events"
	"github.com/authme/core/internal/realm"
	"github.com/authme/core/internal/store"
	"github.com/authme/core/internal/verify"
)

// ForgotPasswordPageHandler renders the form a user lands on to request a
// password-reset link.
func (s *Server) ForgotPasswordPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rlm := realm.MustFromContext(r.Context())
		s.renderForgotPasswordForm(w, r, http.StatusOK, rlm.Name, "")
	}
}

func (s *Server) renderForgotPasswordForm(w http.ResponseWriter, r *http.Request, status int, realmName, errMsg string) {
	fields := `<label>Username or email <input type="text" name="username" required autofocus></label><br>
<button type="submit">Send reset link</button>`
	renderForm(w, status, "Forgot password", "/realms/"+realmName+"/forgot-password", csrfTokenOf(r), errMsg, url.Values{}, fields)
}

// ForgotPasswordSubmitHandler issues a password-reset token for the named
// user and hands it to the mailer. It always responds the same way
// whether or not the username exists, so the endpoint cannot be used to
// enumerate accounts.
func (s *Server) ForgotPasswordSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		identifier := r.FormValue("username")
		user, err := s.users.GetByUsername(ctx, rlm.ID, identifier)
		if errors.Is(err, store.ErrNotFound) {
			user, err = s.users.GetByEmail(ctx, rlm.ID, identifier)
		}
		switch {
		case errors.Is(err, store.ErrNotFound):
			// fall through to the generic response below
		case err != nil:
			s.Logger.Error("failed to look up user for password reset", "error", err, "realm", rlm.Name)
			helpers500(w)
			return
		default:
			token, ierr := s.verifyTokens.Issue(ctx, rlm.ID, user.ID, store.VerificationPasswordReset)
			if ierr != nil {
				s.Logger.Error("failed to issue password reset token", "error", ierr, "realm", rlm.Name)
				helpers500(w)
				return
			}
			if merr := s.mailer.SendPasswordReset(ctx, user.Email, token, s.baseURL+"/realms/"+rlm.Name); merr != nil {
				s.Logger.Error("failed to send password reset email", "error", merr, "realm", rlm.Name)
			}
		}

		renderMessage(w, http.StatusOK, "Check your email", "If an account with that username exists, a password reset link has been sent.")
	}
}

// ResetPasswordPageHandler renders the new-password form, carrying the
// raw token from the emailed link as a hidden field.
func (s *Server) ResetPasswordPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rlm := realm.MustFromContext(r.Context())
		token := r.URL.Query().Get("token")
		s.renderResetPasswordForm(w, r, http.StatusOK, rlm.Name, token, "")
	}
}

func (s *Server) renderResetPasswordForm(w http.ResponseWriter, r *http.Request, status int, realmName, token, errMsg string) {
	hidden := url.Values{"token": {token}}
	fields := `<label>New password <input type="password" name="new_password" required autofocus></label><br>
<button type="submit">Reset password</button>`
	renderForm(w, status, "Reset password", "/realms/"+realmName+"/reset-password", csrfTokenOf(r), errMsg, hidden, fields)
}

// ResetPasswordSubmitHandler consumes a password-reset token, enforces
// the realm's password policy and history, and updates the user's
// credential.
func (s *Server) ResetPasswordSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		rawToken := r.FormValue("token")
		newPassword := r.FormValue("new_password")

		v, err := s.verifyTokens.Consume(ctx, rawToken, store.VerificationPasswordReset)
		if errors.Is(err, verify.ErrInvalidToken) {
			s.renderResetPasswordForm(w, r, http.StatusBadRequest, rlm.Name, rawToken, "this reset link is invalid or has expired")
			return
		}
		if err != nil {
			s.Logger.Error("failed to consume password reset token", "error", err, "realm", rlm.Name)
			helpers500(w)
			return
		}

		if valid, violations := s.passwordPolicy.Validate(rlm.PasswordPolicy, newPassword); !valid {
			s.renderResetPasswordForm(w, r, http.StatusBadRequest, rlm.Name, rawToken, violations[0])
			return
		}

		reused, err := s.passwordPolicy.CheckHistory(ctx, v.UserID, newPassword, rlm.PasswordPolicy.HistoryCount)
		if err != nil {
			s.Logger.Error("failed to check password history", "error", err, "realm", rlm.Name)
			helpers500(w)
			return
		}
		if reused {
			s.renderResetPasswordForm(w, r, http.StatusBadRequest, rlm.Name, rawToken, "password was used too recently, choose a different one")
			return
		}

		user, err := s.users.GetByID(ctx, rlm.ID, v.UserID)
		if err != nil {
			s.Logger.Error("failed to load user for password reset", "error", err, "realm", rlm.Name)
			helpers500(w)
			return
		}

		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			s.Logger.Error("failed to hash new password", "error", err, "realm", rlm.Name)
			helpers500(w)
			return
		}

		if err := s.users.UpdatePassword(ctx, rlm.ID, v.UserID, hash); err != nil {
			s.Logger.Error("failed to update password", "error", err, "realm", rlm.Name)
			helpers500(w)
			return
		}
		if err := s.passwordPolicy.RecordHistory(ctx, v.UserID, rlm.ID, user.PasswordHash, rlm.PasswordPolicy.HistoryCount); err != nil {
			s.Logger.Error("failed to record password history", "error", err, "realm", rlm.Name)
		}

		s.recorder.RecordLoginEvent(ctx, events.LoginEvent{
			RealmID: rlm.ID, Type: events.TypeSelfServicePasswordReset, UserID: &v.UserID,
		})
		renderMessage(w, http.StatusOK, "Password reset", "Your password has been reset. You can now log in with it.")
	}
}

// VerifyEmailHandler consumes an email-verification token from the
// emailed link and marks the user's address verified.
func (s *Server) VerifyEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		rawToken := r.URL.Query().Get("token")

		v, err := s.verifyTokens.Consume(ctx, rawToken, store.VerificationEmailVerify)
		if errors.Is(err, verify.ErrInvalidToken) {
			renderMessage(w, http.StatusBadRequest, "Link invalid", "This verification link is invalid or has expired.")
			return
		}
		if err != nil {
			s.Logger.Error("failed to consume email verification token", "error", err, "realm", rlm.Name)
			helpers500(w)
			return
		}

		if err := s.users.SetEmailVerified(ctx, rlm.ID, v.UserID, true); err != nil {
			s.Logger.Error("failed to mark email verified", "error", err, "realm", rlm.Name)
			helpers500(w)
			return
		}

		s.recorder.RecordLoginEvent(ctx, events.LoginEvent{
			RealmID: rlm.ID, Type: events.TypeEmailVerified, UserID: &v.UserID,
		})
		renderMessage(w, http.StatusOK, "Email verified", "Your email address has been verified.")
	}
}
