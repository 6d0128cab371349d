package api

import (
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/authme/core/internal/realm"
)

// ConsentPageHandler renders the scope-grant prompt for a pending
// consent.Request id, created by finishAuthorize when the client
// requires consent the user has not already given.
func (s *Server) ConsentPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rlm := realm.MustFromContext(r.Context())
		id := r.URL.Query().Get("request_id")
		req, newID, err := s.consentRequests.Get(r.Context(), id)
		if err != nil {
			http.Error(w, "consent request not found or expired, please log in again", http.StatusGone)
			return
		}
		s.renderConsentForm(w, r, http.StatusOK, rlm.Name, newID, req.ClientName, req.Scopes, "")
	}
}

func (s *Server) renderConsentForm(w http.ResponseWriter, r *http.Request, status int, realmName, requestID, clientName string, scopes []string, errMsg string) {
	hidden := url.Values{"request_id": {requestID}}
	fields := `
<p>` + html.EscapeString(clientName) + ` is requesting access to: ` + html.EscapeString(strings.Join(scopes, ", ")) + `</p>
<button type="submit" name="decision" value="allow">Allow</button>
<button type="submit" name="decision" value="deny">Deny</button>`
	renderForm(w, status, "Grant access", "/realms/"+realmName+"/consent", csrfTokenOf(r), errMsg, hidden, fields)
}

// ConsentSubmitHandler records the user's decision: denial aborts back
// to the client's redirect_uri with access_denied, approval records the
// grant and resumes straight to code issuance (NeedsConsent has already
// been answered by finishAuthorize, so there is no second consent check
// here).
func (s *Server) ConsentSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		id := r.FormValue("request_id")
		decision := r.FormValue("decision")

		consentReq, newID, err := s.consentRequests.Get(ctx, id)
		if err != nil {
			http.Error(w, "consent request not found or expired, please log in again", http.StatusGone)
			return
		}
		_ = s.consentRequests.Invalidate(ctx, newID)
		authzReq := authorizeRequestFromParams(consentReq.OAuthParams)

		if decision != "allow" {
			q := url.Values{"error": {"access_denied"}}
			if authzReq.State != "" {
				q.Set("state", authzReq.State)
			}
			http.Redirect(w, r, authzReq.RedirectURI+"?"+q.Encode(), http.StatusFound)
			return
		}

		ctx, sess, user, ok := s.resolveSession(ctx, r, rlm)
		if !ok {
			http.Redirect(w, r, "/realms/"+rlm.Name+"/login?"+authorizeRequestValues(authzReq).Encode(), http.StatusFound)
			return
		}

		svc := s.servicesFor(rlm)
		client, err := svc.core.Clients.GetByClientID(ctx, rlm.ID, authzReq.ClientID)
		if err != nil {
			http.Error(w, "unknown client", http.StatusBadRequest)
			return
		}

		if rerr := s.consent.Grant(ctx, user.ID, client.ID, consentReq.Scopes); rerr != nil {
			s.Logger.Error("failed to record consent grant", "error", rerr, "realm", rlm.Name)
			helpers500(w)
			return
		}

		s.issueCodeAndRedirect(ctx, w, r, rlm, svc, client, user, sess.ID, consentReq.Scopes, authzReq)
	}
}
