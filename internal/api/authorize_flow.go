package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/authme/core/internal/consent"
	"github.com/authme/core/internal/oidc"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

// finishAuthorize is the common tail of every path that reaches
// "there is an authenticated user and a validated client/scope set":
// the GET /auth fast path for an existing SSO session, the POST /login
// and POST /mfa success paths, and POST /consent's approval path. It
// decides whether a consent prompt is still owed and either redirects
// there or mints the authorization code directly.
func (s *Server) finishAuthorize(ctx context.Context, w http.ResponseWriter, r *http.Request, realm store.Realm, svc *realmServices, client store.Client, user store.User, sessionID uuid.UUID, scopes []string, req oidc.AuthorizeRequest) {
	needsConsent, err := svc.core.NeedsConsent(ctx, client, user.ID, scopes)
	if err != nil {
		s.Logger.Error("failed to check consent", "error", err, "realm", realm.Name)
		helpers500(w)
		return
	}

	if needsConsent {
		id, err := s.consentRequests.Create(ctx, consent.Request{
			UserID:      user.ID,
			ClientID:    client.ID,
			ClientName:  client.ClientID,
			RealmName:   realm.Name,
			Scopes:      scopes,
			OAuthParams: authorizeRequestToParams(req),
		})
		if err != nil {
			s.Logger.Error("failed to create consent request", "error", err, "realm", realm.Name)
			helpers500(w)
			return
		}
		http.Redirect(w, r, "/realms/"+realm.Name+"/consent?request_id="+id, http.StatusFound)
		return
	}

	s.issueCodeAndRedirect(ctx, w, r, realm, svc, client, user, sessionID, scopes, req)
}

// issueCodeAndRedirect mints the authorization code and sends the
// browser back to the client's redirect_uri with code and state.
func (s *Server) issueCodeAndRedirect(ctx context.Context, w http.ResponseWriter, r *http.Request, realm store.Realm, svc *realmServices, client store.Client, user store.User, sessionID uuid.UUID, scopes []string, req oidc.AuthorizeRequest) {
	code, err := svc.core.IssueAuthorizationCode(ctx, realm.ID, client, user.ID, sessionID, scopes, req)
	if err != nil {
		s.Logger.Error("failed to issue authorization code", "error", err, "realm", realm.Name)
		helpers500(w)
		return
	}
	q := url.Values{"code": {code}}
	if req.State != "" {
		q.Set("state", req.State)
	}
	http.Redirect(w, r, req.RedirectURI+"?"+q.Encode(), http.StatusFound)
}

func helpers500(w http.ResponseWriter) {
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
