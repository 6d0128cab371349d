package api

import (
	"context"
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/authme/core/internal/api/helpers"
	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/oidc"
	"github.com/authme/core/internal/realm"
	"github.com/authme/core/internal/store"
)

// DeviceAuthorizationHandler implements GET /auth/device (RFC 8628
// §3.1): the input-constrained device registers a device_code/user_code
// pair here before directing its user to the verification page.
func (s *Server) DeviceAuthorizationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		q := r.URL.Query()

		client, cerr := s.authenticateDeviceClient(ctx, rlm, q.Get("client_id"), q.Get("client_secret"))
		if cerr != nil {
			helpers.RespondOAuthError(w, http.StatusBadRequest, cerr.Code, cerr.Description)
			return
		}

		svc := s.servicesFor(rlm)
		resp, err := svc.core.InitiateDeviceAuthorization(ctx, rlm.ID, client, strings.Fields(q.Get("scope")))
		if err != nil {
			respondCoreError(w, err)
			return
		}
		helpers.RespondJSON(w, http.StatusOK, resp)
	}
}

// authenticateDeviceClient duplicates oidc.Core's unexported
// authenticateClient: InitiateDeviceAuthorization takes an
// already-resolved store.Client since every other grant path
// authenticates through Core.Token instead, but the device authorization
// endpoint has no token-endpoint-shaped request to route through Token.
func (s *Server) authenticateDeviceClient(ctx context.Context, rlm store.Realm, clientID, clientSecret string) (store.Client, *oidc.Error) {
	svc := s.servicesFor(rlm)
	client, err := svc.core.Clients.GetByClientID(ctx, rlm.ID, clientID)
	if err != nil {
		return store.Client{}, oidc.ErrInvalidClient
	}
	if client.ClientType == store.ClientTypeConfidential {
		if clientSecret == "" {
			return store.Client{}, oidc.ErrInvalidClient
		}
		if verr := crypto.NewArgon2idHasher().Verify(client.ClientSecretHash, clientSecret); verr != nil {
			return store.Client{}, oidc.ErrInvalidClient
		}
	}
	return client, nil
}

// DeviceVerifyPageHandler renders GET /device: the human-facing
// confirmation page a second device's browser opens after the user
// reads the printed/displayed user_code. An unauthenticated visitor is
// sent to log in first, carrying this URL (with its user_code) as next
// so the approval resumes here afterward.
func (s *Server) DeviceVerifyPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		userCode := r.URL.Query().Get("user_code")

		ctx, _, _, ok := s.resolveSession(ctx, r, rlm)
		if !ok {
			s.redirectToLoginForDevice(w, r, rlm.Name, userCode)
			return
		}

		var clientName string
		if userCode != "" {
			svc := s.servicesFor(rlm)
			if dc, derr := svc.core.GetDeviceByUserCode(ctx, userCode); derr == nil {
				if client, cerr := svc.core.Clients.GetByID(ctx, dc.RealmID, dc.ClientID); cerr == nil {
					clientName = client.ClientID
				}
			}
		}
		s.renderDeviceVerifyForm(w, r, http.StatusOK, rlm.Name, userCode, clientName, "")
	}
}

func (s *Server) redirectToLoginForDevice(w http.ResponseWriter, r *http.Request, realmName, userCode string) {
	next := "/realms/" + realmName + "/device"
	if userCode != "" {
		next += "?user_code=" + url.QueryEscape(userCode)
	}
	http.Redirect(w, r, "/realms/"+realmName+"/login?next="+url.QueryEscape(next), http.StatusFound)
}

func (s *Server) renderDeviceVerifyForm(w http.ResponseWriter, r *http.Request, status int, realmName, userCode, clientName, errMsg string) {
	hidden := url.Values{}
	var clientLine string
	if clientName != "" {
		clientLine = "<p>Application: " + html.EscapeString(clientName) + "</p>"
	}
	fields := `
<label>Code <input type="text" name="user_code" value="` + html.EscapeString(userCode) + `" required autofocus></label><br>
` + clientLine + `
<button type="submit" name="decision" value="allow">Allow</button>
<button type="submit" name="decision" value="deny">Deny</button>`
	renderForm(w, status, "Confirm device", "/realms/"+realmName+"/auth/device/verify", csrfTokenOf(r), errMsg, hidden, fields)
}

// DeviceVerifySubmitHandler implements POST /auth/device/verify: it
// requires the same SSO session the page handler checked for, binds the
// device code to that user on approval, or marks it denied.
func (s *Server) DeviceVerifySubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rlm := realm.MustFromContext(ctx)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form body", http.StatusBadRequest)
			return
		}

		userCode := r.FormValue("user_code")
		decision := r.FormValue("decision")

		ctx, sess, _, ok := s.resolveSession(ctx, r, rlm)
		if !ok {
			s.redirectToLoginForDevice(w, r, rlm.Name, userCode)
			return
		}

		svc := s.servicesFor(rlm)
		if decision != "allow" {
			if err := svc.core.DenyDeviceUserCode(ctx, userCode); err != nil {
				s.renderDeviceVerifyForm(w, r, http.StatusBadRequest, rlm.Name, userCode, "", "invalid or expired code")
				return
			}
			s.renderDeviceDone(w, "Device sign-in denied.")
			return
		}

		if err := svc.core.ApproveDeviceUserCode(ctx, userCode, sess.UserID); err != nil {
			s.renderDeviceVerifyForm(w, r, http.StatusBadRequest, rlm.Name, userCode, "", "invalid or expired code")
			return
		}
		s.renderDeviceDone(w, "Device signed in. You may close this window.")
	}
}

func (s *Server) renderDeviceDone(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!doctype html><html><body><p>` + message + `</p></body></html>`))
}

func respondCoreError(w http.ResponseWriter, err error) {
	if oerr, ok := err.(*oidc.Error); ok {
		helpers.RespondOAuthError(w, http.StatusBadRequest, oerr.Code, oerr.Description)
		return
	}
	helpers.RespondOAuthError(w, http.StatusInternalServerError, "server_error", "internal server error")
}
