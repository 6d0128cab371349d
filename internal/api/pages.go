package api

import (
	"fmt"
	"html"
	"net/http"
	"net/url"

	custommiddleware "github.com/authme/core/internal/api/middleware"
)

// renderForm writes a minimal, unthemed HTML form: enough markup for a
// browser to complete the login/MFA/consent/device round trip. Theming
// and localization of these pages is handled by an external layer; this
// core only needs the endpoint contract (fields, method, action) to be
// correct.
func renderForm(w http.ResponseWriter, status int, title, action, csrfToken, errMsg string, hidden url.Values, fields string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	var errHTML string
	if errMsg != "" {
		errHTML = fmt.Sprintf(`<p class="error">%s</p>`, html.EscapeString(errMsg))
	}

	var hiddenHTML string
	for key, vals := range hidden {
		for _, v := range vals {
			hiddenHTML += fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`, html.EscapeString(key), html.EscapeString(v))
		}
	}

	fmt.Fprintf(w, `<!doctype html><html><head><meta charset="utf-8"><title>%s</title></head><body>
<h1>%s</h1>
%s
<form method="post" action="%s">
<input type="hidden" name="csrf_token" value="%s">
%s
%s
</form>
</body></html>`,
		html.EscapeString(title), html.EscapeString(title), errHTML,
		html.EscapeString(action), html.EscapeString(csrfToken), hiddenHTML, fields)
}

func csrfTokenOf(r *http.Request) string {
	return custommiddleware.CSRFTokenFromContext(r.Context())
}

// renderMessage writes a minimal HTML page reporting a one-off outcome
// (a sent email, a completed reset) with no form to submit.
func renderMessage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!doctype html><html><head><meta charset="utf-8"><title>%s</title></head><body>
<h1>%s</h1>
<p>%s</p>
</body></html>`, html.EscapeString(title), html.EscapeString(title), html.EscapeString(body))
}
