package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// writeJSON writes v with the given status. Encoding errors are ignored once the header is sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeMessage answers JSON routes: {"message": msg}.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeAuthError answers rejected authentication: {"error": reason}.
func writeAuthError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}

// writeRaw forwards an upstream JSON body unchanged.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// frontendURL joins the frontend base with a view path.
func frontendURL(base, view string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(view, "/")
}

// loginErrorURL is the frontend login view carrying an error indicator in the query string.
func loginErrorURL(base, code string) string {
	return frontendURL(base, "login") + "?error=" + url.QueryEscape(code)
}

// dashboardURL carries the credentials in the fragment so they never reach server logs.
func dashboardURL(base, accessToken, refreshToken, sessionToken string) string {
	return frontendURL(base, "dashboard") +
		"#access_token=" + url.QueryEscape(accessToken) +
		"&refresh_token=" + url.QueryEscape(refreshToken) +
		"&jwt=" + url.QueryEscape(sessionToken)
}
