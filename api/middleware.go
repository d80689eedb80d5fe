package api

import (
	"crypto/subtle"
	"net/http"
)

// RequireBasicAuth wraps next with HTTP basic auth, checked against the
// configured HN_USER/HN_PASSWORD pair. If user is empty, auth is disabled
// and next is returned unwrapped — this is the one piece of the broader
// (otherwise out-of-scope) auth surface the spec names explicitly.
func RequireBasicAuth(user, password string, next http.Handler) http.Handler {
	if user == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(gotUser), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(gotPass), []byte(password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="restricted"`)
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}
