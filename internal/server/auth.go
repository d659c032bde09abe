// Package server implements the HTTP shell that exposes email generation to a
// browser form or a CRM.
package server

import (
	"crypto/subtle"
	"net/http"
)

// Authenticator checks HTTP basic credentials against the configured pair.
type Authenticator struct {
	username string
	password string
}

// NewAuthenticator creates an Authenticator with the given credentials.
// If either is empty, authentication is disabled.
func NewAuthenticator(username, password string) *Authenticator {
	return &Authenticator{
		username: username,
		password: password,
	}
}

// Enabled returns true if authentication credentials are configured.
func (a *Authenticator) Enabled() bool {
	return a.username != "" && a.password != ""
}

// Verify reports whether user and pass match. Both comparisons always run.
func (a *Authenticator) Verify(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.username))
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(a.password))
	return userOK&passOK == 1
}

// Middleware rejects requests without valid basic credentials. It is a no-op
// when authentication is disabled.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !a.Verify(user, pass) {
			loggerFrom(r.Context()).Warn("authentication failed", "user", user)
			w.Header().Set("WWW-Authenticate", `Basic realm="slicemail", charset="UTF-8"`)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
