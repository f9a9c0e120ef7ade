package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// SecretHeader carries the admin secret when no Authorization header is sent
const SecretHeader = "X-Auditsource-Secret"

// AuthMiddleware rejects requests that do not present secret, either in
// SecretHeader or as a bearer token. An empty secret lets everything through.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, problem := presentedSecret(r)
			if problem != "" {
				writeErrorResponse(w, http.StatusUnauthorized, problem)
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				writeErrorResponse(w, http.StatusUnauthorized, "secret mismatch")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// presentedSecret returns the secret sent with r, or why none was found
func presentedSecret(r *http.Request) (string, string) {
	if s := r.Header.Get(SecretHeader); s != "" {
		return s, ""
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "no credentials"
	}
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return "", "expected a bearer token"
	}
	return token, ""
}
