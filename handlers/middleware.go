package handlers

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// RequireWriteKey guards mutating endpoints with the deployment's write
// capability: the X-API-Key header must match the configured bcrypt hash.
// An empty hash disables the check, which is a deployment policy choice
// (e.g. a store bound to localhost only), not a core invariant.
func RequireWriteKey(writeKeyHash string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if writeKeyHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			WriteAPIError(w, http.StatusUnauthorized, "missing_api_key", "X-API-Key header required")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(writeKeyHash), []byte(key)); err != nil {
			WriteAPIError(w, http.StatusUnauthorized, "invalid_api_key", "write capability rejected")
			return
		}

		next.ServeHTTP(w, r)
	})
}
