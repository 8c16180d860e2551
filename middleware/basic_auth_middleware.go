package middleware

import (
	"net/http"

	"vau-explorer/utils/errors"

	"golang.org/x/crypto/bcrypt"
)

// AdminUser is the only account accepted by AdminAuthMiddleware.
const AdminUser = "admin"

// AdminAuthMiddleware checks HTTP Basic credentials against a bcrypt hash of
// the admin password. An empty hash rejects every request.
func AdminAuthMiddleware(passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != AdminUser || passwordHash == "" ||
				bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
				WriteError(w, errors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
