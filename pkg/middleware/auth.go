package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/shashiranjanraj/testserver/pkg/response"
)

// Headers checked by KeyAuth.
const (
	AppIDHeader         = "X-Application-Id"
	MasterKeyHeader     = "X-Master-Key"
	JavaScriptKeyHeader = "X-JavaScript-Key"
)

// Keys are the credentials a client must present.
type Keys struct {
	AppID         string
	MasterKey     string
	JavaScriptKey string
}

type masterKey struct{}

// IsMaster reports whether the request authenticated with the master key.
func IsMaster(ctx context.Context) bool {
	ok, _ := ctx.Value(masterKey{}).(bool)
	return ok
}

// KeyAuth rejects requests whose application id does not match. A request
// carrying a master key must match it exactly; any other request must carry
// the JavaScript key.
func KeyAuth(keys Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !equal(r.Header.Get(AppIDHeader), keys.AppID) {
				response.Unauthorized(w)
				return
			}

			if mk := r.Header.Get(MasterKeyHeader); mk != "" {
				if !equal(mk, keys.MasterKey) {
					response.Unauthorized(w)
					return
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), masterKey{}, true)))
				return
			}

			if !equal(r.Header.Get(JavaScriptKeyHeader), keys.JavaScriptKey) {
				response.Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMaster must sit behind KeyAuth.
func RequireMaster(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsMaster(r.Context()) {
			response.Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func equal(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
