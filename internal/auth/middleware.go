package auth

import (
	"context"
	"net/http"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// ContextKeyMethod is the context key for storing how the admin authenticated
const ContextKeyMethod contextKey = "auth_method"

// Method is the way a request presented the admin secret.
type Method string

const (
	MethodNone   Method = ""
	MethodBearer Method = "bearer"
	MethodBasic  Method = "basic"
)

// FailureFunc writes the response for a rejected request.
type FailureFunc func(w http.ResponseWriter, r *http.Request, status int, msg string)

// Authenticator guards admin routes with a single shared secret, given either
// in plain text or as a bcrypt hash.
type Authenticator struct {
	key     string
	keyHash string
	realm   string
	onFail  FailureFunc
}

// NewAuthenticator creates an Authenticator. At least one of key and keyHash
// should be set; with neither every request is rejected.
func NewAuthenticator(key, keyHash string) *Authenticator {
	return &Authenticator{
		key:     key,
		keyHash: keyHash,
		realm:   "placement admin",
		onFail: func(w http.ResponseWriter, _ *http.Request, status int, msg string) {
			http.Error(w, msg, status)
		},
	}
}

// OnFailure replaces the default plain-text rejection.
func (a *Authenticator) OnFailure(f FailureFunc) *Authenticator {
	a.onFail = f
	return a
}

// Verify reports whether secret is the admin key.
func (a *Authenticator) Verify(secret string) bool {
	if secret == "" {
		return false
	}
	if a.keyHash != "" && VerifyAPIKey(secret, a.keyHash) {
		return true
	}
	return a.key != "" && VerifyAPIKeyConstantTime(secret, a.key)
}

// RequireAdmin rejects requests without the admin secret: 401 when it is
// missing, 403 when it is wrong. Missing credentials also get a Basic
// challenge so browsers prompt for the password.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret, method := Credential(r)
		if secret == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+a.realm+`", charset="UTF-8"`)
			a.onFail(w, r, http.StatusUnauthorized, "missing admin credentials")
			return
		}
		if !a.Verify(secret) {
			a.onFail(w, r, http.StatusForbidden, "invalid admin credentials")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyMethod, method)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MethodFromContext returns how the current request authenticated.
func MethodFromContext(ctx context.Context) (Method, bool) {
	m, ok := ctx.Value(ContextKeyMethod).(Method)
	return m, ok && m != MethodNone
}
