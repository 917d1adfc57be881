package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func protected(a *Authenticator) (http.Handler, *Method) {
	var seen Method
	h := a.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = MethodFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, &seen
}

func TestRequireAdmin_PlainKey(t *testing.T) {
	h, seen := protected(NewAuthenticator("admin-123", ""))

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantMethod Method
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, MethodNone},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusForbidden, MethodNone},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer admin-123") }, http.StatusNoContent, MethodBearer},
		{"basic", func(r *http.Request) { r.SetBasicAuth("admin", "admin-123") }, http.StatusNoContent, MethodBasic},
		{"wrong basic", func(r *http.Request) { r.SetBasicAuth("admin", "admin-12") }, http.StatusForbidden, MethodNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			*seen = MethodNone
			r := httptest.NewRequest(http.MethodGet, "/admin", nil)
			tt.setup(r)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, r)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if *seen != tt.wantMethod {
				t.Errorf("method = %q, want %q", *seen, tt.wantMethod)
			}
		})
	}
}

func TestRequireAdmin_ChallengeOnMissing(t *testing.T) {
	h, _ := protected(NewAuthenticator("admin-123", ""))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Error("expected a Basic challenge")
	}
}

func TestRequireAdmin_HashedKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	h, _ := protected(NewAuthenticator("", string(hash)))

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.Header.Set("Authorization", "Bearer hashed-secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
}

func TestRequireAdmin_NoKeyConfigured(t *testing.T) {
	a := NewAuthenticator("", "")
	if a.Verify("") || a.Verify("anything") {
		t.Error("an authenticator without keys must reject everything")
	}
}

func TestRequireAdmin_CustomFailure(t *testing.T) {
	var gotStatus int
	a := NewAuthenticator("k", "").OnFailure(func(w http.ResponseWriter, _ *http.Request, status int, _ string) {
		gotStatus = status
		w.WriteHeader(http.StatusTeapot)
	})
	h, _ := protected(a)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if gotStatus != http.StatusUnauthorized || rr.Code != http.StatusTeapot {
		t.Errorf("failure hook not used: status=%d code=%d", gotStatus, rr.Code)
	}
}
