package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TimurManjosov/goplacement/internal/rules"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Success(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"rules":[
		{"domains":["a.com"],"placement":"head","script_type":"external","script_content":"https://cdn.example/a.js"},
		{"domains":[],"placement":"head","script_type":"external","script_content":"x"}
	]}`)

	res, err := NewFetcher(time.Second).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(res.Rules))
	}
	if len(res.Skipped) != 1 {
		t.Errorf("expected 1 skipped entry, got %d", len(res.Skipped))
	}
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    error
		wantReason string
	}{
		{"server error", http.StatusInternalServerError, `{"rules":[]}`, ErrUnexpectedStatus, "status"},
		{"not found", http.StatusNotFound, ``, ErrUnexpectedStatus, "status"},
		{"invalid json", http.StatusOK, `{"rules":[`, rules.ErrMalformedDocument, "malformed"},
		{"missing rules", http.StatusOK, `{"version":2}`, rules.ErrMissingRules, "missing_rules"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			_, err := NewFetcher(time.Second).Fetch(context.Background(), srv.URL)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if got := Reason(err); got != tt.wantReason {
				t.Errorf("Reason: got %s, want %s", got, tt.wantReason)
			}
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewFetcher(50*time.Millisecond).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrRequest) {
		t.Fatalf("expected ErrRequest, got %v", err)
	}
	if got := Reason(err); got != "timeout" {
		t.Errorf("Reason: got %s, want timeout", got)
	}
}

func TestFetch_NoURL(t *testing.T) {
	_, err := NewFetcher(time.Second).Fetch(context.Background(), "")
	if !errors.Is(err, ErrNoURL) {
		t.Fatalf("expected ErrNoURL, got %v", err)
	}
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(time.Second).Fetch(context.Background(), url)
	if !errors.Is(err, ErrRequest) {
		t.Fatalf("expected ErrRequest, got %v", err)
	}
	if got := Reason(err); got != "network" {
		t.Errorf("Reason: got %s, want network", got)
	}
}

func TestFetch_TooLarge(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"rules":[],"pad":"`+strings.Repeat("x", maxDocumentSize)+`"}`)
	_, err := NewFetcher(time.Second).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}
