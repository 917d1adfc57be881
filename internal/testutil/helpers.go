// Package testutil holds helpers shared by HTTP-facing tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
// A non-empty Body is sent as JSON unless Headers says otherwise.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// Bearer returns an Authorization header map for key.
func Bearer(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}

// RemoteRule is the wire form of one rule in a remote rules document.
type RemoteRule struct {
	Domains    []string `json:"domains"`
	Placement  string   `json:"placement"`
	ScriptType string   `json:"script_type"`
	Content    string   `json:"script_content"`
}

// RulesDocument renders a remote rules document.
func RulesDocument(t *testing.T, rules ...RemoteRule) string {
	t.Helper()
	if rules == nil {
		rules = []RemoteRule{}
	}
	b, err := json.Marshal(map[string]any{"rules": rules})
	if err != nil {
		t.Fatalf("encode rules document: %v", err)
	}
	return string(b)
}

// RemoteConfig is a fixture server for the remote rules document. Status,
// body and delay can be changed between requests.
type RemoteConfig struct {
	*httptest.Server

	status atomic.Int32
	body   atomic.Value
	delay  atomic.Int64
	hits   atomic.Int32
}

// NewRemoteConfig starts a fixture that answers 200 with body. It is closed
// when the test ends.
func NewRemoteConfig(t *testing.T, body string) *RemoteConfig {
	t.Helper()
	rc := &RemoteConfig{}
	rc.status.Store(http.StatusOK)
	rc.body.Store(body)
	rc.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc.hits.Add(1)
		if d := time.Duration(rc.delay.Load()); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(rc.status.Load()))
		_, _ = io.WriteString(w, rc.body.Load().(string))
	}))
	t.Cleanup(rc.Server.Close)
	return rc
}

// Respond changes the status code and body of later responses.
func (rc *RemoteConfig) Respond(status int, body string) {
	rc.status.Store(int32(status))
	rc.body.Store(body)
}

// Delay makes later responses wait for d before answering.
func (rc *RemoteConfig) Delay(d time.Duration) {
	rc.delay.Store(int64(d))
}

// Hits returns the number of requests served.
func (rc *RemoteConfig) Hits() int {
	return int(rc.hits.Load())
}
