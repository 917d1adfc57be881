package resolver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goplacement/internal/options"
	"github.com/TimurManjosov/goplacement/internal/remote"
	"github.com/TimurManjosov/goplacement/internal/rules"
)

var nopLog = zerolog.New(io.Discard)

const remoteDoc = `{"rules":[
	{"domains":["remote.com","both.com"],"placement":"body","script_type":"inline","script_content":"<script>remote()</script>"},
	{"domains":["both.com"],"placement":"head","script_type":"external","script_content":"https://cdn.remote/r.js"}
]}`

func localOptions(extra map[string]string) *options.MemoryStore {
	seed := map[string]string{
		options.KeyHeadDomains:      "local.com, both.com",
		options.KeyHeadScriptURL:    "https://cdn.local/h.js",
		options.KeyBodyDomains:      "body.com",
		options.KeyBodyScriptInline: "<script>local()</script>",
	}
	for k, v := range extra {
		seed[k] = v
	}
	return options.NewMemoryStore(seed)
}

func remoteServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolve_UnmatchedHostYieldsNothing(t *testing.T) {
	r := New(localOptions(nil), remote.NewFetcher(time.Second), nopLog)
	for _, host := range []string{"unknown.com", "sub.local.com", ""} {
		if got := r.Resolve(context.Background(), host); len(got) != 0 {
			t.Errorf("%q: expected no decisions, got %+v", host, got)
		}
	}
}

func TestResolve_SingleRuleMatch(t *testing.T) {
	r := New(localOptions(nil), remote.NewFetcher(time.Second), nopLog)

	got := r.Resolve(context.Background(), "body.com")
	want := []Decision{{
		Placement: rules.PlacementBody,
		Delivery:  rules.DeliveryInline,
		Content:   "<script>local()</script>",
		Handle:    Handle("<script>local()</script>"),
	}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestResolve_LocalHeadRuleIsExternal(t *testing.T) {
	r := New(localOptions(nil), remote.NewFetcher(time.Second), nopLog)

	got := r.Resolve(context.Background(), "Local.com")
	if len(got) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(got))
	}
	if got[0].Placement != rules.PlacementHead || got[0].Delivery != rules.DeliveryExternal || got[0].Content != "https://cdn.local/h.js" {
		t.Errorf("unexpected decision %+v", got[0])
	}
}

func TestResolve_RemoteWinsOverLocal(t *testing.T) {
	srv := remoteServer(t, http.StatusOK, remoteDoc)
	r := New(localOptions(map[string]string{options.KeyConfigURL: srv.URL}), remote.NewFetcher(time.Second), nopLog)

	got := r.Resolve(context.Background(), "both.com")
	if len(got) != 2 {
		t.Fatalf("expected 2 remote decisions, got %+v", got)
	}
	// Document order is preserved.
	if got[0].Content != "<script>remote()</script>" || got[1].Content != "https://cdn.remote/r.js" {
		t.Errorf("unexpected order or content: %+v", got)
	}

	for _, host := range []string{"local.com", "body.com"} {
		if d := r.Resolve(context.Background(), host); len(d) != 0 {
			t.Errorf("%s: local rules leaked into remote resolution: %+v", host, d)
		}
	}

	if set := r.RuleSet(context.Background()); set.Source != rules.SourceRemote {
		t.Errorf("expected remote source, got %s", set.Source)
	}
}

func TestResolve_FallbackMatchesLocalOnly(t *testing.T) {
	localOnly := New(localOptions(nil), remote.NewFetcher(time.Second), nopLog)

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer slow.Close()

	tests := []struct {
		name string
		url  string
	}{
		{"http 500", remoteServer(t, http.StatusInternalServerError, remoteDoc).URL},
		{"invalid json", remoteServer(t, http.StatusOK, `{"rules": [`).URL},
		{"missing rules key", remoteServer(t, http.StatusOK, `{"items": []}`).URL},
		{"timeout", slow.URL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(localOptions(map[string]string{options.KeyConfigURL: tt.url}), remote.NewFetcher(100*time.Millisecond), nopLog)

			for _, host := range []string{"local.com", "both.com", "body.com", "remote.com"} {
				got := r.Resolve(context.Background(), host)
				want := localOnly.Resolve(context.Background(), host)
				if !reflect.DeepEqual(got, want) {
					t.Errorf("%s: got %+v, want %+v", host, got, want)
				}
			}
			if set := r.RuleSet(context.Background()); set.Source != rules.SourceLocal {
				t.Errorf("expected local source, got %s", set.Source)
			}
		})
	}
}

func TestResolve_RefetchesEveryCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(remoteDoc))
	}))
	defer srv.Close()

	r := New(localOptions(map[string]string{options.KeyConfigURL: srv.URL}), remote.NewFetcher(time.Second), nopLog)
	for i := 0; i < 3; i++ {
		r.Resolve(context.Background(), "both.com")
	}
	if calls != 3 {
		t.Errorf("expected one fetch per resolution, got %d", calls)
	}
}

type stubFetcher struct {
	res *remote.Result
	err error
}

func (s stubFetcher) Fetch(context.Context, string) (*remote.Result, error) { return s.res, s.err }

func TestResolve_EmptyRemoteRulesStillWins(t *testing.T) {
	r := New(localOptions(map[string]string{options.KeyConfigURL: "https://rules.example"}), stubFetcher{res: &remote.Result{}}, nopLog)
	if got := r.Resolve(context.Background(), "local.com"); len(got) != 0 {
		t.Errorf("expected empty remote rule set to win, got %+v", got)
	}
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, error) { return "", errors.New("db down") }

func TestResolve_BrokenOptionsFailOpen(t *testing.T) {
	r := New(brokenStore{}, stubFetcher{err: errors.New("unused")}, nopLog)
	if got := r.Resolve(context.Background(), "local.com"); len(got) != 0 {
		t.Errorf("expected no decisions, got %+v", got)
	}
}

func TestHandle(t *testing.T) {
	if Handle("a") != Handle("a") {
		t.Error("handle must be deterministic")
	}
	if Handle("a") == Handle("b") {
		t.Error("different content should yield different handles")
	}
}
