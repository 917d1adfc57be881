package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goplacement/internal/api"
	"github.com/TimurManjosov/goplacement/internal/auth"
	"github.com/TimurManjosov/goplacement/internal/cli"
	"github.com/TimurManjosov/goplacement/internal/options"
	"github.com/TimurManjosov/goplacement/internal/remote"
	"github.com/TimurManjosov/goplacement/internal/resolver"
)

// run executes the root command with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	baseURL, apiKey, env, format, quiet, verbose = "", "", "", "table", false, false
	t.Setenv("PLACEMENT_CONFIG", filepath.Join(t.TempDir(), "config.yaml"))
	t.Setenv("PLACEMENT_BASE_URL", "")
	t.Setenv("PLACEMENT_API_KEY", "")

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const chainYAML = `
fallback: end.example
groups:
  - name: first
    placement: body
    script: "<script>one()</script>"
    domains: [a.com, b.com, c.com]
  - name: second
    placement: head
    script: "<script>two()</script>"
    domains: [c.com, d.com]
`

func TestChainPlan_ExcludesCurrentAndIsDeterministic(t *testing.T) {
	path := writeFile(t, "chain.yaml", chainYAML)
	args := []string{"chain", "plan", "--config", path, "--profile", "shuffled", "--current", "B.com", "--seed", "7", "--format", "json"}

	first, err := run(t, args...)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	second, _ := run(t, args...)
	if first != second {
		t.Errorf("same seed gave different plans:\n%s\n%s", first, second)
	}

	var plan cli.Plan
	if err := json.Unmarshal([]byte(first), &plan); err != nil {
		t.Fatalf("decode plan: %v\n%s", err, first)
	}
	if plan.Current != "b.com" || plan.Fallback != "end.example" || len(plan.Hops) != 3 {
		t.Errorf("unexpected plan %+v", plan)
	}
	for _, h := range plan.Hops {
		if h.Domain == "b.com" {
			t.Error("current host must not be a hop")
		}
	}
}

func TestChainPlan_UnknownProfile(t *testing.T) {
	path := writeFile(t, "chain.yaml", chainYAML)
	if _, err := run(t, "chain", "plan", "--config", path, "--profile", "random"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestChainSimulate(t *testing.T) {
	path := writeFile(t, "chain.yaml", chainYAML)
	out, err := run(t, "chain", "simulate", "--config", path, "--profile", "sequential", "--current", "d.com", "--format", "json")
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	var events []struct {
		Kind   string `json:"kind"`
		Domain string `json:"domain"`
	}
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatalf("decode events: %v\n%s", err, out)
	}
	var navs []string
	for _, e := range events {
		if e.Kind == "navigate" {
			navs = append(navs, e.Domain)
		}
	}
	want := []string{"https://a.com", "https://b.com", "https://c.com", "https://c.com", "https://end.example"}
	if strings.Join(navs, " ") != strings.Join(want, " ") {
		t.Errorf("navigations = %v, want %v", navs, want)
	}
}

func TestRulesValidate(t *testing.T) {
	good := writeFile(t, "good.json", `{"rules":[{"domains":["a.com"],"placement":"head","script_type":"external","script_content":"https://cdn/x.js"}]}`)
	out, err := run(t, "rules", "validate", good)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "a.com") {
		t.Errorf("expected rule in output:\n%s", out)
	}

	partial := writeFile(t, "partial.json", `{"rules":[{"domains":["a.com"],"placement":"head","script_type":"inline","script_content":"x"},{"domains":[],"placement":"head"}]}`)
	if _, err := run(t, "rules", "validate", partial); err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Errorf("expected skipped-rule error, got %v", err)
	}

	broken := writeFile(t, "broken.json", `{"rules": 5}`)
	if _, err := run(t, "rules", "validate", broken); err == nil {
		t.Error("expected error for a document without a rules array")
	}
}

func TestResolveAndOptions_AgainstServer(t *testing.T) {
	log := zerolog.New(io.Discard)
	st := options.NewMemoryStore(nil)
	res := resolver.New(st, remote.NewFetcher(time.Second), log)
	srv := httptest.NewServer(api.NewServer(st, res, auth.NewAuthenticator("secret", ""), nil, log).Router())
	defer srv.Close()

	if _, err := run(t, "options", "set", "body_domains", "shop.example", "body_script_inline", "<b>hi</b>", "--base-url", srv.URL, "--api-key", "secret"); err != nil {
		t.Fatalf("options set: %v", err)
	}

	out, err := run(t, "options", "get", "body_domains", "--base-url", srv.URL, "--api-key", "secret")
	if err != nil || strings.TrimSpace(out) != "shop.example" {
		t.Errorf("options get = %q, %v", out, err)
	}

	out, err = run(t, "render", "--host", "shop.example", "--base-url", srv.URL)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "<b>hi</b>") {
		t.Errorf("footer missing from render output:\n%s", out)
	}

	if _, err := run(t, "options", "set", "body_domains", "--base-url", srv.URL); err == nil {
		t.Error("odd number of arguments must fail")
	}
}

func TestKeygen(t *testing.T) {
	out, err := run(t, "keygen")
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected output %q", out)
	}
	key := strings.TrimSpace(strings.TrimPrefix(lines[0], "key:"))
	hash := strings.TrimSpace(strings.TrimPrefix(lines[1], "hash:"))
	if !strings.HasPrefix(key, auth.KeyPrefix) || !auth.VerifyAPIKey(key, hash) {
		t.Errorf("hash does not verify key: %q %q", key, hash)
	}
}
