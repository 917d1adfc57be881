package rules

import (
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidateRule_Success(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"head external", Rule{Domains: []string{"a.com"}, Placement: PlacementHead, Delivery: DeliveryExternal, Content: "https://cdn.example/x.js"}},
		{"body inline", Rule{Domains: []string{"a.com", "b.com"}, Placement: PlacementBody, Delivery: DeliveryInline, Content: "<script>1</script>"}},
		{"head inline", Rule{Domains: []string{"a.com"}, Placement: PlacementHead, Delivery: DeliveryInline, Content: "<meta>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRule(tt.rule); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateRule_Failures(t *testing.T) {
	valid := Rule{Domains: []string{"a.com"}, Placement: PlacementHead, Delivery: DeliveryExternal, Content: "u"}

	tests := []struct {
		name    string
		mutate  func(r *Rule)
		wantErr error
	}{
		{"no domains", func(r *Rule) { r.Domains = nil }, ErrInvalidDomains},
		{"blank domain", func(r *Rule) { r.Domains = []string{"a.com", ""} }, ErrInvalidDomains},
		{"url domain", func(r *Rule) { r.Domains = []string{"https://a.com"} }, ErrInvalidDomains},
		{"bad port", func(r *Rule) { r.Domains = []string{"a.com:80x"} }, ErrInvalidDomains},
		{"bad placement", func(r *Rule) { r.Placement = "sidebar" }, ErrInvalidPlacement},
		{"bad delivery", func(r *Rule) { r.Delivery = "iframe" }, ErrInvalidDelivery},
		{"empty content", func(r *Rule) { r.Content = "" }, ErrEmptyContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			r.Domains = append([]string(nil), valid.Domains...)
			tt.mutate(&r)
			err := ValidateRule(r)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Matching
// ---------------------------------------------------------------------------

func TestRuleSet_Match(t *testing.T) {
	set := RuleSet{
		Source: SourceLocal,
		Rules: []Rule{
			{Domains: []string{"a.com", "b.com"}, Placement: PlacementHead, Delivery: DeliveryExternal, Content: "one"},
			{Domains: []string{"b.com"}, Placement: PlacementBody, Delivery: DeliveryInline, Content: "two"},
		},
	}

	tests := []struct {
		host string
		want []string
	}{
		{"a.com", []string{"one"}},
		{"b.com", []string{"one", "two"}},
		{"B.COM:8443", []string{"one", "two"}},
		{"b.com.", []string{"one", "two"}},
		{"sub.a.com", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got := set.Match(tt.host)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rules, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Content != tt.want[i] {
					t.Errorf("rule[%d]: got %q, want %q", i, got[i].Content, tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := map[string]string{
		"Example.com":         "example.com",
		" example.com ":       "example.com",
		"example.com:8080":    "example.com",
		"example.com.":        "example.com",
		"[::1]:80":            "::1",
		"":                    "",
		"https://example.com": "https://example.com",
		"example.org:8443x":   "example.org:8443x",
		"example.org:":        "example.org:",
	}
	for in, want := range tests {
		if got := NormalizeHost(in); got != want {
			t.Errorf("NormalizeHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitDomains(t *testing.T) {
	got := SplitDomains(" a.com, ,B.com,,")
	if strings.Join(got, "|") != "a.com|b.com" {
		t.Errorf("got %v", got)
	}
	if got := SplitDomains(""); len(got) != 0 {
		t.Errorf("expected no domains for empty input, got %v", got)
	}
	got = SplitDomains("https://example.com, example.org:8443x, C.com:8080, d.com/x")
	if strings.Join(got, "|") != "c.com" {
		t.Errorf("expected URL-shaped entries to be dropped, got %v", got)
	}
}

func TestCheckDomain(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"example.com", true},
		{" Example.COM:443 ", true},
		{"example.com.", true},
		{"[::1]:80", true},
		{"10.0.0.1", true},
		{"", false},
		{"https://example.com", false},
		{"example.com/path", false},
		{"example.org:8443x", false},
		{"example.org:", false},
		{"user@example.org", false},
		{"two words", false},
	}
	for _, tt := range tests {
		err := CheckDomain(tt.in)
		if tt.ok && err != nil {
			t.Errorf("CheckDomain(%q) = %v, want nil", tt.in, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidDomains) {
			t.Errorf("CheckDomain(%q) = %v, want ErrInvalidDomains", tt.in, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Local fallback
// ---------------------------------------------------------------------------

func TestFromLocal(t *testing.T) {
	got := FromLocal(LocalConfig{
		HeadDomains:      "a.com, b.com",
		HeadScriptURL:    "https://cdn.example/head.js",
		BodyDomains:      "c.com",
		BodyScriptInline: "<script>body()</script>",
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(got))
	}
	if got[0].Placement != PlacementHead || got[0].Delivery != DeliveryExternal {
		t.Errorf("head rule: got %s/%s", got[0].Placement, got[0].Delivery)
	}
	if got[1].Placement != PlacementBody || got[1].Delivery != DeliveryInline {
		t.Errorf("body rule: got %s/%s", got[1].Placement, got[1].Delivery)
	}
}

func TestFromLocal_OmitsIncompletePairs(t *testing.T) {
	tests := []struct {
		name string
		cfg  LocalConfig
		want int
	}{
		{"empty", LocalConfig{}, 0},
		{"domains without script", LocalConfig{HeadDomains: "a.com"}, 0},
		{"script without domains", LocalConfig{HeadScriptURL: "https://x/y.js", BodyScriptInline: "<b>"}, 0},
		{"only commas", LocalConfig{BodyDomains: " , ,", BodyScriptInline: "<b>"}, 0},
		{"body only", LocalConfig{BodyDomains: "a.com", BodyScriptInline: "<b>"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromLocal(tt.cfg); len(got) != tt.want {
				t.Errorf("got %d rules, want %d", len(got), tt.want)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := RuleSet{Source: SourceLocal, Rules: []Rule{{Domains: []string{"a.com"}, Placement: PlacementHead, Delivery: DeliveryExternal, Content: "x"}}}
	b := a
	b.Source = SourceRemote

	if Fingerprint(a) != Fingerprint(a) {
		t.Error("fingerprint must be stable")
	}
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("fingerprint must change with source")
	}
	if !strings.HasPrefix(Fingerprint(a), `W/"`) {
		t.Errorf("expected weak etag, got %s", Fingerprint(a))
	}
}
