package rules

// Placement is the page region a script is written into.
type Placement string

// Supported placements (string values match the remote document).
const (
	PlacementHead Placement = "head"
	PlacementBody Placement = "body"
)

// Delivery tells whether Content is raw markup or a script URL.
type Delivery string

const (
	DeliveryInline   Delivery = "inline"
	DeliveryExternal Delivery = "external"
)

// Source records where a RuleSet was loaded from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Rule maps a set of hostnames to one script and its placement.
// Domains are stored lower-cased; matching is exact.
type Rule struct {
	Domains   []string  `json:"domains"`
	Placement Placement `json:"placement"`
	Delivery  Delivery  `json:"script_type"`
	Content   string    `json:"script_content"`
}

// Matches reports whether host is one of the rule's domains.
// host must already be normalized with NormalizeHost.
func (r Rule) Matches(host string) bool {
	if host == "" {
		return false
	}
	for _, d := range r.Domains {
		if d == host {
			return true
		}
	}
	return false
}

// RuleSet is an ordered list of rules together with their origin.
type RuleSet struct {
	Source Source `json:"source"`
	Rules  []Rule `json:"rules"`
}

// Match returns the rules that apply to host, in document order.
func (s RuleSet) Match(host string) []Rule {
	host = NormalizeHost(host)
	var matched []Rule
	for _, r := range s.Rules {
		if r.Matches(host) {
			matched = append(matched, r)
		}
	}
	return matched
}
