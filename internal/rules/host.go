package rules

import (
	"fmt"
	"net"
	"strings"
)

// NormalizeHost lower-cases a hostname and strips a numeric port and trailing
// dot, so "Example.COM:443" and "example.com." both become "example.com".
// Anything else is only trimmed and lower-cased; CheckDomain tells whether the
// result is a usable hostname.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if h, port, err := net.SplitHostPort(host); err == nil && isPort(port) {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}

// CheckDomain reports whether raw names a host: a hostname or IP address,
// optionally followed by a numeric port. URLs, paths and non-numeric ports
// are rejected with ErrInvalidDomains.
func CheckDomain(raw string) error {
	raw = strings.TrimSpace(raw)
	d := NormalizeHost(raw)
	switch {
	case d == "":
		return fmt.Errorf("%w: empty domain", ErrInvalidDomains)
	case strings.Contains(d, "://"):
		return fmt.Errorf("%w: %q is a URL, list the hostname only", ErrInvalidDomains, raw)
	case strings.ContainsAny(d, "/?#@ \t"):
		return fmt.Errorf("%w: %q is not a hostname", ErrInvalidDomains, raw)
	case strings.Contains(d, ":") && net.ParseIP(d) == nil:
		return fmt.Errorf("%w: %q has an invalid port", ErrInvalidDomains, raw)
	}
	return nil
}

// SplitDomains parses a comma separated domain list. Blank entries and
// entries CheckDomain rejects are dropped; the rest are normalized.
func SplitDomains(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" || CheckDomain(part) != nil {
			continue
		}
		out = append(out, NormalizeHost(part))
	}
	return out
}

func isPort(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
