package options

import (
	"net/url"
	"strings"

	"github.com/TimurManjosov/goplacement/internal/rules"
)

// Validate checks option values before they are written and returns a
// message per offending key. Empty values are always accepted; they clear the key.
func Validate(values map[string]string) map[string]string {
	fields := make(map[string]string)
	for key, v := range values {
		if !IsKnownKey(key) {
			fields[key] = "unknown option"
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		switch key {
		case KeyConfigURL, KeyHeadScriptURL:
			if !isHTTPURL(v) {
				fields[key] = "must be an absolute http or https URL"
			}
		case KeyHeadDomains, KeyBodyDomains:
			for _, d := range strings.Split(v, ",") {
				if strings.TrimSpace(d) == "" {
					continue
				}
				if err := rules.CheckDomain(d); err != nil {
					fields[key] = err.Error()
					break
				}
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
