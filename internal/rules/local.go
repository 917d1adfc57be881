package rules

// LocalConfig holds the fallback settings a site keeps in its option store.
type LocalConfig struct {
	HeadDomains      string // comma separated
	HeadScriptURL    string
	BodyDomains      string // comma separated
	BodyScriptInline string
}

// FromLocal converts fallback settings into rules: the head domains get the
// external head script, the body domains get the inline body markup. A pair
// with no domains or no content produces no rule.
func FromLocal(cfg LocalConfig) []Rule {
	var out []Rule

	head := Rule{
		Domains:   SplitDomains(cfg.HeadDomains),
		Placement: PlacementHead,
		Delivery:  DeliveryExternal,
		Content:   cfg.HeadScriptURL,
	}
	if ValidateRule(head) == nil {
		out = append(out, head)
	}

	body := Rule{
		Domains:   SplitDomains(cfg.BodyDomains),
		Placement: PlacementBody,
		Delivery:  DeliveryInline,
		Content:   cfg.BodyScriptInline,
	}
	if ValidateRule(body) == nil {
		out = append(out, body)
	}

	return out
}
