package rules

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by ValidateRule.
var (
	ErrInvalidDomains   = errors.New("invalid domains")
	ErrInvalidPlacement = errors.New("invalid placement")
	ErrInvalidDelivery  = errors.New("invalid delivery")
	ErrEmptyContent     = errors.New("empty script content")
)

var validPlacements = map[Placement]struct{}{
	PlacementHead: {},
	PlacementBody: {},
}

var validDeliveries = map[Delivery]struct{}{
	DeliveryInline:   {},
	DeliveryExternal: {},
}

// ValidateRule performs strict validation of a placement Rule.
// It is a pure function: it never mutates r and has no side effects.
func ValidateRule(r Rule) error {
	if len(r.Domains) == 0 {
		return fmt.Errorf("%w: rule must list at least one domain", ErrInvalidDomains)
	}
	for i, d := range r.Domains {
		if d == "" {
			return fmt.Errorf("%w: domain[%d] must not be empty", ErrInvalidDomains, i)
		}
		if err := CheckDomain(d); err != nil {
			return fmt.Errorf("domain[%d]: %w", i, err)
		}
	}

	if _, ok := validPlacements[r.Placement]; !ok {
		return fmt.Errorf("%w: %q is not one of head, body", ErrInvalidPlacement, r.Placement)
	}

	if _, ok := validDeliveries[r.Delivery]; !ok {
		return fmt.Errorf("%w: %q is not one of inline, external", ErrInvalidDelivery, r.Delivery)
	}

	if r.Content == "" {
		return fmt.Errorf("%w: script_content must not be empty", ErrEmptyContent)
	}

	return nil
}
