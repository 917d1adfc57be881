// Package options persists the site settings that drive local rule fallback.
// Stores are key/value maps restricted to the known option keys.
package options

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/TimurManjosov/goplacement/internal/rules"
)

// Option keys. They map 1:1 to the fields of the settings form.
const (
	KeyHeadDomains      = "head_domains"
	KeyBodyDomains      = "body_domains"
	KeyHeadScriptURL    = "head_script_url"
	KeyBodyScriptInline = "body_script_inline"
	KeyConfigURL        = "github_config_url"
)

// Keys lists every option key in settings-form order.
var Keys = []string{
	KeyConfigURL,
	KeyHeadDomains,
	KeyHeadScriptURL,
	KeyBodyDomains,
	KeyBodyScriptInline,
}

// ErrUnknownKey is returned when writing a key that is not in Keys.
var ErrUnknownKey = errors.New("unknown option key")

// Provider is the read side of an option store. Get returns "" for unset keys.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
}

// Store defines the interface for option persistence operations.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	Provider

	// All returns every stored option. Unset keys are absent.
	All(ctx context.Context) (map[string]string, error)

	// Set writes the given options atomically. An empty value clears the key.
	// Returns ErrUnknownKey (and writes nothing) if any key is not known.
	Set(ctx context.Context, values map[string]string) error

	// Close releases any resources held by the store.
	Close() error
}

// IsKnownKey reports whether key is a recognised option key.
func IsKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// checkKeys returns ErrUnknownKey naming the first unknown key, in sorted order.
func checkKeys(values map[string]string) error {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if !IsKnownKey(k) {
			return fmt.Errorf("%w: %q", ErrUnknownKey, k)
		}
	}
	return nil
}

// Local reads the fallback rule settings from p.
func Local(ctx context.Context, p Provider) (rules.LocalConfig, error) {
	var cfg rules.LocalConfig
	fields := []struct {
		key string
		dst *string
	}{
		{KeyHeadDomains, &cfg.HeadDomains},
		{KeyHeadScriptURL, &cfg.HeadScriptURL},
		{KeyBodyDomains, &cfg.BodyDomains},
		{KeyBodyScriptInline, &cfg.BodyScriptInline},
	}
	for _, f := range fields {
		v, err := p.Get(ctx, f.key)
		if err != nil {
			return rules.LocalConfig{}, fmt.Errorf("read option %s: %w", f.key, err)
		}
		*f.dst = v
	}
	return cfg, nil
}
