// Package chain builds redirect chains from domain groups and walks them on a
// timer, injecting each domain's snippet along the way until the visitor lands
// on the fallback domain.
package chain

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/TimurManjosov/goplacement/internal/rules"
)

var (
	ErrUnknownProfile = errors.New("unknown chain profile")
	ErrInvalidDelay   = errors.New("invalid delay range")
)

// InjectMode selects which snippet a step injects before it waits.
type InjectMode string

const (
	// InjectUpcoming injects the snippet of the hop about to be visited.
	InjectUpcoming InjectMode = "upcoming"
	// InjectCurrent injects the snippet of the page currently loaded, once per page.
	InjectCurrent InjectMode = "current"
)

// Profile is one flavour of chain construction and walk timing.
type Profile struct {
	Name     string        `json:"name" yaml:"name"`
	Dedupe   bool          `json:"dedupe" yaml:"dedupe"`
	Shuffle  bool          `json:"shuffle" yaml:"shuffle"`
	MinDelay time.Duration `json:"min_delay" yaml:"min_delay"`
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
	Inject   InjectMode    `json:"inject" yaml:"inject"`
}

var (
	Sequential = Profile{
		Name:     "sequential",
		MinDelay: 6000 * time.Millisecond,
		MaxDelay: 8000 * time.Millisecond,
		Inject:   InjectUpcoming,
	}
	Shuffled = Profile{
		Name:     "shuffled",
		Dedupe:   true,
		Shuffle:  true,
		MinDelay: 5000 * time.Millisecond,
		MaxDelay: 8000 * time.Millisecond,
		Inject:   InjectCurrent,
	}
)

// Profiles lists the built-in profiles by name.
var Profiles = map[string]Profile{
	Sequential.Name: Sequential,
	Shuffled.Name:   Shuffled,
}

// ProfileByName returns a built-in profile.
func ProfileByName(name string) (Profile, error) {
	p, ok := Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Validate checks the delay range.
func (p Profile) Validate() error {
	if p.MinDelay < 0 || p.MaxDelay < p.MinDelay {
		return fmt.Errorf("%w: [%s, %s]", ErrInvalidDelay, p.MinDelay, p.MaxDelay)
	}
	return nil
}

// Delay draws a uniform delay in [MinDelay, MaxDelay], both ends included,
// at millisecond granularity.
func (p Profile) Delay(rng *rand.Rand) time.Duration {
	lo := p.MinDelay.Milliseconds()
	hi := p.MaxDelay.Milliseconds()
	if hi <= lo {
		return time.Duration(lo) * time.Millisecond
	}
	return time.Duration(lo+rng.Int64N(hi-lo+1)) * time.Millisecond
}

// Hop is one destination of the chain with the snippet tied to its domain.
type Hop struct {
	Domain    string          `json:"domain" yaml:"domain"`
	Script    string          `json:"script" yaml:"script"`
	Placement rules.Placement `json:"placement" yaml:"placement"`
}

// URL is the navigation target of the hop.
func (h Hop) URL() string { return "https://" + h.Domain }

// Chain is an ordered walk ending at Fallback. Current is the hop entry of
// the page the walk starts on, zero when that host belongs to no group.
type Chain struct {
	Current  Hop    `json:"current" yaml:"current"`
	Hops     []Hop  `json:"hops" yaml:"hops"`
	Fallback string `json:"fallback" yaml:"fallback"`
}

// Domains returns the hop domains in walk order.
func (c Chain) Domains() []string {
	out := make([]string, len(c.Hops))
	for i, h := range c.Hops {
		out[i] = h.Domain
	}
	return out
}

// Flatten expands groups into hops in group order. Domains are normalized and
// blanks dropped. With dedupe, a domain listed by several groups keeps its
// first occurrence and that group's snippet.
func Flatten(groups []Group, dedupe bool) []Hop {
	var hops []Hop
	seen := make(map[string]struct{})
	for _, g := range groups {
		for _, d := range g.Domains {
			if d = rules.NormalizeHost(d); d == "" {
				continue
			}
			if dedupe {
				if _, dup := seen[d]; dup {
					continue
				}
				seen[d] = struct{}{}
			}
			hops = append(hops, Hop{Domain: d, Script: g.Script, Placement: g.Placement})
		}
	}
	return hops
}

// Build derives the chain for a visitor currently on host current. Every hop
// for current is dropped; the rest is optionally shuffled with rng. Hosts are
// compared normalized, so cfg need not have gone through Normalize.
func Build(cfg Config, current string, p Profile, rng *rand.Rand) Chain {
	current = rules.NormalizeHost(current)
	c := Chain{Fallback: rules.NormalizeHost(cfg.Fallback)}

	for _, h := range Flatten(cfg.Groups, p.Dedupe) {
		if h.Domain == current {
			if c.Current.Domain == "" {
				c.Current = h
			}
			continue
		}
		c.Hops = append(c.Hops, h)
	}

	if p.Shuffle {
		Shuffle(c.Hops, rng)
	}
	return c
}

// Shuffle is an in-place Fisher-Yates shuffle driven by rng.
func Shuffle(hops []Hop, rng *rand.Rand) {
	for i := len(hops) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		hops[i], hops[j] = hops[j], hops[i]
	}
}

// NewRand returns a generator seeded from seed alone.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SeedFor derives a stable seed for a visitor on a host, so the same visitor
// sees the same order on every page view.
func SeedFor(visitor, host string) uint64 {
	return xxhash.Sum64String(visitor + ":" + rules.NormalizeHost(host))
}
