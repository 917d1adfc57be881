// Package resolver decides which scripts a page on a given hostname receives.
//
// Every call re-reads configuration: the remote rules document when a config
// URL is set, otherwise the local fallback options. Nothing is cached between
// calls and no failure is fatal; a broken remote silently degrades to the
// local rules, and broken local options degrade to no scripts at all.
package resolver

import (
	"context"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/TimurManjosov/goplacement/internal/options"
	"github.com/TimurManjosov/goplacement/internal/remote"
	"github.com/TimurManjosov/goplacement/internal/rules"
	"github.com/TimurManjosov/goplacement/internal/telemetry"
)

// Fetcher loads the remote rules document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*remote.Result, error)
}

// Decision is one script to emit on the current page.
type Decision struct {
	Placement rules.Placement `json:"placement"`
	Delivery  rules.Delivery  `json:"delivery"`
	Content   string          `json:"content"`
	Handle    string          `json:"handle"`
}

// Resolver turns options and the remote document into emit decisions.
type Resolver struct {
	opts    options.Provider
	fetcher Fetcher
	log     zerolog.Logger
}

// New creates a Resolver. opts supplies both the config URL and the local fallback.
func New(opts options.Provider, fetcher Fetcher, log zerolog.Logger) *Resolver {
	return &Resolver{opts: opts, fetcher: fetcher, log: log}
}

// RuleSet loads the effective rules: the remote document when it can be
// fetched and has a rules array, the local options otherwise.
func (r *Resolver) RuleSet(ctx context.Context) rules.RuleSet {
	ctx, span := otel.Tracer("goplacement/resolver").Start(ctx, "resolver.RuleSet")
	defer span.End()

	set := r.load(ctx)
	span.SetAttributes(attribute.String("rules.source", string(set.Source)), attribute.Int("rules.count", len(set.Rules)))
	telemetry.Resolutions.WithLabelValues(string(set.Source)).Inc()
	return set
}

func (r *Resolver) load(ctx context.Context) rules.RuleSet {
	url, err := r.opts.Get(ctx, options.KeyConfigURL)
	if err != nil {
		r.log.Warn().Err(err).Msg("config url unavailable, using local rules")
	}

	if url != "" {
		res, err := r.fetcher.Fetch(ctx, url)
		if err == nil {
			for _, s := range res.Skipped {
				r.log.Warn().Int("index", s.Index).Err(s.Err).Str("url", url).Msg("skipping remote rule")
			}
			return rules.RuleSet{Source: rules.SourceRemote, Rules: res.Rules}
		}
		reason := remote.Reason(err)
		telemetry.RemoteFallbacks.WithLabelValues(reason).Inc()
		r.log.Warn().Err(err).Str("url", url).Str("reason", reason).Msg("remote rules unavailable, using local rules")
	}

	local, err := options.Local(ctx, r.opts)
	if err != nil {
		r.log.Error().Err(err).Msg("local options unavailable, emitting nothing")
		return rules.RuleSet{Source: rules.SourceLocal}
	}
	return rules.RuleSet{Source: rules.SourceLocal, Rules: rules.FromLocal(local)}
}

// Resolve returns the decisions for host in rule order. An unmatched host
// yields an empty (nil) slice.
func (r *Resolver) Resolve(ctx context.Context, host string) []Decision {
	set := r.RuleSet(ctx)
	return Decide(set, host)
}

// Decide applies a loaded rule set to host without any I/O.
func Decide(set rules.RuleSet, host string) []Decision {
	var out []Decision
	for _, rule := range set.Match(host) {
		out = append(out, Decision{
			Placement: rule.Placement,
			Delivery:  rule.Delivery,
			Content:   rule.Content,
			Handle:    Handle(rule.Content),
		})
		telemetry.Decisions.WithLabelValues(string(rule.Placement), string(rule.Delivery)).Inc()
	}
	return out
}

// Handle derives a stable script identifier from its content, so the same
// external URL requested by two rules is only emitted once.
func Handle(content string) string {
	return "ads-" + strconv.FormatUint(xxhash.Sum64String(content), 16)
}
