package api

import (
	"net/http"

	"github.com/TimurManjosov/goplacement/internal/inject"
	"github.com/TimurManjosov/goplacement/internal/resolver"
	"github.com/TimurManjosov/goplacement/internal/rules"
)

type resolveResponse struct {
	Host      string              `json:"host"`
	Source    rules.Source        `json:"source"`
	Decisions []resolver.Decision `json:"decisions"`
}

type renderResponse struct {
	Host   string       `json:"host"`
	Source rules.Source `json:"source"`
	inject.Regions
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	set := s.rules.RuleSet(r.Context())
	if set.Rules == nil {
		set.Rules = []rules.Rule{}
	}
	etag := rules.Fingerprint(set)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	host, ok := hostParam(w, r)
	if !ok {
		return
	}
	set := s.rules.RuleSet(r.Context())
	decisions := resolver.Decide(set, host)
	if decisions == nil {
		decisions = []resolver.Decision{}
	}
	writeJSON(w, http.StatusOK, resolveResponse{Host: host, Source: set.Source, Decisions: decisions})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	host, ok := hostParam(w, r)
	if !ok {
		return
	}
	set := s.rules.RuleSet(r.Context())
	writeJSON(w, http.StatusOK, renderResponse{
		Host:    host,
		Source:  set.Source,
		Regions: inject.Render(resolver.Decide(set, host)),
	})
}

func hostParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	host := rules.NormalizeHost(r.URL.Query().Get("host"))
	if host == "" {
		BadRequestErrorWithFields(w, r, ErrCodeMissingField, "host is required",
			map[string]string{"host": "query parameter is required"})
		return "", false
	}
	if rules.CheckDomain(host) != nil {
		ValidationError(w, r, "invalid host", map[string]string{"host": "must be a hostname"})
		return "", false
	}
	return host, true
}
