package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/TimurManjosov/goplacement/internal/audit"
	"github.com/TimurManjosov/goplacement/internal/options"
)

const maxOptionsBody = 256 << 10

type optionsResponse struct {
	Options map[string]string `json:"options"`
}

func (s *Server) handleGetOptions(w http.ResponseWriter, r *http.Request) {
	values, err := s.currentOptions(r)
	if err != nil {
		s.log.Error().Err(err).Msg("read options")
		InternalError(w, r, "failed to read options")
		return
	}
	writeJSON(w, http.StatusOK, optionsResponse{Options: values})
}

// handlePutOptions applies a partial update: only the keys present in the
// body change, and an empty value clears a key.
func (s *Server) handlePutOptions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxOptionsBody)

	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(w, r, "request body too large")
			return
		}
		BadRequestError(w, r, ErrCodeInvalidJSON, "body must be a JSON object of option values")
		return
	}
	if len(req) == 0 {
		BadRequestError(w, r, ErrCodeBadRequest, "no options given")
		return
	}

	var unknown []string
	for k := range req {
		if !options.IsKnownKey(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		fields := make(map[string]string, len(unknown))
		for _, k := range unknown {
			fields[k] = "unknown option"
		}
		BadRequestErrorWithFields(w, r, ErrCodeUnknownOption, "unknown option: "+strings.Join(unknown, ", "), fields)
		return
	}

	after, ok := s.saveOptions(w, r, normalizeOptions(req))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, optionsResponse{Options: after})
}

// saveOptions validates, writes and audits values. On failure it has
// already written the error response.
func (s *Server) saveOptions(w http.ResponseWriter, r *http.Request, values map[string]string) (map[string]string, bool) {
	if fields := options.Validate(values); fields != nil {
		ValidationError(w, r, "invalid option values", fields)
		return nil, false
	}

	before, err := s.currentOptions(r)
	if err != nil {
		s.log.Error().Err(err).Msg("read options")
		InternalError(w, r, "failed to read options")
		return nil, false
	}

	builder := audit.NewEventBuilder(r).
		ForResource(audit.ResourceTypeOptions, "settings").
		WithAction(audit.ActionUpdated)

	if err := s.store.Set(r.Context(), values); err != nil {
		s.log.Error().Err(err).Msg("write options")
		s.auditor.Log(builder.Failure(err.Error()).Build())
		InternalError(w, r, "failed to save options")
		return nil, false
	}

	after, err := s.currentOptions(r)
	if err != nil {
		s.log.Error().Err(err).Msg("read options")
		InternalError(w, r, "failed to read options")
		return nil, false
	}

	s.auditor.Log(builder.WithStates(audit.OptionsState(before), audit.OptionsState(after)).Build())
	s.log.Info().Strs("keys", changedKeys(before, after)).Msg("options updated")
	return after, true
}

// currentOptions returns every known key, "" for unset ones.
func (s *Server) currentOptions(r *http.Request) (map[string]string, error) {
	stored, err := s.store.All(r.Context())
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(options.Keys))
	for _, k := range options.Keys {
		out[k] = stored[k]
	}
	return out, nil
}

// normalizeOptions trims surrounding whitespace and CRLF line endings from
// every value.
func normalizeOptions(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[k] = strings.TrimSpace(strings.ReplaceAll(v, "\r\n", "\n"))
	}
	return out
}

func changedKeys(before, after map[string]string) []string {
	var keys []string
	for _, k := range options.Keys {
		if before[k] != after[k] {
			keys = append(keys, k)
		}
	}
	return keys
}
