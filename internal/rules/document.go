package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Document-level errors returned by ParseDocument.
var (
	ErrMalformedDocument = errors.New("malformed rules document")
	ErrMissingRules      = errors.New("rules document has no rules array")
)

// wireRule is the shape of one entry of the remote document. Every field is
// optional on the wire; ParseDocument decides what is acceptable.
type wireRule struct {
	Domains       []string `json:"domains"`
	Placement     string   `json:"placement"`
	ScriptType    string   `json:"script_type"`
	ScriptContent string   `json:"script_content"`
	Enabled       *bool    `json:"enabled,omitempty"`
}

// Skipped describes a document entry that was dropped during parsing.
type Skipped struct {
	Index int
	Err   error
}

func (s Skipped) Error() string {
	return fmt.Sprintf("rules[%d]: %v", s.Index, s.Err)
}

func (s Skipped) Unwrap() error { return s.Err }

// ParseDocument decodes a remote rules document of the form
// {"rules": [{domains, placement, script_type, script_content}, ...]}.
//
// The document is rejected (ErrMalformedDocument / ErrMissingRules) only when
// it is not a JSON object or when "rules" is absent, null or not an array.
// Individual entries that fail validation are skipped and reported, and
// disabled entries are dropped silently.
func ParseDocument(data []byte) ([]Rule, []Skipped, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: document is null", ErrMalformedDocument)
	}

	raw, ok := doc["rules"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil, ErrMissingRules
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMissingRules, err)
	}

	parsed := make([]Rule, 0, len(entries))
	var skipped []Skipped
	for i, entry := range entries {
		var w wireRule
		if err := json.Unmarshal(entry, &w); err != nil {
			skipped = append(skipped, Skipped{Index: i, Err: fmt.Errorf("%w: %v", ErrMalformedDocument, err)})
			continue
		}
		if w.Enabled != nil && !*w.Enabled {
			continue
		}

		r := fromWire(w)
		if err := ValidateRule(r); err != nil {
			skipped = append(skipped, Skipped{Index: i, Err: err})
			continue
		}
		parsed = append(parsed, r)
	}

	return parsed, skipped, nil
}

func fromWire(w wireRule) Rule {
	domains := make([]string, 0, len(w.Domains))
	for _, d := range w.Domains {
		if n := NormalizeHost(d); n != "" {
			domains = append(domains, n)
		}
	}

	content := w.ScriptContent
	if strings.TrimSpace(content) == "" {
		content = ""
	}

	return Rule{
		Domains:   domains,
		Placement: Placement(strings.ToLower(strings.TrimSpace(w.Placement))),
		Delivery:  Delivery(strings.ToLower(strings.TrimSpace(w.ScriptType))),
		Content:   content,
	}
}

// EncodeDocument renders rules in the remote document format.
func EncodeDocument(rs []Rule) ([]byte, error) {
	entries := make([]wireRule, 0, len(rs))
	for _, r := range rs {
		entries = append(entries, wireRule{
			Domains:       r.Domains,
			Placement:     string(r.Placement),
			ScriptType:    string(r.Delivery),
			ScriptContent: r.Content,
		})
	}
	return json.MarshalIndent(map[string]any{"rules": entries}, "", "  ")
}
