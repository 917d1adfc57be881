package chain

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/goplacement/internal/rules"
)

var (
	ErrNoFallback = errors.New("fallback domain is required")
	ErrEmptyGroup = errors.New("group has no domains")
)

// Group is a set of domains sharing one snippet and placement.
type Group struct {
	Name      string          `json:"name" yaml:"name"`
	Domains   []string        `json:"domains" yaml:"domains"`
	Placement rules.Placement `json:"placement" yaml:"placement"`
	Script    string          `json:"script" yaml:"script"`
}

// Config is the static input of chain construction.
type Config struct {
	Fallback string  `json:"fallback" yaml:"fallback"`
	Groups   []Group `json:"groups" yaml:"groups"`
}

// LoadConfig reads and normalizes a YAML chain config.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read chain config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML (JSON is accepted too) and normalizes it.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse chain config: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize lower-cases domains, drops blanks and maps the "footer"
// placement onto body. It fails on a missing fallback, an empty group, an
// unknown placement or a domain that is not a hostname.
func (c *Config) Normalize() error {
	if strings.TrimSpace(c.Fallback) == "" {
		return ErrNoFallback
	}
	if err := rules.CheckDomain(c.Fallback); err != nil {
		return fmt.Errorf("fallback: %w", err)
	}
	c.Fallback = rules.NormalizeHost(c.Fallback)

	for i := range c.Groups {
		g := &c.Groups[i]
		name := g.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}

		switch strings.ToLower(strings.TrimSpace(string(g.Placement))) {
		case "head":
			g.Placement = rules.PlacementHead
		case "body", "footer", "":
			g.Placement = rules.PlacementBody
		default:
			return fmt.Errorf("group %s: %w: %q", name, rules.ErrInvalidPlacement, g.Placement)
		}

		domains := make([]string, 0, len(g.Domains))
		for _, d := range g.Domains {
			if strings.TrimSpace(d) == "" {
				continue
			}
			if err := rules.CheckDomain(d); err != nil {
				return fmt.Errorf("group %s: %w", name, err)
			}
			domains = append(domains, rules.NormalizeHost(d))
		}
		if len(domains) == 0 {
			return fmt.Errorf("group %s: %w", name, ErrEmptyGroup)
		}
		g.Domains = domains
	}
	return nil
}
