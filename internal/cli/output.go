package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/goplacement/internal/chain"
	"github.com/TimurManjosov/goplacement/internal/client"
	"github.com/TimurManjosov/goplacement/internal/rules"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// Printer writes command results in one format.
type Printer struct {
	W      io.Writer
	Format OutputFormat
}

// print encodes data as JSON or YAML, or calls table for the table format.
func (p Printer) print(data any, table func(*tablewriter.Table) error) error {
	switch p.Format {
	case FormatJSON:
		encoder := json.NewEncoder(p.W)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case FormatYAML:
		encoder := yaml.NewEncoder(p.W)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(data)
	case FormatTable, "":
		t := tablewriter.NewWriter(p.W)
		if err := table(t); err != nil {
			return err
		}
		return t.Render()
	default:
		return fmt.Errorf("unsupported format: %s", p.Format)
	}
}

// Resolution prints the decisions for one host.
func (p Printer) Resolution(r *client.Resolution) error {
	return p.print(r, func(t *tablewriter.Table) error {
		t.Header("Placement", "Delivery", "Handle", "Content")
		for _, d := range r.Decisions {
			if err := t.Append(string(d.Placement), string(d.Delivery), d.Handle, truncate(d.Content, 60)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Rendering prints the head and footer markup. The table format prints the
// raw markup since it rarely fits a cell.
func (p Printer) Rendering(r *client.Rendering) error {
	if p.Format == FormatTable || p.Format == "" {
		_, err := fmt.Fprintf(p.W, "<!-- head (%s) -->\n%s\n<!-- footer -->\n%s\n", r.Source, r.Head, r.Footer)
		return err
	}
	return p.print(r, nil)
}

// Rules prints a rule set.
func (p Printer) Rules(set rules.RuleSet) error {
	if set.Rules == nil {
		set.Rules = []rules.Rule{}
	}
	return p.print(set, func(t *tablewriter.Table) error {
		t.Header("#", "Domains", "Placement", "Delivery", "Content")
		for i, r := range set.Rules {
			if err := t.Append(strconv.Itoa(i), strings.Join(r.Domains, ", "), string(r.Placement), string(r.Delivery), truncate(r.Content, 50)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Options prints option values in key order.
func (p Printer) Options(values map[string]string) error {
	return p.print(values, func(t *tablewriter.Table) error {
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		t.Header("Key", "Value")
		for _, k := range keys {
			if err := t.Append(k, truncate(values[k], 70)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Plan is a built chain for display.
type Plan struct {
	Profile  string      `json:"profile" yaml:"profile"`
	Seed     uint64      `json:"seed" yaml:"seed"`
	Current  string      `json:"current,omitempty" yaml:"current,omitempty"`
	Hops     []chain.Hop `json:"hops" yaml:"hops"`
	Fallback string      `json:"fallback" yaml:"fallback"`
}

// Plan prints the hop order of a chain.
func (p Printer) Plan(plan Plan) error {
	if plan.Hops == nil {
		plan.Hops = []chain.Hop{}
	}
	return p.print(plan, func(t *tablewriter.Table) error {
		t.Header("#", "Domain", "Placement", "Script")
		for i, h := range plan.Hops {
			if err := t.Append(strconv.Itoa(i+1), h.Domain, string(h.Placement), truncate(h.Script, 50)); err != nil {
				return err
			}
		}
		return t.Append("-", plan.Fallback, "fallback", "")
	})
}

// Events prints a recorded walk, with times relative to start.
func (p Printer) Events(start time.Time, events []chain.Event) error {
	if events == nil {
		events = []chain.Event{}
	}
	return p.print(events, func(t *tablewriter.Table) error {
		t.Header("At", "Event", "Target", "Placement")
		for _, e := range events {
			if err := t.Append(e.At.Sub(start).String(), e.Kind, e.Domain, string(e.Placement)); err != nil {
				return err
			}
		}
		return nil
	})
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
