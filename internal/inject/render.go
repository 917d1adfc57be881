// Package inject renders resolver decisions into page markup and writes that
// markup into HTML documents.
package inject

import (
	"html"
	"strings"

	"github.com/TimurManjosov/goplacement/internal/resolver"
	"github.com/TimurManjosov/goplacement/internal/rules"
)

// Regions is the markup destined for the two page sinks.
type Regions struct {
	Head   string `json:"head"`
	Footer string `json:"footer"`
}

// Empty reports whether there is nothing to inject.
func (r Regions) Empty() bool {
	return r.Head == "" && r.Footer == ""
}

// Render lays out decisions the way a page's script pipeline prints them:
// the head gets enqueued external tags first and inline markup after, the
// footer gets inline markup first and enqueued external tags after.
// External scripts are emitted once per handle, in first-seen order.
func Render(decisions []resolver.Decision) Regions {
	var headExt, headInline, footInline, footExt []string
	seen := make(map[string]struct{})

	for _, d := range decisions {
		switch d.Delivery {
		case rules.DeliveryExternal:
			if d.Content == "" {
				continue
			}
			if _, dup := seen[d.Handle]; dup {
				continue
			}
			seen[d.Handle] = struct{}{}
			tag := scriptTag(d.Handle, d.Content)
			if d.Placement == rules.PlacementBody {
				footExt = append(footExt, tag)
			} else {
				headExt = append(headExt, tag)
			}
		case rules.DeliveryInline:
			if d.Content == "" {
				continue
			}
			if d.Placement == rules.PlacementBody {
				footInline = append(footInline, d.Content)
			} else {
				headInline = append(headInline, d.Content)
			}
		}
	}

	return Regions{
		Head:   strings.Join(append(headExt, headInline...), "\n"),
		Footer: strings.Join(append(footInline, footExt...), "\n"),
	}
}

func scriptTag(handle, src string) string {
	return `<script src="` + html.EscapeString(src) + `" id="` + html.EscapeString(handle) + `-js"></script>`
}
