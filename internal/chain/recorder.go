package chain

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goplacement/internal/rules"
)

// Event is one navigation or injection observed during a walk.
type Event struct {
	At        time.Time       `json:"at" yaml:"at"`
	Kind      string          `json:"kind" yaml:"kind"`
	Domain    string          `json:"domain" yaml:"domain"`
	Placement rules.Placement `json:"placement,omitempty" yaml:"placement,omitempty"`
	Script    string          `json:"script,omitempty" yaml:"script,omitempty"`
}

const (
	EventNavigate = "navigate"
	EventInject   = "inject"
)

// Recorder implements Navigator and Injector by keeping every call.
type Recorder struct {
	clock Clock

	mu     sync.Mutex
	events []Event
}

// NewRecorder stamps every event with the time read from clock.
func NewRecorder(clock Clock) *Recorder {
	return &Recorder{clock: clock}
}

// Navigate records a navigation event.
func (r *Recorder) Navigate(url string) {
	r.add(Event{Kind: EventNavigate, Domain: url})
}

// Inject records an injection event.
func (r *Recorder) Inject(domain string, placement rules.Placement, script string) {
	r.add(Event{Kind: EventInject, Domain: domain, Placement: placement, Script: script})
}

func (r *Recorder) add(e Event) {
	e.At = r.clock.Now()
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Navigations returns the navigated URLs in order.
func (r *Recorder) Navigations() []string {
	var out []string
	for _, e := range r.Events() {
		if e.Kind == EventNavigate {
			out = append(out, e.Domain)
		}
	}
	return out
}

// LogSink implements Navigator and Injector by logging.
type LogSink struct {
	Log zerolog.Logger
}

// Navigate logs the target URL.
func (s LogSink) Navigate(url string) {
	s.Log.Info().Str("url", url).Msg("navigate")
}

// Inject logs the domain and snippet size, not the snippet itself.
func (s LogSink) Inject(domain string, placement rules.Placement, script string) {
	s.Log.Info().Str("domain", domain).Str("placement", string(placement)).Int("bytes", len(script)).Msg("inject")
}
