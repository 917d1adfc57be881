package chain

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goplacement/internal/rules"
)

var ErrAlreadyStarted = errors.New("walk already started")

// State of a walk.
type State int

const (
	Idle State = iota
	Waiting
	Redirecting
	Terminal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Redirecting:
		return "redirecting"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Navigator sends the visitor to a URL.
type Navigator interface {
	Navigate(url string)
}

// Injector writes a snippet into a page region.
type Injector interface {
	Inject(domain string, placement rules.Placement, script string)
}

// Walker drives one visitor through a chain. Steps run one at a time; the
// Navigator and Injector are called with the walker's lock held and must not
// call back into it.
type Walker struct {
	id      uuid.UUID
	chain   Chain
	profile Profile
	clock   Clock
	rng     *rand.Rand
	nav     Navigator
	inj     Injector
	log     zerolog.Logger

	mu      sync.Mutex
	state   State
	next    int
	timer   Timer
	delays  []time.Duration
	stopped bool
	done    chan struct{}
}

// NewWalker prepares a walk over c. Nothing happens until Start.
func NewWalker(c Chain, p Profile, clock Clock, rng *rand.Rand, nav Navigator, inj Injector, log zerolog.Logger) *Walker {
	id := uuid.New()
	return &Walker{
		id:      id,
		chain:   c,
		profile: p,
		clock:   clock,
		rng:     rng,
		nav:     nav,
		inj:     inj,
		log:     log.With().Str("walk_id", id.String()).Str("profile", p.Name).Logger(),
		done:    make(chan struct{}),
	}
}

// ID identifies the walk in logs.
func (w *Walker) ID() uuid.UUID { return w.id }

// State returns where the walk currently is.
func (w *Walker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Delays returns every delay scheduled so far, in order.
func (w *Walker) Delays() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.delays...)
}

// Stopped reports whether the walk was cancelled before reaching the fallback.
func (w *Walker) Stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// Done is closed once the walk is Terminal.
func (w *Walker) Done() <-chan struct{} { return w.done }

// Start plays the page-load event of the first page.
func (w *Walker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Idle {
		return ErrAlreadyStarted
	}
	w.log.Debug().Int("hops", len(w.chain.Hops)).Str("fallback", w.chain.Fallback).Msg("walk started")
	if w.profile.Inject == InjectCurrent {
		w.inject(w.chain.Current)
	}
	w.wait()
	return nil
}

// Stop cancels the pending step and makes the walk Terminal without a
// final navigation. It is a no-op on a finished walk.
func (w *Walker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Terminal {
		return
	}
	w.stopped = true
	w.finish()
	w.log.Debug().Int("visited", w.next).Msg("walk stopped")
}

// wait injects the upcoming snippet when the profile asks for it and
// schedules the next step. w.mu must be held.
func (w *Walker) wait() {
	if w.profile.Inject == InjectUpcoming && w.next < len(w.chain.Hops) {
		w.inject(w.chain.Hops[w.next])
	}
	d := w.profile.Delay(w.rng)
	w.delays = append(w.delays, d)
	w.state = Waiting
	w.timer = w.clock.AfterFunc(d, w.step)
}

func (w *Walker) step() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Waiting {
		return
	}
	w.state = Redirecting

	if w.next >= len(w.chain.Hops) {
		w.nav.Navigate("https://" + w.chain.Fallback)
		w.log.Debug().Str("domain", w.chain.Fallback).Msg("reached fallback")
		w.finish()
		return
	}

	hop := w.chain.Hops[w.next]
	w.next++
	w.nav.Navigate(hop.URL())
	w.log.Debug().Str("domain", hop.Domain).Int("hop", w.next).Msg("redirected")

	if w.profile.Inject == InjectCurrent {
		w.inject(hop)
	}
	w.wait()
}

func (w *Walker) inject(h Hop) {
	if h.Script == "" {
		return
	}
	w.inj.Inject(h.Domain, h.Placement, h.Script)
}

// finish enters Terminal and stops the timer loop. w.mu must be held.
func (w *Walker) finish() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.state = Terminal
	close(w.done)
}
