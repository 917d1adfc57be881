// Package audit records administrative changes to placement options.
package audit

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Action constants for audit logging
const (
	ActionUpdated    = "updated"
	ActionAuthFailed = "auth_failed"
)

// ResourceType constants for audit logging
const (
	ResourceTypeOptions = "options"
	ResourceTypeSystem  = "system"
)

// Status constants for audit logging
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ActorKind constants for audit logging
const (
	ActorKindAdmin  = "admin"
	ActorKindSystem = "system"
)

// Clock interface for testable time operations
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator interface for testable ID generation
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator implements IDGenerator using UUID v4
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string { return uuid.NewString() }

// Redactor interface for removing sensitive data
type Redactor interface {
	Redact(data map[string]any) map[string]any
}

// DefaultRedactor implements basic redaction
type DefaultRedactor struct {
	sensitiveKeys []string
}

func NewDefaultRedactor() *DefaultRedactor {
	return &DefaultRedactor{
		sensitiveKeys: []string{
			"password", "secret", "token", "api_key", "admin_api_key",
			"authorization", "cookie", "session",
		},
	}
}

func (r *DefaultRedactor) Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	redacted := make(map[string]any, len(data))
	for k, v := range data {
		isSensitive := false
		for _, sensitive := range r.sensitiveKeys {
			if k == sensitive {
				isSensitive = true
				break
			}
		}

		if isSensitive {
			redacted[k] = "[REDACTED]"
		} else if nested, ok := v.(map[string]any); ok {
			redacted[k] = r.Redact(nested)
		} else {
			redacted[k] = v
		}
	}
	return redacted
}

// Actor represents who performed the action
type Actor struct {
	Kind    string `json:"kind"`
	Display string `json:"display"`
}

// Source represents request metadata
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Event is one audited action.
type Event struct {
	ID           string         `json:"id"`
	OccurredAt   time.Time      `json:"occurred_at"`
	RequestID    string         `json:"request_id"`
	Actor        Actor          `json:"actor"`
	Source       Source         `json:"source"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	BeforeState  map[string]any `json:"before_state,omitempty"`
	AfterState   map[string]any `json:"after_state,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage *string        `json:"error_message,omitempty"`
}

// Sink persists audit events
type Sink interface {
	Write(ctx context.Context, event Event) error
}

// Service queues audit events and writes them to a sink in the background.
type Service struct {
	sink     Sink
	clock    Clock
	idgen    IDGenerator
	redactor Redactor
	log      zerolog.Logger
	queue    chan Event
	stopCh   chan struct{}
	done     chan struct{}
	closed   int32
}

// NewService creates a new audit service. Nil collaborators get defaults.
func NewService(sink Sink, clock Clock, idgen IDGenerator, redactor Redactor, queueSize int, log zerolog.Logger) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if idgen == nil {
		idgen = UUIDGenerator{}
	}
	if redactor == nil {
		redactor = NewDefaultRedactor()
	}

	s := &Service{
		sink:     sink,
		clock:    clock,
		idgen:    idgen,
		redactor: redactor,
		log:      log,
		queue:    make(chan Event, queueSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.worker()
	return s
}

func (s *Service) worker() {
	defer close(s.done)
	for {
		select {
		case event := <-s.queue:
			s.write(event)
		case <-s.stopCh:
			for {
				select {
				case event := <-s.queue:
					s.write(event)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) write(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.sink.Write(ctx, event); err != nil {
		s.log.Error().Err(err).Str("event_id", event.ID).Msg("failed to write audit event")
	}
}

// Close stops accepting events and waits until the queue is drained.
// Safe to call more than once.
func (s *Service) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	close(s.stopCh)
	<-s.done
	return nil
}

// Log queues an event. It never blocks; when the queue is full the event is dropped.
func (s *Service) Log(event Event) {
	if atomic.LoadInt32(&s.closed) == 1 {
		s.log.Warn().Str("action", event.Action).Msg("audit service closed, dropping event")
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}
	if event.RequestID == "" {
		event.RequestID = s.idgen.Generate()
	}
	event.BeforeState = s.redactor.Redact(event.BeforeState)
	event.AfterState = s.redactor.Redact(event.AfterState)
	event.Changes = s.redactor.Redact(event.Changes)

	select {
	case s.queue <- event:
	default:
		s.log.Warn().Str("resource", event.ResourceType+"/"+event.ResourceID).Msg("audit queue full, dropping event")
	}
}

// ComputeChanges computes the difference between before and after states
func ComputeChanges(before, after map[string]any) map[string]any {
	if before == nil && after == nil {
		return nil
	}
	if before == nil {
		before = make(map[string]any)
	}
	if after == nil {
		after = make(map[string]any)
	}

	changes := make(map[string]any)
	for key, afterVal := range after {
		beforeVal, existedBefore := before[key]
		beforeJSON, _ := json.Marshal(beforeVal)
		afterJSON, _ := json.Marshal(afterVal)

		if !existedBefore || string(beforeJSON) != string(afterJSON) {
			changes[key] = map[string]any{
				"before": beforeVal,
				"after":  afterVal,
			}
		}
	}
	for key, beforeVal := range before {
		if _, existsAfter := after[key]; !existsAfter {
			changes[key] = map[string]any{
				"before": beforeVal,
				"after":  nil,
			}
		}
	}

	if len(changes) == 0 {
		return nil
	}
	return changes
}

// OptionsState converts an option map into audit state.
func OptionsState(values map[string]string) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
