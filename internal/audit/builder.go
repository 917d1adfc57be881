package audit

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/TimurManjosov/goplacement/internal/auth"
)

// EventBuilder provides a fluent API for constructing audit events.
//
// Usage:
//
//	event := audit.NewEventBuilder(r).
//		ForResource(audit.ResourceTypeOptions, "settings").
//		WithAction(audit.ActionUpdated).
//		WithStates(before, after).
//		Build()
//
//	service.Log(event)
type EventBuilder struct {
	event Event
}

// NewEventBuilder creates a builder initialized from the request: request ID,
// actor and source.
func NewEventBuilder(r *http.Request) *EventBuilder {
	actor := Actor{Kind: ActorKindSystem, Display: "system"}
	if method, ok := auth.MethodFromContext(r.Context()); ok {
		actor = Actor{Kind: ActorKindAdmin, Display: "admin:" + string(method)}
	}

	return &EventBuilder{
		event: Event{
			RequestID: middleware.GetReqID(r.Context()),
			Actor:     actor,
			Source: Source{
				IPAddress: ClientIP(r),
				UserAgent: r.UserAgent(),
			},
			Status: StatusSuccess,
		},
	}
}

// ClientIP returns the host part of RemoteAddr. Behind chi's RealIP
// middleware that is already the forwarded client address.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ForResource sets the resource type and ID for the event.
func (b *EventBuilder) ForResource(resourceType, resourceID string) *EventBuilder {
	b.event.ResourceType = resourceType
	b.event.ResourceID = resourceID
	return b
}

// WithAction sets the action for the event.
func (b *EventBuilder) WithAction(action string) *EventBuilder {
	b.event.Action = action
	return b
}

// WithStates sets before and after state and the changes between them.
func (b *EventBuilder) WithStates(before, after map[string]any) *EventBuilder {
	b.event.BeforeState = before
	b.event.AfterState = after
	b.event.Changes = ComputeChanges(before, after)
	return b
}

// Failure marks the event as failed and sets an error message.
func (b *EventBuilder) Failure(errorMsg string) *EventBuilder {
	b.event.Status = StatusFailure
	if errorMsg != "" {
		b.event.ErrorMessage = &errorMsg
	}
	return b
}

// Build returns the constructed Event.
func (b *EventBuilder) Build() Event {
	return b.event
}
