package events

import (
	"context"
	"time"

	"github.com/spec-kit/visit-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAppointmentCreated       EventType = "appointment_created"
	EventAppointmentUpdated       EventType = "appointment_updated"
	EventAppointmentStatusChanged EventType = "appointment_status_changed"
	EventAppointmentCanceled      EventType = "appointment_canceled"
)

// AllEventTypes lists every event the scheduler emits.
var AllEventTypes = []EventType{
	EventAppointmentCreated,
	EventAppointmentUpdated,
	EventAppointmentStatusChanged,
	EventAppointmentCanceled,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	SubjectID string `json:"subject_id,omitempty"`
	Role      string `json:"role,omitempty"`
}

type actorKey struct{}

// ContextWithActor attaches the acting principal to ctx.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the acting principal, or the zero Actor for system calls.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorKey{}).(Actor)
	return actor
}

// Event represents a domain event emitted by services.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	AppointmentID string    `json:"appointment_id"`
	Actor         Actor     `json:"actor"`
	Timestamp     time.Time `json:"timestamp"`
	Payload       any       `json:"payload"`
}

// AppointmentCreatedPayload payload.
type AppointmentCreatedPayload struct {
	CustodiedPersonID string                   `json:"custodied_person_id"`
	VisitorID         string                   `json:"visitor_id"`
	ScheduledAt       time.Time                `json:"scheduled_at"`
	Status            domain.AppointmentStatus `json:"status"`
}

// AppointmentUpdatedPayload payload.
type AppointmentUpdatedPayload struct {
	ChangedFields     []string  `json:"changed_fields"`
	CustodiedPersonID string    `json:"custodied_person_id"`
	VisitorID         string    `json:"visitor_id"`
	ScheduledAt       time.Time `json:"scheduled_at"`
}

// AppointmentStatusChangedPayload payload.
type AppointmentStatusChangedPayload struct {
	OldStatus domain.AppointmentStatus `json:"old_status"`
	NewStatus domain.AppointmentStatus `json:"new_status"`
}

// AppointmentCanceledPayload payload.
type AppointmentCanceledPayload struct {
	PreviousStatus domain.AppointmentStatus `json:"previous_status"`
	ScheduledAt    time.Time                `json:"scheduled_at"`
}
