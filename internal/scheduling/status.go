package scheduling

import (
	"strings"

	"github.com/spec-kit/visit-service/internal/domain"
	apperrors "github.com/spec-kit/visit-service/pkg/util/errorutil"
)

var allowedTransitions = map[domain.AppointmentStatus][]domain.AppointmentStatus{
	domain.AppointmentStatusScheduled: {domain.AppointmentStatusConfirmed, domain.AppointmentStatusCanceled},
	domain.AppointmentStatusConfirmed: {domain.AppointmentStatusCompleted, domain.AppointmentStatusCanceled},
	domain.AppointmentStatusCompleted: {},
	domain.AppointmentStatusCanceled:  {},
}

// InitialStatus is the status of every newly created appointment.
const InitialStatus = domain.AppointmentStatusScheduled

// CanTransition reports whether next is a legal successor of current.
// Same-status requests are not transitions and are rejected.
func CanTransition(current, next domain.AppointmentStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Transition validates the edge current -> next.
func Transition(current, next domain.AppointmentStatus) error {
	if !CanTransition(current, next) {
		return apperrors.NewInvalidOperation("invalid status transition", map[string]any{
			"from": current,
			"to":   next,
		})
	}
	return nil
}

// ParseStatus resolves a status code. Unknown codes are a missing resource.
func ParseStatus(raw string) (domain.AppointmentStatus, error) {
	status := domain.AppointmentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", apperrors.NewNotFound("status", map[string]any{"status": raw})
	}
	return status, nil
}
