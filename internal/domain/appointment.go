package domain

import "time"

// AppointmentStatus enumerates lifecycle states for visit appointments.
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "SCHEDULED"
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCanceled  AppointmentStatus = "CANCELED"
)

// AppointmentStatuses lists every known status.
var AppointmentStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusConfirmed,
	AppointmentStatusCompleted,
	AppointmentStatusCanceled,
}

// Valid reports whether the status is one of the known values.
func (s AppointmentStatus) Valid() bool {
	for _, known := range AppointmentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions leave the status.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCanceled
}

// Appointment is a scheduled visit between a custodied person and a visitor.
type Appointment struct {
	ID                string
	CustodiedPersonID string
	VisitorID         string
	ScheduledAt       time.Time
	Status            AppointmentStatus
	Note              string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
