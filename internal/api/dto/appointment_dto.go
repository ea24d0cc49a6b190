package dto

import (
	"time"

	"github.com/spec-kit/visit-service/internal/domain"
)

// CreateAppointmentRequest payload.
type CreateAppointmentRequest struct {
	CustodiedPersonID string     `json:"custodied_person_id"`
	VisitorID         string     `json:"visitor_id"`
	ScheduledAt       *time.Time `json:"scheduled_at"`
	Note              string     `json:"note"`
}

// UpdateAppointmentRequest payload. Every field but status is required.
type UpdateAppointmentRequest struct {
	CustodiedPersonID string     `json:"custodied_person_id"`
	VisitorID         string     `json:"visitor_id"`
	ScheduledAt       *time.Time `json:"scheduled_at"`
	Note              string     `json:"note"`
	Status            *string    `json:"status"`
}

// AppointmentResponse is an appointment enriched with display names.
type AppointmentResponse struct {
	ID                  string                   `json:"id"`
	CustodiedPersonID   string                   `json:"custodied_person_id"`
	CustodiedPersonName string                   `json:"custodied_person_name,omitempty"`
	VisitorID           string                   `json:"visitor_id"`
	VisitorName         string                   `json:"visitor_name,omitempty"`
	ScheduledAt         time.Time                `json:"scheduled_at"`
	Status              domain.AppointmentStatus `json:"status"`
	Note                string                   `json:"note"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

// PageMeta describes a listing page.
type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}
