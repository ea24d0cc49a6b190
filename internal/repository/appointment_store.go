package repository

import (
	"context"

	"github.com/spec-kit/visit-service/internal/domain"
)

// AppointmentQueries are the read operations shared by the store and its transactions.
type AppointmentQueries interface {
	GetByID(ctx context.Context, id string) (*domain.Appointment, error)
	Find(ctx context.Context, criteria Criteria) ([]domain.Appointment, error)
	Count(ctx context.Context, criteria Criteria) (int, error)
}

// AppointmentTx is the view of the store inside one atomic scheduling operation.
type AppointmentTx interface {
	AppointmentQueries
	// Lock serializes the transaction against others holding any of the same keys.
	Lock(ctx context.Context, keys ...string) error
	// GetForUpdate loads an appointment and holds it until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Appointment, error)
	Create(ctx context.Context, appt *domain.Appointment) error
	Update(ctx context.Context, appt *domain.Appointment) error
}

// AppointmentStore persists appointments.
type AppointmentStore interface {
	AppointmentQueries
	// RunInTx runs fn atomically. Nothing fn wrote survives if it returns an error.
	RunInTx(ctx context.Context, fn func(tx AppointmentTx) error) error
}

// CustodiedLockKey is the lock key guarding a custodied person's appointment set.
func CustodiedLockKey(id string) string {
	return "custodied:" + id
}

// VisitorLockKey is the lock key guarding a visitor's appointment set.
func VisitorLockKey(id string) string {
	return "visitor:" + id
}
