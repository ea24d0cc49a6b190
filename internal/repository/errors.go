package repository

import "errors"

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrOverlap is returned when the store rejects a write that would overlap another appointment.
	ErrOverlap = errors.New("appointment overlaps an existing appointment")
	// ErrMissingReference is returned when a write points at a custodied person or visitor that does not exist.
	ErrMissingReference = errors.New("referenced record does not exist")
)

// Reference fields reported by MissingReferenceError.
const (
	FieldCustodiedPersonID = "custodied_person_id"
	FieldVisitorID         = "visitor_id"
)

// MissingReferenceError names the appointment field whose referenced row is gone.
type MissingReferenceError struct {
	Field      string
	Constraint string
}

func (e *MissingReferenceError) Error() string {
	if e.Field == "" {
		return ErrMissingReference.Error() + ": " + e.Constraint
	}
	return ErrMissingReference.Error() + ": " + e.Field
}

func (e *MissingReferenceError) Unwrap() error {
	return ErrMissingReference
}
