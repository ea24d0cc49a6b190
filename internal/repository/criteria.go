package repository

import (
	"time"

	"github.com/spec-kit/visit-service/internal/domain"
)

// SortOrder selects the scheduled timestamp ordering of query results.
type SortOrder int

const (
	// SortDefault orders ascending when a time range is set and descending otherwise.
	SortDefault SortOrder = iota
	SortAscending
	SortDescending
)

// Criteria selects appointments. Zero-valued fields place no constraint.
// Build it with NewCriteria and the chained methods.
type Criteria struct {
	CustodiedPersonID string
	VisitorID         string
	ScheduledFrom     *time.Time
	ScheduledTo       *time.Time
	Statuses          []domain.AppointmentStatus
	ExcludeStatuses   []domain.AppointmentStatus
	ExcludeID         string
	Order             SortOrder
	Limit             int
	Offset            int
}

// NewCriteria returns an unconstrained criteria.
func NewCriteria() Criteria {
	return Criteria{}
}

// ForCustodiedPerson restricts results to one custodied person.
func (c Criteria) ForCustodiedPerson(id string) Criteria {
	c.CustodiedPersonID = id
	return c
}

// ForVisitor restricts results to one visitor.
func (c Criteria) ForVisitor(id string) Criteria {
	c.VisitorID = id
	return c
}

// ScheduledBetween restricts results to timestamps in [from, to], both inclusive.
func (c Criteria) ScheduledBetween(from, to time.Time) Criteria {
	c.ScheduledFrom = &from
	c.ScheduledTo = &to
	return c
}

// ScheduledFromTime sets only the lower bound.
func (c Criteria) ScheduledFromTime(from time.Time) Criteria {
	c.ScheduledFrom = &from
	return c
}

// ScheduledUntil sets only the upper bound.
func (c Criteria) ScheduledUntil(to time.Time) Criteria {
	c.ScheduledTo = &to
	return c
}

// WithStatuses keeps only the given statuses.
func (c Criteria) WithStatuses(statuses ...domain.AppointmentStatus) Criteria {
	c.Statuses = append([]domain.AppointmentStatus(nil), statuses...)
	return c
}

// ExcludingStatuses drops the given statuses.
func (c Criteria) ExcludingStatuses(statuses ...domain.AppointmentStatus) Criteria {
	c.ExcludeStatuses = append([]domain.AppointmentStatus(nil), statuses...)
	return c
}

// ExcludingID drops one appointment, typically the one being updated.
func (c Criteria) ExcludingID(id string) Criteria {
	c.ExcludeID = id
	return c
}

// Paginate sets limit and offset.
func (c Criteria) Paginate(limit, offset int) Criteria {
	c.Limit = limit
	c.Offset = offset
	return c
}

// OrderBy overrides the default ordering.
func (c Criteria) OrderBy(order SortOrder) Criteria {
	c.Order = order
	return c
}

// ascending resolves SortDefault: range queries ascend, generic listings descend.
func (c Criteria) ascending() bool {
	switch c.Order {
	case SortAscending:
		return true
	case SortDescending:
		return false
	default:
		return c.ScheduledFrom != nil || c.ScheduledTo != nil
	}
}

// Matches evaluates the criteria against one appointment, ignoring ordering and pagination.
func (c Criteria) Matches(appt *domain.Appointment) bool {
	if c.CustodiedPersonID != "" && appt.CustodiedPersonID != c.CustodiedPersonID {
		return false
	}
	if c.VisitorID != "" && appt.VisitorID != c.VisitorID {
		return false
	}
	if c.ScheduledFrom != nil && appt.ScheduledAt.Before(*c.ScheduledFrom) {
		return false
	}
	if c.ScheduledTo != nil && appt.ScheduledAt.After(*c.ScheduledTo) {
		return false
	}
	if c.ExcludeID != "" && appt.ID == c.ExcludeID {
		return false
	}
	if len(c.Statuses) > 0 && !containsStatus(c.Statuses, appt.Status) {
		return false
	}
	if containsStatus(c.ExcludeStatuses, appt.Status) {
		return false
	}
	return true
}

func containsStatus(statuses []domain.AppointmentStatus, status domain.AppointmentStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}
