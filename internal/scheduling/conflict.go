package scheduling

import (
	"context"
	"time"

	"github.com/spec-kit/visit-service/internal/domain"
	"github.com/spec-kit/visit-service/internal/repository"
	apperrors "github.com/spec-kit/visit-service/pkg/util/errorutil"
)

// DefaultConflictWindow is the half-width of the overlap window around a proposed timestamp.
const DefaultConflictWindow = time.Hour

// ConflictDetector finds appointments too close to a proposed timestamp.
type ConflictDetector struct {
	Window time.Duration
	// IgnoreCanceledVisitorAppointments drops canceled appointments from the visitor check.
	// The custodied-person check always ignores them.
	IgnoreCanceledVisitorAppointments bool
}

// NewConflictDetector returns a detector with the given window, or the default when zero.
func NewConflictDetector(window time.Duration, ignoreCanceledVisitor bool) ConflictDetector {
	if window <= 0 {
		window = DefaultConflictWindow
	}
	return ConflictDetector{Window: window, IgnoreCanceledVisitorAppointments: ignoreCanceledVisitor}
}

// CustodiedConflicts lists non-canceled appointments of the custodied person within the window.
func (d ConflictDetector) CustodiedConflicts(ctx context.Context, q repository.AppointmentQueries, custodiedID string, at time.Time, excludeID string) ([]domain.Appointment, error) {
	criteria := repository.NewCriteria().
		ForCustodiedPerson(custodiedID).
		ScheduledBetween(at.Add(-d.Window), at.Add(d.Window)).
		ExcludingStatuses(domain.AppointmentStatusCanceled).
		ExcludingID(excludeID)
	return q.Find(ctx, criteria)
}

// VisitorConflicts lists appointments of the visitor within the window.
func (d ConflictDetector) VisitorConflicts(ctx context.Context, q repository.AppointmentQueries, visitorID string, at time.Time, excludeID string) ([]domain.Appointment, error) {
	criteria := repository.NewCriteria().
		ForVisitor(visitorID).
		ScheduledBetween(at.Add(-d.Window), at.Add(d.Window)).
		ExcludingID(excludeID)
	if d.IgnoreCanceledVisitorAppointments {
		criteria = criteria.ExcludingStatuses(domain.AppointmentStatusCanceled)
	}
	return q.Find(ctx, criteria)
}

// Check runs both sides and reports the first overlap as a scheduling conflict.
func (d ConflictDetector) Check(ctx context.Context, q repository.AppointmentQueries, custodiedID, visitorID string, at time.Time, excludeID string) error {
	custodied, err := d.CustodiedConflicts(ctx, q, custodiedID, at, excludeID)
	if err != nil {
		return err
	}
	if len(custodied) > 0 {
		return apperrors.NewSchedulingConflict("custodied person already has an appointment within the conflict window", map[string]any{
			"reason":                  ReasonCustodiedOverlap,
			"custodied_person_id":     custodiedID,
			"conflicting_appointment": custodied[0].ID,
		})
	}

	visitor, err := d.VisitorConflicts(ctx, q, visitorID, at, excludeID)
	if err != nil {
		return err
	}
	if len(visitor) > 0 {
		return apperrors.NewSchedulingConflict("visitor already has an appointment within the conflict window", map[string]any{
			"reason":                  ReasonVisitorOverlap,
			"visitor_id":              visitorID,
			"conflicting_appointment": visitor[0].ID,
		})
	}
	return nil
}
