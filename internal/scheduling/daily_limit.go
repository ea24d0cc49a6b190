package scheduling

import (
	"context"
	"time"

	"github.com/spec-kit/visit-service/internal/domain"
	"github.com/spec-kit/visit-service/internal/repository"
	apperrors "github.com/spec-kit/visit-service/pkg/util/errorutil"
)

// DefaultDailyLimit caps appointments per custodied person per calendar day.
const DefaultDailyLimit = 2

// Rejection reasons carried in conflict details.
const (
	ReasonDailyLimit       = "daily_limit"
	ReasonCustodiedOverlap = "custodied_overlap"
	ReasonVisitorOverlap   = "visitor_overlap"
)

// DailyLimitPolicy caps how many appointments a custodied person has on one local calendar day.
type DailyLimitPolicy struct {
	Cap int
	// CountCanceled includes canceled appointments in the count.
	CountCanceled bool
	Location      *time.Location
}

// NewDailyLimitPolicy returns a policy, falling back to the default cap and UTC.
func NewDailyLimitPolicy(limit int, countCanceled bool, loc *time.Location) DailyLimitPolicy {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if loc == nil {
		loc = time.UTC
	}
	return DailyLimitPolicy{Cap: limit, CountCanceled: countCanceled, Location: loc}
}

// DayBounds returns local midnight and the last instant of the day containing t.
func (p DailyLimitPolicy) DayBounds(t time.Time) (time.Time, time.Time) {
	local := inLocation(t, p.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// Remaining counts the appointments already on the day and how many more fit under the cap.
// excludeID drops the appointment being updated from the count.
func (p DailyLimitPolicy) Remaining(ctx context.Context, q repository.AppointmentQueries, custodiedID string, at time.Time, excludeID string) (int, error) {
	start, end := p.DayBounds(at)
	criteria := repository.NewCriteria().
		ForCustodiedPerson(custodiedID).
		ScheduledBetween(start, end).
		ExcludingID(excludeID)
	if !p.CountCanceled {
		criteria = criteria.ExcludingStatuses(domain.AppointmentStatusCanceled)
	}
	count, err := q.Count(ctx, criteria)
	if err != nil {
		return 0, err
	}
	return p.Cap - count, nil
}

// Check fails when adding the candidate would exceed the cap.
func (p DailyLimitPolicy) Check(ctx context.Context, q repository.AppointmentQueries, custodiedID string, at time.Time, excludeID string) error {
	remaining, err := p.Remaining(ctx, q, custodiedID, at, excludeID)
	if err != nil {
		return err
	}
	if remaining < 1 {
		start, _ := p.DayBounds(at)
		return apperrors.NewSchedulingConflict("daily appointment limit reached for custodied person", map[string]any{
			"reason":              ReasonDailyLimit,
			"custodied_person_id": custodiedID,
			"date":                start.Format(time.DateOnly),
			"limit":               p.Cap,
		})
	}
	return nil
}
