// Package scheduling holds the rules that decide whether a visit appointment may be
// created or changed: the visiting window, overlap detection, the per-day cap and the
// status lifecycle.
package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// Window policy names accepted by NewWindowPolicy.
const (
	WindowPolicyMidweek  = "midweek"
	WindowPolicyExtended = "extended"
)

// WindowPolicy decides whether a timestamp falls inside the visiting window.
type WindowPolicy interface {
	Permits(t time.Time) bool
	Describe() string
}

// NewWindowPolicy returns the named policy evaluated in loc. A nil loc means UTC.
func NewWindowPolicy(name string, loc *time.Location) (WindowPolicy, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", WindowPolicyMidweek:
		return MidweekWindow{Location: loc}, nil
	case WindowPolicyExtended:
		return ExtendedWindow{Location: loc}, nil
	default:
		return nil, fmt.Errorf("unknown window policy %q", name)
	}
}

// MidweekWindow permits Wednesdays and Thursdays from 09:00 to 15:00, both inclusive.
type MidweekWindow struct {
	Location *time.Location
}

func (w MidweekWindow) Permits(t time.Time) bool {
	local := inLocation(t, w.Location)
	switch local.Weekday() {
	case time.Wednesday, time.Thursday:
	default:
		return false
	}
	tod := timeOfDay(local)
	return tod >= 9*time.Hour && tod <= 15*time.Hour
}

func (w MidweekWindow) Describe() string {
	return "Wednesday and Thursday, 09:00 to 15:00"
}

// ExtendedWindow permits any day but Monday, strictly between 09:00 and 17:00.
type ExtendedWindow struct {
	Location *time.Location
}

func (w ExtendedWindow) Permits(t time.Time) bool {
	local := inLocation(t, w.Location)
	if local.Weekday() == time.Monday {
		return false
	}
	tod := timeOfDay(local)
	return tod > 9*time.Hour && tod < 17*time.Hour
}

func (w ExtendedWindow) Describe() string {
	return "any day except Monday, after 09:00 and before 17:00"
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}
