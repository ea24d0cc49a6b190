package scheduling

import (
	"github.com/spec-kit/visit-service/internal/config"
)

// Rules bundles the configured scheduling policies.
type Rules struct {
	Window     WindowPolicy
	Conflicts  ConflictDetector
	DailyLimit DailyLimitPolicy
}

// RulesFromConfig builds the policies for the facility described by cfg.
func RulesFromConfig(cfg config.SchedulingConfig) (Rules, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Rules{}, err
	}
	window, err := NewWindowPolicy(cfg.WindowPolicy, loc)
	if err != nil {
		return Rules{}, err
	}
	return Rules{
		Window:     window,
		Conflicts:  NewConflictDetector(cfg.ConflictWindow(), cfg.VisitorConflictIgnoreCancel),
		DailyLimit: NewDailyLimitPolicy(cfg.DailyLimit, cfg.DailyLimitCountCanceled, loc),
	}, nil
}
