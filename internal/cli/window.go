package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/visit-service/internal/scheduling"
	apperrors "github.com/spec-kit/visit-service/pkg/util/errorutil"
)

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Inspect the configured visiting window",
}

var windowCheckCmd = &cobra.Command{
	Use:   "check <RFC3339 timestamp>",
	Short: "Report whether a timestamp is inside the visiting window",
	Long: `Evaluate a timestamp against SCHEDULING_WINDOW_POLICY in SCHEDULING_TIMEZONE.

The command exits non-zero when the timestamp is outside the window.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := time.Parse(time.RFC3339, args[0])
		if err != nil {
			return apperrors.NewValidationError("timestamp must be RFC3339", map[string]any{"value": args[0]})
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rules, err := scheduling.RulesFromConfig(cfg.Scheduling)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		local := at.In(rules.DailyLimit.Location)
		_, _ = fmt.Fprintf(out, "policy:    %s\n", rules.Window.Describe())
		_, _ = fmt.Fprintf(out, "local:     %s\n", local.Format("Mon 2006-01-02 15:04 MST"))
		if !rules.Window.Permits(at) {
			_, _ = fmt.Fprintln(out, "result:    outside window")
			return apperrors.NewDisallowedTime("scheduled time is outside the visiting window", map[string]any{
				"scheduled_at": at,
				"window":       rules.Window.Describe(),
			})
		}
		start, end := rules.DailyLimit.DayBounds(at)
		_, _ = fmt.Fprintln(out, "result:    permitted")
		_, _ = fmt.Fprintf(out, "day:       %s to %s (cap %d)\n", start.Format(time.RFC3339), end.Format(time.RFC3339), rules.DailyLimit.Cap)
		return nil
	},
}

func init() {
	windowCmd.AddCommand(windowCheckCmd)
}
