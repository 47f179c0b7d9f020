package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"rankboard/internal/store"
)

var errDoctorIssuesFound = errors.New("doctor found issues")

func newDoctorCmd(app *App) *cobra.Command {
	var fix, fail bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check rank order and hierarchy invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Config.Server != "" {
				return writeErr(cmd, errNeedsLocalStore)
			}
			ctx := cmdContext(cmd)
			st, err := openStore(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			var report store.Report
			if fix {
				report, err = st.Fix(ctx)
			} else {
				report, err = st.Doctor(ctx)
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			// After a fix, judge health on what is left.
			remaining := report
			if fix {
				if remaining, err = st.Doctor(ctx); err != nil {
					return writeErr(cmd, err)
				}
			}

			var hints []string
			if len(report.Ties) > 0 && !fix {
				hints = append(hints, "rankboard doctor --fix")
			}
			if err := writeEnvelope(cmd, app, doctorView(report), map[string]any{
				"ok":         remaining.OK(),
				"ties":       len(remaining.Ties),
				"violations": len(remaining.Violations),
				"fixed":      report.Fixed,
			}, hints...); err != nil {
				return err
			}
			if fail && !remaining.OK() {
				return errDoctorIssuesFound
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Rebalance sibling groups with rank ties")
	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with non-zero status if issues remain")
	return cmd
}
