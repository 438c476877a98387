package commands

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/infrastructure/logging"
	"github.com/vsinha/shopfloor/pkg/interfaces/cli/output"
)

func newWatchCommand(app *App) *cobra.Command {
	var (
		schedule string
		filter   string
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the needs report on a cron schedule",
		Long: `Rebuild the needs report on a cron schedule and print it after every run.
Each run publishes a shortage event per reported item.

The schedule and filter default to watch.schedule and watch.filter from the
configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if schedule == "" {
				schedule = app.Config.Watch.Schedule
			}
			if filter == "" {
				filter = app.Config.Watch.Filter
			}
			parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
			sched, err := parser.Parse(schedule)
			if err != nil {
				return entities.NewValidationError("schedule", "%v", err)
			}
			f, err := entities.ParseNeedsFilter(filter)
			if err != nil {
				return err
			}

			run := func(ctx context.Context) error {
				report, err := app.Procurement.NeedsReport(ctx, f, app.Now())
				if err != nil {
					return err
				}
				return output.RenderNeeds(report, app.output(cmd))
			}
			if once {
				return run(cmd.Context())
			}
			return watch(cmd.Context(), app, sched, run)
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression (5 fields or @every/@hourly descriptors)")
	cmd.Flags().StringVar(&filter, "filter", "", "all, project_shortage or critical_stock")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single reconciliation and exit")
	return cmd
}

// watch runs fn at every activation of sched until ctx is canceled. A failed
// run is logged and the loop keeps going.
func watch(ctx context.Context, app *App, sched cron.Schedule, fn func(context.Context) error) error {
	logger := logging.Component(app.Logger, "watch")
	for {
		next := sched.Next(app.Now())
		logger.Infow("next reconciliation", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := fn(ctx); err != nil {
			logger.Errorw("reconciliation failed", logging.FieldError, err)
		}
	}
}
