package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/interfaces/cli/output"
)

func newJobCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage the job lifecycle",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := app.Jobs.ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			return output.RenderJobs(jobs, app.output(cmd))
		},
	})

	type jobAction func(ctx context.Context, jobID string) (*entities.Job, error)
	actions := []struct {
		use, short string
		run        func() jobAction
	}{
		{"activate", "Release a draft job to the floor", func() jobAction { return app.Jobs.Activate }},
		{"hold", "Put a job on hold", func() jobAction { return app.Jobs.Hold }},
		{"resume", "Resume a held job", func() jobAction { return app.Jobs.Resume }},
		{"complete", "Complete a job whose steps are all finished", func() jobAction { return app.Jobs.Complete }},
		{"cancel", "Cancel a job and release its open reservations", func() jobAction { return app.Jobs.Cancel }},
	}
	for _, a := range actions {
		a := a
		cmd.AddCommand(&cobra.Command{
			Use:   a.use + " <job-id>",
			Short: a.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				// app.Jobs is only set once the root pre-run has happened
				job, err := a.run()(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return output.RenderJob(job, app.output(cmd))
			},
		})
	}
	return cmd
}
