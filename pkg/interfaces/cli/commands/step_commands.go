package commands

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vsinha/shopfloor/pkg/application/dto"
	"github.com/vsinha/shopfloor/pkg/domain/entities"
	domain "github.com/vsinha/shopfloor/pkg/domain/services"
	"github.com/vsinha/shopfloor/pkg/interfaces/cli/output"
)

func newStepCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Execute and plan job steps",
	}
	cmd.AddCommand(
		stepAction(app, "start <step-id>", "Start a ready step", func(c *cobra.Command, id string) (*dto.StepActionResult, error) {
			return app.Steps.Start(c.Context(), id)
		}),
		newStepCompleteCommand(app),
		newStepPauseCommand(app),
		stepAction(app, "resume <step-id>", "Resume a blocked step", func(c *cobra.Command, id string) (*dto.StepActionResult, error) {
			return app.Steps.Resume(c.Context(), id)
		}),
		stepAction(app, "delete <step-id>", "Cancel a step that has not started", func(c *cobra.Command, id string) (*dto.StepActionResult, error) {
			return app.Steps.Delete(c.Context(), id)
		}),
		newStepReviseCommand(app),
		newStepAddCommand(app),
		newStepListCommand(app),
		newStepGanttCommand(app),
		stepAction(app, "recompute <job-id>", "Recompute which steps of a job are ready", func(c *cobra.Command, id string) (*dto.StepActionResult, error) {
			return app.Steps.Recompute(c.Context(), id)
		}),
	)
	return cmd
}

func stepAction(app *App, use, short string, run func(*cobra.Command, string) (*dto.StepActionResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := run(cmd, args[0])
			if err != nil {
				return err
			}
			return output.RenderStepResult(result, app.output(cmd))
		},
	}
}

func newStepCompleteCommand(app *App) *cobra.Command {
	var (
		quantity string
		input    domain.CompleteInput
		consume  []string
	)
	cmd := &cobra.Command{
		Use:     "complete <step-id>",
		Short:   "Complete an in-progress step, optionally recording output and material use",
		Example: "  shopfloor step complete 7c1e... --quantity 5000 --unit sheet --consume PAPER=120 --consume INK=3.5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if quantity != "" {
				q, err := decimal.NewFromString(quantity)
				if err != nil {
					return entities.NewValidationError("quantity", "invalid quantity %q", quantity)
				}
				input.ProductionQuantity = &q
			}
			amounts, order, err := parseQuantities("consume", consume)
			if err != nil {
				return err
			}
			input.Consumptions = input.Consumptions[:0]
			for _, id := range order {
				input.Consumptions = append(input.Consumptions, domain.Consumption{
					StockID:  entities.StockID(id),
					Quantity: amounts[id],
				})
			}
			result, err := app.Steps.Complete(cmd.Context(), args[0], input)
			if err != nil {
				return err
			}
			return output.RenderStepResult(result, app.output(cmd))
		},
	}
	cmd.Flags().StringVar(&quantity, "quantity", "", "Produced quantity")
	cmd.Flags().StringVar(&input.ProductionUnit, "unit", "", "Unit of the produced quantity")
	cmd.Flags().StringVar(&input.ProductionNotes, "notes", "", "Production notes")
	cmd.Flags().StringArrayVar(&consume, "consume", nil, "Material used as STOCK_ID=QTY (repeatable)")
	return cmd
}

func newStepPauseCommand(app *App) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "pause <step-id>",
		Short: "Block an in-progress step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.Steps.Pause(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			return output.RenderStepResult(result, app.output(cmd))
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the step is blocked")
	return cmd
}

func newStepReviseCommand(app *App) *cobra.Command {
	var quantity, unit, notes string
	cmd := &cobra.Command{
		Use:   "revise <step-id>",
		Short: "Correct the production record of a completed step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input domain.RevisionInput
			flags := cmd.Flags()
			if flags.Changed("quantity") {
				q, err := decimal.NewFromString(quantity)
				if err != nil {
					return entities.NewValidationError("quantity", "invalid quantity %q", quantity)
				}
				input.ProductionQuantity = &q
			}
			if flags.Changed("unit") {
				input.ProductionUnit = &unit
			}
			if flags.Changed("notes") {
				input.ProductionNotes = &notes
			}
			result, err := app.Steps.Revise(cmd.Context(), args[0], input)
			if err != nil {
				return err
			}
			return output.RenderStepResult(result, app.output(cmd))
		},
	}
	cmd.Flags().StringVar(&quantity, "quantity", "", "Produced quantity")
	cmd.Flags().StringVar(&unit, "unit", "", "Unit of the produced quantity")
	cmd.Flags().StringVar(&notes, "notes", "", "Production notes")
	return cmd
}

func newStepAddCommand(app *App) *cobra.Command {
	var (
		step    entities.Step
		machine string
		user    string
	)
	cmd := &cobra.Command{
		Use:   "add <job-id>",
		Short: "Add a step to a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := step
			s.JobID = args[0]
			if machine != "" {
				s.AssignedMachineID = &machine
			}
			if user != "" {
				s.AssignedUserID = &user
			}
			result, err := app.Steps.AddStep(cmd.Context(), s)
			if err != nil {
				return err
			}
			return output.RenderStepResult(result, app.output(cmd))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&step.ID, "id", "", "Step id (generated when empty)")
	flags.IntVar(&step.OrderIndex, "order", 1, "Order index; steps sharing one run as a cohort")
	flags.BoolVar(&step.IsParallel, "parallel", false, "Mark the step as parallel with its cohort")
	flags.StringVar(&step.ProcessID, "process-id", "", "Process id")
	flags.StringVar(&step.ProcessName, "process", "", "Process name")
	flags.BoolVar(&step.MachineBased, "machine-based", false, "The step runs on a machine")
	flags.StringVar(&machine, "machine", "", "Assigned machine id")
	flags.StringVar(&user, "user", "", "Assigned user id")
	flags.IntVar(&step.EstimatedDuration, "estimate", 0, "Estimated duration in minutes")
	return cmd
}

func newStepListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <job-id>",
		Short: "List a job's steps in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := app.Steps.ListSteps(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.RenderSteps(steps, app.output(cmd))
		},
	}
}

func newStepGanttCommand(app *App) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "gantt <job-id>",
		Short: "Draw a job's steps as an SVG timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := app.Store.Jobs().GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			steps, err := app.Steps.ListSteps(cmd.Context(), job.ID)
			if err != nil {
				return err
			}
			title := job.Number + " " + job.Title
			if file == "" {
				return output.RenderGantt(title, steps, app.Now(), cmd.OutOrStdout())
			}
			f, err := os.Create(file)
			if err != nil {
				return errors.Wrapf(err, "create %s", file)
			}
			if err := output.RenderGantt(title, steps, app.Now(), f); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&file, "output", "o", "", "Write the SVG to file instead of stdout")
	return cmd
}
