package commands

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/scenario"
	"github.com/vsinha/shopfloor/pkg/interfaces/cli/output"
)

func newLoadCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "load <scenario.yaml>",
		Short: "Import jobs, steps, stock, reservations, RFQs and quotations from a YAML scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := scenario.Load(args[0])
			if err != nil {
				return err
			}
			summary, err := app.Importer.ImportScenario(cmd.Context(), doc)
			if err != nil {
				return errors.Wrapf(err, "import %s", args[0])
			}
			return output.RenderImport(summary, app.output(cmd))
		},
	}
}

func newExportCommand(app *App) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole store as a YAML scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := app.Importer.Export(cmd.Context())
			if err != nil {
				return err
			}
			data, err := scenario.Marshal(doc)
			if err != nil {
				return err
			}
			if file == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return errors.Wrapf(os.WriteFile(file, data, 0o644), "write %s", file)
		},
	}
	cmd.Flags().StringVarP(&file, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

func newImportStockCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import-stock <stock.csv>",
		Short: "Import stock snapshots from CSV",
		Long: `Import stock snapshots from CSV. Expected header:

  stock_id,code,name,unit,current_quantity,reserved_quantity,on_order_quantity,min_stock_level,as_of

Rows without as_of are stamped with the current time.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshots, err := csv.NewLoader().WithClock(app.Now).LoadStock(args[0])
			if err != nil {
				return err
			}
			summary, err := app.Importer.ImportStock(cmd.Context(), snapshots)
			if err != nil {
				return err
			}
			return output.RenderImport(summary, app.output(cmd))
		},
	}
}

func newImportReservationsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import-reservations <reservations.csv>",
		Short: "Import material reservations from CSV",
		Long: `Import material reservations from CSV. Expected header:

  reservation_id,job_id,stock_id,quantity,used_quantity,planned_date,canceled

canceled accepts true/false, yes/no or the cancellation date.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reservations, err := csv.NewLoader().WithClock(app.Now).LoadReservations(args[0])
			if err != nil {
				return err
			}
			summary, err := app.Importer.ImportReservations(cmd.Context(), reservations)
			if err != nil {
				return err
			}
			return output.RenderImport(summary, app.output(cmd))
		},
	}
}
