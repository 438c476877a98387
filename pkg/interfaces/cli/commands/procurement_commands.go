package commands

import (
	"github.com/spf13/cobra"

	"github.com/vsinha/shopfloor/pkg/application/dto"
	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/interfaces/cli/output"
)

func newNeedsCommand(app *App) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "needs",
		Short: "Reconcile reservations against stock and report material needs",
		Long: `Reconcile open reservations against the latest stock snapshots.

Filters:
  all               every item with a shortage
  project_shortage  items reserved beyond what is available
  critical_stock    items below their minimum stock level`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := entities.ParseNeedsFilter(filter)
			if err != nil {
				return err
			}
			report, err := app.Procurement.NeedsReport(cmd.Context(), f, app.Now())
			if err != nil {
				return err
			}
			return output.RenderNeeds(report, app.output(cmd))
		},
	}
	cmd.Flags().StringVar(&filter, "filter", string(entities.FilterAll), "all, project_shortage or critical_stock")
	return cmd
}

func newRFQCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rfq",
		Short: "Requests for quotation",
	}

	var (
		stock []string
		due   string
		notes string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an RFQ from items in the needs report",
		Long: `Create an RFQ from items in the needs report. A bare stock id orders the
suggested quantity; ID=QTY orders QTY instead.`,
		Example: "  shopfloor rfq create --stock PAPER --stock INK=40 --due 2025-04-01",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amounts, order, err := parseQuantities("stock", stock)
			if err != nil {
				return err
			}
			dueDate, err := parseDay("due", due)
			if err != nil {
				return err
			}
			req := dto.CreateRFQRequest{DueDate: dueDate, Notes: notes}
			for _, id := range order {
				req.Selections = append(req.Selections, dto.RFQSelection{
					StockID:  entities.StockID(id),
					Quantity: amounts[id],
				})
			}
			rfq, err := app.Procurement.CreateRFQ(cmd.Context(), req, app.Now())
			if err != nil {
				return err
			}
			return output.RenderRFQ(rfq, app.output(cmd))
		},
	}
	create.Flags().StringArrayVar(&stock, "stock", nil, "Stock item as ID or ID=QTY (repeatable)")
	create.Flags().StringVar(&due, "due", "", "Response due date (YYYY-MM-DD)")
	create.Flags().StringVar(&notes, "notes", "", "Notes for suppliers")
	cmd.AddCommand(create)
	return cmd
}

func newCompareCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <rfq-id-or-number>",
		Short: "Compare the quotations received for an RFQ in the reference currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rates, err := app.Config.RateTable()
			if err != nil {
				return err
			}
			report, err := app.Procurement.Compare(cmd.Context(), args[0], rates, app.Now())
			if err != nil {
				return err
			}
			return output.RenderComparison(report, app.output(cmd))
		},
	}
}

func newQuoteCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Decide on supplier quotations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "accept <quotation-id>",
			Short: "Accept a pending quotation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				q, err := app.Procurement.AcceptQuotation(cmd.Context(), args[0], app.Now())
				if err != nil {
					return err
				}
				return output.RenderQuotation(q, app.output(cmd))
			},
		},
		&cobra.Command{
			Use:   "reject <quotation-id>",
			Short: "Reject a pending quotation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				q, err := app.Procurement.RejectQuotation(cmd.Context(), args[0], app.Now())
				if err != nil {
					return err
				}
				return output.RenderQuotation(q, app.output(cmd))
			},
		},
	)
	return cmd
}
