package commands

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vsinha/shopfloor/pkg/application/services"
	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
	domain "github.com/vsinha/shopfloor/pkg/domain/services"
	"github.com/vsinha/shopfloor/pkg/infrastructure/config"
	"github.com/vsinha/shopfloor/pkg/infrastructure/events"
	"github.com/vsinha/shopfloor/pkg/infrastructure/logging"
	"github.com/vsinha/shopfloor/pkg/infrastructure/repositories/sqlstore"
	"github.com/vsinha/shopfloor/pkg/interfaces/cli/output"
)

// App holds what every command shares: configuration, logger, store and
// the services built on top of them. It is populated before a command runs.
type App struct {
	// OpenStore replaces the configured database, e.g. with an in-memory store
	OpenStore func(cfg config.DatabaseConfig) (repositories.Store, error)
	// LogOutput defaults to stderr
	LogOutput io.Writer
	Now       func() time.Time

	configFile   string
	format       string
	showEvents   bool
	eventsStream string
	v            *viper.Viper

	Config      *config.Config
	Logger      *zap.SugaredLogger
	Store       repositories.Store
	Events      *events.InMemoryEventStore
	Jobs        *services.JobService
	Steps       *services.StepService
	Procurement *services.ProcurementService
	Importer    *services.ImportService
}

// NewApp returns an App that opens the configured database
func NewApp() *App {
	return &App{
		OpenStore: openSQLStore,
		Now:       time.Now,
		v:         viper.New(),
	}
}

// NewRootCommand builds the shopfloor command tree around app
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "shopfloor",
		Short: "Shop-floor job steps, material needs and supplier quotations",
		Long: `shopfloor - production step tracking and purchasing support.

Tracks the process steps of production jobs, reconciles reserved material
against stock into a needs report, raises RFQs for shortages and compares
supplier quotations in one reference currency.

Examples:
  shopfloor load scenario.yaml                 # Import jobs, stock and quotations
  shopfloor step start <step-id>               # Start a ready step
  shopfloor needs --filter project_shortage    # Show project shortages
  shopfloor rfq create --stock PAPER=500       # Request quotations
  shopfloor compare RFQ-2025-0001              # Compare supplier offers`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			err := app.renderEvents(cmd)
			return errors.CombineErrors(err, app.Close())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.configFile, "config", "", "Config file (default ./shopfloor.yaml or $HOME/.shopfloor/shopfloor.yaml)")
	flags.StringVar(&app.format, "format", output.FormatText, "Output format: text, json, csv")
	flags.BoolVar(&app.showEvents, "events", false, "Print the events the command emitted to stderr")
	flags.StringVar(&app.eventsStream, "events-stream", "", "Only print events of this stream (job, stock or RFQ id); implies --events")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("dsn", "", "Database DSN")
	_ = app.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = app.v.BindPFlag("database.dsn", flags.Lookup("dsn"))

	root.AddCommand(
		newLoadCommand(app),
		newExportCommand(app),
		newImportStockCommand(app),
		newImportReservationsCommand(app),
		newJobCommand(app),
		newStepCommand(app),
		newNeedsCommand(app),
		newRFQCommand(app),
		newCompareCommand(app),
		newQuoteCommand(app),
		newWatchCommand(app),
	)
	return root
}

// Execute runs the command line against a fresh App
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	app := NewApp()
	app.LogOutput = stderr
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func (a *App) setup(cmd *cobra.Command) error {
	if err := output.ValidateFormat(a.format); err != nil {
		return err
	}
	if a.v == nil {
		a.v = viper.New()
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	a.Config = cfg

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON, Output: a.LogOutput})
	if err != nil {
		return err
	}
	a.Logger = logger

	open := a.OpenStore
	if open == nil {
		open = openSQLStore
	}
	store, err := open(cfg.Database)
	if err != nil {
		return err
	}
	a.Store = store

	a.Events = events.NewInMemoryEventStore(logger)
	eventLog := logging.Component(logger, "events")
	_ = a.Events.Subscribe([]string{"*"}, &events.HandlerFunc{
		Types: []string{"*"},
		Fn: func(e events.Event) error {
			eventLog.Debugw("event", logging.FieldEvent, e.Type(), "stream", e.StreamID(), "version", e.Version())
			return nil
		},
	})

	a.Jobs = services.NewJobService(store, a.Events, logger).WithClock(a.Now)
	a.Steps = services.NewStepService(store, a.Events, logger).WithClock(a.Now)
	a.Procurement = services.NewProcurementService(store, a.Events, services.ProcurementConfig{
		RFQPrefix:  cfg.RFQ.Prefix,
		Reconciler: domain.ReconcilerConfig{MaxSnapshotAge: cfg.Reconcile.MaxSnapshotAge},
		Comparator: domain.ComparatorConfig{MaxRateAge: cfg.Compare.MaxRateAge},
	}, logger)
	a.Importer = services.NewImportService(store, cfg.RFQ.Prefix, logger).WithClock(a.Now)

	logger.Debugw("ready", logging.FieldComponent, "cli", "command", cmd.CommandPath(), "driver", cfg.Database.Driver)
	return nil
}

// Close releases the store and flushes the logger
func (a *App) Close() error {
	var err error
	if a.Store != nil {
		err = a.Store.Close()
		a.Store = nil
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return err
}

// renderEvents writes the command's events to stderr so that stdout stays
// a single document in json and csv formats
func (a *App) renderEvents(cmd *cobra.Command) error {
	if a.Events == nil || (!a.showEvents && a.eventsStream == "") {
		return nil
	}
	var (
		evs []events.Event
		err error
	)
	if a.eventsStream != "" {
		evs, err = a.Events.ReadEvents(a.eventsStream, 0)
	} else {
		evs, err = a.Events.ReadAllEvents(0)
	}
	if err != nil {
		return errors.Wrap(err, "read events")
	}
	return output.RenderEvents(evs, output.Config{Format: a.format, Out: cmd.ErrOrStderr()})
}

func (a *App) output(cmd *cobra.Command) output.Config {
	return output.Config{Format: a.format, Out: cmd.OutOrStdout()}
}

func openSQLStore(cfg config.DatabaseConfig) (repositories.Store, error) {
	store, err := sqlstore.Open(cfg.Driver, cfg.DSN, cfg.Debug)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// parseQuantities reads repeated ID=QTY flags. A bare ID means quantity zero.
func parseQuantities(flag string, pairs []string) (map[string]decimal.Decimal, []string, error) {
	out := make(map[string]decimal.Decimal, len(pairs))
	order := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		id, raw, hasQty := strings.Cut(pair, "=")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, nil, entities.NewValidationError(flag, "missing id in %q", pair)
		}
		qty := decimal.Zero
		if hasQty {
			v, err := decimal.NewFromString(strings.TrimSpace(raw))
			if err != nil {
				return nil, nil, entities.NewValidationError(flag, "invalid quantity in %q", pair)
			}
			qty = v
		}
		if _, seen := out[id]; !seen {
			order = append(order, id)
		}
		out[id] = out[id].Add(qty)
	}
	return out, order, nil
}

func parseDay(flag, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, entities.NewValidationError(flag, "invalid date %q (expected YYYY-MM-DD)", s)
	}
	return &t, nil
}
