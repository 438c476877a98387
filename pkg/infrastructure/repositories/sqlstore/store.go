package sqlstore

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
	"github.com/vsinha/shopfloor/pkg/domain/repositories"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store implements repositories.Store on top of gorm
type Store struct {
	db   *gorm.DB
	inTx bool
}

// Verify interface compliance
var _ repositories.Store = (*Store)(nil)

// Open connects to the database named by driver and dsn. SQLite runs on a
// single connection so in-memory databases and write locks behave.
func Open(driver, dsn string, debug bool) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite3":
		dialector = sqlite.Open(dsn)
	case DriverPostgres, "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, entities.NewValidationError("database.driver", "unsupported driver %q", driver)
	}

	level := logger.Silent
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driver)
	}
	if dialector.Name() == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "sqlite handle")
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return New(db), nil
}

// New wraps an existing gorm handle
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&entities.Job{},
		&entities.Step{},
		&entities.Reservation{},
		&entities.StockSnapshot{},
		&entities.RFQ{},
		&entities.RFQItem{},
		&entities.Quotation{},
		&entities.QuotationItem{},
	)
}

func (s *Store) Jobs() repositories.JobRepository                 { return jobRepository{s.db} }
func (s *Store) Steps() repositories.StepRepository               { return stepRepository{s.db} }
func (s *Store) Reservations() repositories.ReservationRepository { return reservationRepository{s.db} }
func (s *Store) Stock() repositories.StockRepository              { return stockRepository{s.db} }
func (s *Store) RFQs() repositories.RFQRepository                 { return rfqRepository{s.db} }
func (s *Store) Quotations() repositories.QuotationRepository     { return quotationRepository{s.db} }

// Atomic runs fn in a database transaction
func (s *Store) Atomic(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// compareAndSwap writes every column of model if the stored version still
// equals prev. model must already carry version prev+1.
func compareAndSwap(ctx context.Context, db *gorm.DB, model interface{}, kind, id string, prev int) error {
	res := db.WithContext(ctx).
		Select("*").
		Omit("created_at", clause.Associations).
		Where("version = ?", prev).
		Updates(model)
	if res.Error != nil {
		return translate(res.Error, kind, id)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			return errors.Wrapf(err, "%s %s", kind, id)
		}
		if count == 0 {
			return errors.Wrapf(entities.ErrNotFound, "%s %s", kind, id)
		}
		return errors.Wrapf(entities.ErrConcurrentUpdate, "%s %s: version %d is stale", kind, id, prev)
	}
	return nil
}

func translate(err error, kind, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrapf(entities.ErrNotFound, "%s %s", kind, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return entities.NewValidationError("id", "%s %s already exists", kind, id)
	default:
		return errors.Wrapf(err, "%s %s", kind, id)
	}
}
