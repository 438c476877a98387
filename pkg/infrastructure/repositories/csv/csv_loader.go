package csv

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

var (
	stockHeader = []string{
		"stock_id", "code", "name", "unit",
		"current_quantity", "reserved_quantity", "on_order_quantity", "min_stock_level", "as_of",
	}
	reservationHeader = []string{
		"reservation_id", "job_id", "stock_id", "quantity", "used_quantity", "planned_date", "canceled",
	}
)

// Loader reads stock ledger exports and reservation lists from CSV
type Loader struct {
	now func() time.Time
}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{now: time.Now}
}

// WithClock sets the time used for rows without an as_of date and for
// reservations marked canceled without a date.
func (l *Loader) WithClock(now func() time.Time) *Loader {
	l.now = now
	return l
}

// LoadStock loads stock snapshots from a CSV file
func (l *Loader) LoadStock(filename string) ([]entities.StockSnapshot, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open stock file %s", filename)
	}
	defer file.Close()
	return l.ReadStock(file)
}

// ReadStock parses stock snapshots. Each row is validated; the first bad
// row aborts the load.
func (l *Loader) ReadStock(r io.Reader) ([]entities.StockSnapshot, error) {
	records, err := readRecords(r, "stock", stockHeader)
	if err != nil {
		return nil, err
	}

	snapshots := make([]entities.StockSnapshot, 0, len(records))
	for i, record := range records {
		snap, err := l.parseStock(record)
		if err != nil {
			return nil, errors.Wrapf(err, "stock CSV row %d", i+2)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// LoadReservations loads reservations from a CSV file
func (l *Loader) LoadReservations(filename string) ([]entities.Reservation, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open reservations file %s", filename)
	}
	defer file.Close()
	return l.ReadReservations(file)
}

// ReadReservations parses reservations. used_quantity above quantity is a
// row error, not something to clamp.
func (l *Loader) ReadReservations(r io.Reader) ([]entities.Reservation, error) {
	records, err := readRecords(r, "reservations", reservationHeader)
	if err != nil {
		return nil, err
	}

	reservations := make([]entities.Reservation, 0, len(records))
	for i, record := range records {
		res, err := l.parseReservation(record)
		if err != nil {
			return nil, errors.Wrapf(err, "reservations CSV row %d", i+2)
		}
		reservations = append(reservations, res)
	}
	return reservations, nil
}

// readRecords checks the header and column counts and returns the data rows
func readRecords(r io.Reader, kind string, expectedHeader []string) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s CSV", kind)
	}

	if len(records) < 2 {
		return nil, entities.NewValidationError(kind, "%s CSV must have header and at least one data row", kind)
	}
	if !validateHeader(records[0], expectedHeader) {
		return nil, errors.WithHint(
			entities.NewValidationError(kind, "%s CSV header mismatch: got %v", kind, records[0]),
			"expected columns: "+strings.Join(expectedHeader, ","),
		)
	}

	rows := records[1:]
	for i, record := range rows {
		if len(record) != len(expectedHeader) {
			return nil, entities.NewValidationError(kind, "%s CSV row %d: expected %d columns, got %d",
				kind, i+2, len(expectedHeader), len(record))
		}
	}
	return rows, nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		// tolerate a UTF-8 BOM from spreadsheet exports
		got := strings.TrimPrefix(actual[i], "\ufeff")
		if strings.ToLower(strings.TrimSpace(got)) != col {
			return false
		}
	}

	return true
}

func (l *Loader) parseStock(record []string) (entities.StockSnapshot, error) {
	var (
		snap = entities.StockSnapshot{
			StockID: entities.StockID(strings.TrimSpace(record[0])),
			Code:    strings.TrimSpace(record[1]),
			Name:    strings.TrimSpace(record[2]),
			Unit:    strings.TrimSpace(record[3]),
		}
		err error
	)
	if snap.CurrentQuantity, err = parseDecimal("current_quantity", record[4]); err != nil {
		return snap, err
	}
	if snap.ReservedQuantity, err = parseDecimal("reserved_quantity", record[5]); err != nil {
		return snap, err
	}
	if snap.OnOrderQuantity, err = parseDecimal("on_order_quantity", record[6]); err != nil {
		return snap, err
	}
	if snap.MinStockLevel, err = parseDecimal("min_stock_level", record[7]); err != nil {
		return snap, err
	}

	asOf, err := parseDate("as_of", record[8])
	if err != nil {
		return snap, err
	}
	if asOf == nil {
		now := l.now()
		asOf = &now
	}
	snap.AsOf = *asOf

	return snap, snap.Validate()
}

func (l *Loader) parseReservation(record []string) (entities.Reservation, error) {
	quantity, err := parseDecimal("quantity", record[3])
	if err != nil {
		return entities.Reservation{}, err
	}
	used, err := parseDecimal("used_quantity", record[4])
	if err != nil {
		return entities.Reservation{}, err
	}
	planned, err := parseDate("planned_date", record[5])
	if err != nil {
		return entities.Reservation{}, err
	}

	res, err := entities.NewReservation(
		strings.TrimSpace(record[0]),
		strings.TrimSpace(record[1]),
		entities.StockID(strings.TrimSpace(record[2])),
		quantity, used, planned,
	)
	if err != nil {
		return entities.Reservation{}, err
	}

	canceledAt, err := l.parseCanceled(record[6])
	if err != nil {
		return entities.Reservation{}, err
	}
	res.CanceledAt = canceledAt
	return *res, nil
}

// parseCanceled accepts a boolean or the cancellation date
func (l *Loader) parseCanceled(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		if !b {
			return nil, nil
		}
		now := l.now()
		return &now, nil
	}
	switch strings.ToLower(s) {
	case "yes", "y":
		now := l.now()
		return &now, nil
	case "no", "n":
		return nil, nil
	}
	at, err := parseDate("canceled", s)
	if err != nil {
		return nil, entities.NewValidationError("canceled", "invalid canceled value %q (expected true/false or a date)", s)
	}
	return at, nil
}

// parseDecimal treats an empty cell as zero
func parseDecimal(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, entities.NewValidationError(field, "invalid %s: %s", field, s)
	}
	return v, nil
}

// parseDate accepts RFC3339 or YYYY-MM-DD; an empty cell is nil
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, entities.NewValidationError(field, "invalid %s format: %s (expected YYYY-MM-DD)", field, s)
	}
	return &t, nil
}
