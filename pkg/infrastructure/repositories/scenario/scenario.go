// Package scenario reads shop-floor fixtures from YAML: jobs with their
// steps, reservations, stock snapshots, RFQs and supplier quotations.
package scenario

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

// Document is one scenario file
type Document struct {
	Jobs         []Job                    `yaml:"jobs"`
	Reservations []entities.Reservation   `yaml:"reservations"`
	Stock        []entities.StockSnapshot `yaml:"stock"`
	RFQs         []entities.RFQ           `yaml:"rfqs"`
	Quotations   []entities.Quotation     `yaml:"quotations"`
}

// Job is a job with its steps listed inline
type Job struct {
	entities.Job `yaml:",inline"`
	Steps        []entities.Step `yaml:"steps"`
}

// Load reads a scenario file
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", path)
	}
	doc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}
	return doc, nil
}

// Parse decodes a scenario. Unknown keys are rejected so a misspelled
// field never silently loads as zero.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, errors.WithHint(
			entities.NewValidationError("scenario", "%v", err),
			"dates are unquoted YYYY-MM-DD or RFC3339 values",
		)
	}
	for i := range doc.Jobs {
		for j := range doc.Jobs[i].Steps {
			doc.Jobs[i].Steps[j].JobID = doc.Jobs[i].ID
		}
	}
	for i := range doc.RFQs {
		for j := range doc.RFQs[i].Items {
			doc.RFQs[i].Items[j].RFQID = doc.RFQs[i].ID
		}
	}
	for i := range doc.Quotations {
		for j := range doc.Quotations[i].Items {
			doc.Quotations[i].Items[j].QuotationID = doc.Quotations[i].ID
		}
	}
	return &doc, nil
}

// Marshal writes a document back to YAML
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, errors.Wrap(err, "encode scenario")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode scenario")
	}
	return buf.Bytes(), nil
}
