package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/shopfloor/pkg/domain/entities"
)

const (
	StepReadyEvent     = "step.ready"
	StepStartedEvent   = "step.started"
	StepCompletedEvent = "step.completed"
	StepBlockedEvent   = "step.blocked"
	StepResumedEvent   = "step.resumed"
	StepCanceledEvent  = "step.canceled"
	StepRevisedEvent   = "step.revised"
	StepAddedEvent     = "step.added"

	JobStatusChangedEvent = "job.status_changed"

	ReservationConsumedEvent = "reservation.consumed"

	ShortageIdentifiedEvent = "shortage.identified"

	RFQCreatedEvent        = "rfq.created"
	QuotationAcceptedEvent = "quotation.accepted"
	QuotationRejectedEvent = "quotation.rejected"
)

type StepChanged struct {
	StepID     string              `json:"step_id"`
	JobID      string              `json:"job_id"`
	OrderIndex int                 `json:"order_index"`
	Status     entities.StepStatus `json:"status"`
	Reason     string              `json:"reason,omitempty"`
}

type JobStatusChanged struct {
	JobID string             `json:"job_id"`
	From  entities.JobStatus `json:"from"`
	To    entities.JobStatus `json:"to"`
}

type ReservationConsumed struct {
	ReservationID string                     `json:"reservation_id"`
	JobID         string                     `json:"job_id"`
	StockID       entities.StockID           `json:"stock_id"`
	UsedQuantity  decimal.Decimal            `json:"used_quantity"`
	Status        entities.ReservationStatus `json:"status"`
}

type ShortageIdentified struct {
	Need entities.MaterialNeed `json:"need"`
}

type RFQCreated struct {
	RFQID  string `json:"rfq_id"`
	Number string `json:"number"`
	Lines  int    `json:"lines"`
}

type QuotationDecided struct {
	QuotationID string                   `json:"quotation_id"`
	RFQID       string                   `json:"rfq_id"`
	Status      entities.QuotationStatus `json:"status"`
}

// stepEventTypes maps the status a step moved into to its event type
var stepEventTypes = map[entities.StepStatus]string{
	entities.StepReady:      StepReadyEvent,
	entities.StepInProgress: StepStartedEvent,
	entities.StepCompleted:  StepCompletedEvent,
	entities.StepBlocked:    StepBlockedEvent,
	entities.StepCanceled:   StepCanceledEvent,
}

// NewStepEvent builds the event for a step that moved into its current
// status. Resumed and revised steps need an explicit type since their
// status alone does not tell.
func NewStepEvent(eventType string, step entities.Step, at time.Time) Event {
	if eventType == "" {
		eventType = stepEventTypes[step.Status]
	}
	return NewEvent(eventType, step.JobID, StepChanged{
		StepID:     step.ID,
		JobID:      step.JobID,
		OrderIndex: step.OrderIndex,
		Status:     step.Status,
		Reason:     step.BlockReason,
	}, at)
}

func NewJobStatusChangedEvent(jobID string, from, to entities.JobStatus, at time.Time) Event {
	return NewEvent(JobStatusChangedEvent, jobID, JobStatusChanged{JobID: jobID, From: from, To: to}, at)
}

func NewReservationConsumedEvent(r entities.Reservation, at time.Time) Event {
	return NewEvent(ReservationConsumedEvent, r.JobID, ReservationConsumed{
		ReservationID: r.ID,
		JobID:         r.JobID,
		StockID:       r.StockID,
		UsedQuantity:  r.UsedQuantity,
		Status:        r.Status(),
	}, at)
}

func NewShortageIdentifiedEvent(need entities.MaterialNeed, at time.Time) Event {
	return NewEvent(ShortageIdentifiedEvent, string(need.StockID), ShortageIdentified{Need: need}, at)
}

func NewRFQCreatedEvent(rfq entities.RFQ, at time.Time) Event {
	return NewEvent(RFQCreatedEvent, rfq.ID, RFQCreated{RFQID: rfq.ID, Number: rfq.Number, Lines: len(rfq.Items)}, at)
}

func NewQuotationDecidedEvent(q entities.Quotation, at time.Time) Event {
	eventType := QuotationRejectedEvent
	if q.Status == entities.QuotationAccepted {
		eventType = QuotationAcceptedEvent
	}
	return NewEvent(eventType, q.RFQID, QuotationDecided{QuotationID: q.ID, RFQID: q.RFQID, Status: q.Status}, at)
}
