package entities

import (
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a job
type JobStatus string

const (
	JobDraft      JobStatus = "draft"
	JobActive     JobStatus = "active"
	JobInProgress JobStatus = "in_progress"
	JobOnHold     JobStatus = "on_hold"
	JobCompleted  JobStatus = "completed"
	JobCanceled   JobStatus = "canceled"
)

// rank orders the forward path; on_hold and canceled sit outside it.
var jobRank = map[JobStatus]int{
	JobDraft:      0,
	JobActive:     1,
	JobInProgress: 2,
	JobCompleted:  3,
}

// IsTerminal reports whether no further transition is possible
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobCanceled
}

// Valid reports whether s is a known job status
func (s JobStatus) Valid() bool {
	_, onPath := jobRank[s]
	return onPath || s == JobOnHold || s == JobCanceled
}

// Job is a unit of production work owning an ordered set of steps
type Job struct {
	ID             string     `gorm:"primaryKey;size:36" yaml:"id" json:"id"`
	Number         string     `gorm:"uniqueIndex;size:50;not null" yaml:"number" json:"number"`
	Title          string     `gorm:"size:255;not null" yaml:"title" json:"title"`
	Status         JobStatus  `gorm:"index;size:20;default:'draft'" yaml:"status" json:"status"`
	PreviousStatus JobStatus  `gorm:"size:20" yaml:"-" json:"previous_status,omitempty"`
	Priority       int        `gorm:"default:0" yaml:"priority" json:"priority"`
	DueDate        *time.Time `yaml:"due_date" json:"due_date,omitempty"`
	Revision       int        `gorm:"default:0" yaml:"revision" json:"revision"`
	CustomerID     *string    `gorm:"size:36" yaml:"customer_id" json:"customer_id,omitempty"`
	Version        int        `gorm:"not null;default:1" yaml:"-" json:"version"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" yaml:"-" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" yaml:"-" json:"updated_at"`
}

// Validate checks the required fields of a job
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Number) == "" {
		return NewValidationError("number", "job number cannot be empty")
	}
	if strings.TrimSpace(j.Title) == "" {
		return NewValidationError("title", "job title cannot be empty")
	}
	if !j.Status.Valid() {
		return NewValidationError("status", "unknown job status %q", j.Status)
	}
	if j.Revision < 0 {
		return NewValidationError("revision", "revision cannot be negative, got %d", j.Revision)
	}
	return nil
}

// AllowsExecution reports whether steps of this job may be started,
// completed, paused or resumed.
func (j *Job) AllowsExecution() bool {
	return j.Status == JobActive || j.Status == JobInProgress
}

// AllowsPlanning reports whether steps may be added to or removed from this job
func (j *Job) AllowsPlanning() bool {
	return !j.Status.IsTerminal()
}

// Transition moves the job to status to. Forward moves along
// draft -> active -> in_progress -> completed are allowed (skipping is fine),
// hold is allowed from any non-terminal state, a held job only returns to the
// state it was held from, and cancellation is allowed from any non-terminal state.
func (j *Job) Transition(to JobStatus) error {
	if !to.Valid() {
		return NewValidationError("status", "unknown job status %q", to)
	}
	reject := &InvalidStateTransitionError{
		Entity: "job",
		ID:     j.ID,
		From:   string(j.Status),
		Action: "move to " + string(to),
	}
	if j.Status.IsTerminal() || to == j.Status {
		return reject
	}

	switch {
	case to == JobCanceled:
		j.PreviousStatus = ""
	case to == JobOnHold:
		j.PreviousStatus = j.Status
	case j.Status == JobOnHold:
		if to != j.PreviousStatus {
			return reject
		}
		j.PreviousStatus = ""
	default:
		if jobRank[to] <= jobRank[j.Status] {
			return reject
		}
	}

	j.Status = to
	return nil
}

// Hold puts the job on hold
func (j *Job) Hold() error {
	return j.Transition(JobOnHold)
}

// Resume returns a held job to the state it was held from
func (j *Job) Resume() error {
	if j.Status != JobOnHold {
		return &InvalidStateTransitionError{Entity: "job", ID: j.ID, From: string(j.Status), Action: "resume"}
	}
	return j.Transition(j.PreviousStatus)
}

// Cancel cancels a non-terminal job
func (j *Job) Cancel() error {
	return j.Transition(JobCanceled)
}
