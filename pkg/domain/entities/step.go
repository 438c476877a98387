package entities

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StepStatus is the lifecycle state of a process step
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepReady      StepStatus = "ready"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepBlocked    StepStatus = "blocked"
	StepCanceled   StepStatus = "canceled"
)

// IsTerminal reports whether the step can no longer change state
func (s StepStatus) IsTerminal() bool {
	return s == StepCompleted || s == StepCanceled
}

// Valid reports whether s is a known step status
func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepReady, StepInProgress, StepCompleted, StepBlocked, StepCanceled:
		return true
	}
	return false
}

// Step is one process execution unit inside a job. Steps sharing an
// OrderIndex form a cohort that gates every later cohort as a unit.
type Step struct {
	ID                 string           `gorm:"primaryKey;size:36" yaml:"id" json:"id"`
	JobID              string           `gorm:"index;size:36;not null" yaml:"-" json:"job_id"`
	ProcessID          string           `gorm:"size:36" yaml:"process_id" json:"process_id"`
	ProcessName        string           `gorm:"size:255" yaml:"process_name" json:"process_name"`
	MachineBased       bool             `gorm:"default:false" yaml:"machine_based" json:"machine_based"`
	OrderIndex         int              `gorm:"index;not null" yaml:"order_index" json:"order_index"`
	IsParallel         bool             `gorm:"default:false" yaml:"is_parallel" json:"is_parallel"`
	AssignedUserID     *string          `gorm:"size:36" yaml:"assigned_user_id" json:"assigned_user_id,omitempty"`
	AssignedMachineID  *string          `gorm:"size:36" yaml:"assigned_machine_id" json:"assigned_machine_id,omitempty"`
	Status             StepStatus       `gorm:"index;size:20;default:'pending'" yaml:"status" json:"status"`
	StartedAt          *time.Time       `yaml:"started_at" json:"started_at,omitempty"`
	CompletedAt        *time.Time       `yaml:"completed_at" json:"completed_at,omitempty"`
	EstimatedDuration  int              `gorm:"default:0" yaml:"estimated_duration" json:"estimated_duration"` // minutes
	ActualDuration     *int             `yaml:"actual_duration" json:"actual_duration,omitempty"`              // minutes
	ProductionQuantity *decimal.Decimal `gorm:"type:numeric" yaml:"production_quantity" json:"production_quantity,omitempty"`
	ProductionUnit     string           `gorm:"size:20" yaml:"production_unit" json:"production_unit,omitempty"`
	ProductionNotes    string           `gorm:"type:text" yaml:"production_notes" json:"production_notes,omitempty"`
	BlockReason        string           `gorm:"type:text" yaml:"block_reason" json:"block_reason,omitempty"`
	Revision           int              `gorm:"default:0" yaml:"-" json:"revision"`
	Version            int              `gorm:"not null;default:1" yaml:"-" json:"version"`
	CreatedAt          time.Time        `gorm:"autoCreateTime" yaml:"-" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime" yaml:"-" json:"updated_at"`
}

// Validate checks the structural fields of a step
func (s *Step) Validate() error {
	if strings.TrimSpace(s.JobID) == "" {
		return NewValidationError("job_id", "step must belong to a job")
	}
	if s.OrderIndex < 0 {
		return NewValidationError("order_index", "order index cannot be negative, got %d", s.OrderIndex)
	}
	if s.EstimatedDuration < 0 {
		return NewValidationError("estimated_duration", "estimated duration cannot be negative, got %d", s.EstimatedDuration)
	}
	if s.Status != "" && !s.Status.Valid() {
		return NewValidationError("status", "unknown step status %q", s.Status)
	}
	return nil
}

// HasMachine reports whether a machine is assigned
func (s *Step) HasMachine() bool {
	return s.AssignedMachineID != nil && strings.TrimSpace(*s.AssignedMachineID) != ""
}

// HasUser reports whether a user is assigned
func (s *Step) HasUser() bool {
	return s.AssignedUserID != nil && strings.TrimSpace(*s.AssignedUserID) != ""
}
