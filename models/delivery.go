package models

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus defines the set of allowed statuses for a Delivery.
type DeliveryStatus string

const (
	DeliveryStatusScheduled  DeliveryStatus = "scheduled"
	DeliveryStatusInProgress DeliveryStatus = "in-progress"
	DeliveryStatusCompleted  DeliveryStatus = "completed"
	DeliveryStatusExpired    DeliveryStatus = "expired"
	DeliveryStatusPaused     DeliveryStatus = "paused"
	DeliveryStatusCancelled  DeliveryStatus = "cancelled"
)

// IsValidDeliveryStatus checks if the provided status string is a valid DeliveryStatus.
func IsValidDeliveryStatus(statusStr string) (DeliveryStatus, bool) {
	ds := DeliveryStatus(strings.ToLower(strings.TrimSpace(statusStr)))
	switch ds {
	case DeliveryStatusScheduled, DeliveryStatusInProgress, DeliveryStatusCompleted,
		DeliveryStatusExpired, DeliveryStatusPaused, DeliveryStatusCancelled:
		return ds, true
	default:
		return "", false
	}
}

// DeliveryKind distinguishes assessments from surveys.
type DeliveryKind string

const (
	DeliveryKindAssessment DeliveryKind = "assessment"
	DeliveryKindSurvey     DeliveryKind = "survey"
)

// IsValidDeliveryKind checks if the provided kind string is a valid DeliveryKind.
func IsValidDeliveryKind(kindStr string) (DeliveryKind, bool) {
	dk := DeliveryKind(strings.ToLower(strings.TrimSpace(kindStr)))
	switch dk {
	case DeliveryKindAssessment, DeliveryKindSurvey:
		return dk, true
	default:
		return "", false
	}
}

// TemplateRef identifies the assessment or survey being delivered.
// It is copied onto the delivery at creation and never changes afterwards.
type TemplateRef struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Kind             DeliveryKind `json:"kind"`
	EstimatedMinutes int          `json:"estimated_minutes"`
}

// InstanceSummary records how a closed recurring instance ended.
type InstanceSummary struct {
	InstanceDate time.Time `json:"instance_date"`
	Completed    int       `json:"completed"`
	Total        int       `json:"total"`
}

// Recurrence holds the fields that only exist on recurring deliveries.
type Recurrence struct {
	Frequency    Frequency         `json:"frequency"`
	DynamicGroup bool              `json:"dynamic_group"`
	PausedAt     *time.Time        `json:"paused_at,omitempty"`
	History      []InstanceSummary `json:"history"`
}

// Delivery is one scheduled distribution of an assessment or survey to a
// target group. DeclaredStatus is the last status set by a mutation; the
// status shown to callers is derived with EffectiveStatus.
type Delivery struct {
	ID              string         `json:"id"`
	Template        TemplateRef    `json:"template"`
	TargetGroup     string         `json:"target_group"`
	WindowStart     time.Time      `json:"window_start"`
	WindowEnd       time.Time      `json:"window_end"`
	DeclaredStatus  DeliveryStatus `json:"declared_status"`
	TotalRecipients int            `json:"total_recipients"`
	CompletedCount  int            `json:"completed_count"`
	CreatedBy       string         `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
	IsRecurring     bool           `json:"is_recurring"`
	Recurrence      *Recurrence    `json:"recurrence,omitempty"`
}

// IncompleteCount is always derived from the two stored counters.
func (d *Delivery) IncompleteCount() int {
	n := d.TotalRecipients - d.CompletedCount
	if n < 0 {
		return 0
	}
	return n
}

// Clone returns a deep copy so callers never share recurrence state with the store.
func (d *Delivery) Clone() *Delivery {
	c := *d
	if d.Recurrence != nil {
		rec := *d.Recurrence
		if d.Recurrence.PausedAt != nil {
			pausedAt := *d.Recurrence.PausedAt
			rec.PausedAt = &pausedAt
		}
		rec.History = append([]InstanceSummary(nil), d.Recurrence.History...)
		c.Recurrence = &rec
	}
	return &c
}

// Validate checks the invariants every stored delivery must satisfy.
func (d *Delivery) Validate() error {
	if strings.TrimSpace(d.TargetGroup) == "" {
		return fmt.Errorf("%w: target group cannot be empty", ErrValidation)
	}
	if err := ValidateWindow(d.WindowStart, d.WindowEnd); err != nil {
		return err
	}
	if d.TotalRecipients < 0 || d.CompletedCount < 0 {
		return fmt.Errorf("%w: recipient counts cannot be negative", ErrValidation)
	}
	if d.CompletedCount > d.TotalRecipients {
		return fmt.Errorf("%w: completed count %d exceeds total recipients %d", ErrValidation, d.CompletedCount, d.TotalRecipients)
	}
	if d.IsRecurring {
		if d.Recurrence == nil {
			return fmt.Errorf("%w: recurring delivery is missing its recurrence settings", ErrValidation)
		}
		if _, ok := IsValidFrequency(string(d.Recurrence.Frequency)); !ok {
			return fmt.Errorf("%w: invalid frequency %q", ErrValidation, d.Recurrence.Frequency)
		}
	}
	return nil
}

// ValidateWindow enforces windowStart < windowEnd.
func ValidateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: window start and end are required", ErrValidation)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: window start %s must be before window end %s",
			ErrValidation, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}
