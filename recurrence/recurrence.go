// Package recurrence implements the state changes that only apply to
// recurring deliveries: pause, resume, instance roll-over and the
// dynamic-group flag. Every function mutates the delivery it is given and
// takes the reference instant explicitly.
package recurrence

import (
	"fmt"
	"time"

	"github.com/coreybb/dispatch/models"
)

// Advance returns the next occurrence of t for the given frequency.
// Monthly and quarterly steps use calendar months with time.AddDate
// normalization (Jan 31 + 1 month lands in early March).
func Advance(t time.Time, f models.Frequency) (time.Time, error) {
	switch f {
	case models.FrequencyDaily:
		return t.AddDate(0, 0, 1), nil
	case models.FrequencyWeekly:
		return t.AddDate(0, 0, 7), nil
	case models.FrequencyMonthly:
		return t.AddDate(0, 1, 0), nil
	case models.FrequencyQuarterly:
		return t.AddDate(0, 3, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported frequency %q", models.ErrValidation, f)
	}
}

// Pause freezes a recurring delivery that is scheduled or in progress.
func Pause(d *models.Delivery, now time.Time) error {
	if err := requireRecurring(d, "pause"); err != nil {
		return err
	}
	status := models.EffectiveStatus(d, now)
	if status != models.DeliveryStatusScheduled && status != models.DeliveryStatusInProgress {
		return fmt.Errorf("%w: cannot pause delivery %s while %s", models.ErrInvalidTransition, d.ID, status)
	}

	pausedAt := now
	d.DeclaredStatus = models.DeliveryStatusPaused
	d.Recurrence.PausedAt = &pausedAt
	return nil
}

// Resume unfreezes a paused delivery. The declared status becomes scheduled
// when the window has not opened yet and in-progress otherwise, including
// when the window elapsed while paused; the next read derives expired or
// completed from there.
func Resume(d *models.Delivery, now time.Time) error {
	if d.DeclaredStatus != models.DeliveryStatusPaused {
		return fmt.Errorf("%w: cannot resume delivery %s, it is %s not paused",
			models.ErrInvalidTransition, d.ID, d.DeclaredStatus)
	}

	if now.Before(d.WindowStart) {
		d.DeclaredStatus = models.DeliveryStatusScheduled
	} else {
		d.DeclaredStatus = models.DeliveryStatusInProgress
	}
	if d.Recurrence != nil {
		d.Recurrence.PausedAt = nil
	}
	return nil
}

// CloseInstance records the current instance in the history and moves the
// delivery to its next occurrence: the window shifts by one frequency step
// keeping its length, the completion counter resets and the declared status
// returns to scheduled. Counters are per instance.
func CloseInstance(d *models.Delivery, now time.Time) (models.InstanceSummary, error) {
	if err := requireRecurring(d, "close an instance of"); err != nil {
		return models.InstanceSummary{}, err
	}
	switch d.DeclaredStatus {
	case models.DeliveryStatusCancelled, models.DeliveryStatusPaused:
		return models.InstanceSummary{}, fmt.Errorf("%w: cannot close an instance of delivery %s while %s",
			models.ErrInvalidTransition, d.ID, d.DeclaredStatus)
	}

	nextStart, err := Advance(d.WindowStart, d.Recurrence.Frequency)
	if err != nil {
		return models.InstanceSummary{}, err
	}

	summary := models.InstanceSummary{
		InstanceDate: d.WindowStart,
		Completed:    d.CompletedCount,
		Total:        d.TotalRecipients,
	}
	length := d.WindowEnd.Sub(d.WindowStart)

	d.Recurrence.History = append(d.Recurrence.History, summary)
	d.WindowStart = nextStart
	d.WindowEnd = nextStart.Add(length)
	d.CompletedCount = 0
	d.DeclaredStatus = models.DeliveryStatusScheduled
	return summary, nil
}

// SetDynamicGroup flips whether future instances pick up new group members.
// Membership itself is resolved elsewhere; totals are not touched here.
func SetDynamicGroup(d *models.Delivery, enabled bool) error {
	if err := requireRecurring(d, "change the dynamic group of"); err != nil {
		return err
	}
	d.Recurrence.DynamicGroup = enabled
	return nil
}

// IsDue reports whether a recurring delivery's current instance has run its
// course and should be closed at now.
func IsDue(d *models.Delivery, now time.Time) bool {
	if !d.IsRecurring || d.Recurrence == nil {
		return false
	}
	switch d.DeclaredStatus {
	case models.DeliveryStatusCancelled, models.DeliveryStatusPaused:
		return false
	}
	return now.After(d.WindowEnd)
}

func requireRecurring(d *models.Delivery, action string) error {
	if !d.IsRecurring || d.Recurrence == nil {
		return fmt.Errorf("%w: cannot %s delivery %s, it is not recurring", models.ErrInvalidTransition, action, d.ID)
	}
	return nil
}
