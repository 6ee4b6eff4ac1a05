package models

import "time"

// nearExpiryDays is the inclusive number of whole days before the window end
// during which an in-progress delivery is flagged as near expiry.
const nearExpiryDays = 3

// EffectiveStatus derives the status a delivery should be displayed and acted
// upon with at the instant now. It never modifies d.
//
// Order matters: cancelled and paused are returned unchanged, a declared
// completion always stands, and only then do the window and counters decide.
func EffectiveStatus(d *Delivery, now time.Time) DeliveryStatus {
	switch d.DeclaredStatus {
	case DeliveryStatusCancelled, DeliveryStatusPaused:
		return d.DeclaredStatus
	case DeliveryStatusCompleted:
		return DeliveryStatusCompleted
	}

	if now.Before(d.WindowStart) {
		return DeliveryStatusScheduled
	}
	if !now.After(d.WindowEnd) {
		return DeliveryStatusInProgress
	}
	// Direct integer comparison: a zero-recipient delivery is complete once its window closes.
	if d.CompletedCount >= d.TotalRecipients {
		return DeliveryStatusCompleted
	}
	return DeliveryStatusExpired
}

// IsTerminal reports whether a status has no outgoing transitions.
func IsTerminal(s DeliveryStatus) bool {
	return s == DeliveryStatusCompleted || s == DeliveryStatusCancelled
}

// DaysUntil returns the whole number of days from now until end, truncated
// toward zero. It is negative once end has passed by a full day or more.
func DaysUntil(end, now time.Time) int {
	return int(end.Sub(now) / (24 * time.Hour))
}

// IsNearExpiry reports whether d is in progress and its window closes within
// nearExpiryDays whole days.
func IsNearExpiry(d *Delivery, now time.Time) bool {
	if EffectiveStatus(d, now) != DeliveryStatusInProgress {
		return false
	}
	days := DaysUntil(d.WindowEnd, now)
	return days >= 0 && days <= nearExpiryDays
}

// ProgressPercent is the saturating completion percentage used for display.
func ProgressPercent(d *Delivery) int {
	if d.TotalRecipients <= 0 {
		return 0
	}
	pct := d.CompletedCount * 100 / d.TotalRecipients
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// ProgressRatio is completed/total, or 0 when there are no recipients.
func ProgressRatio(d *Delivery) float64 {
	if d.TotalRecipients <= 0 {
		return 0
	}
	return float64(d.CompletedCount) / float64(d.TotalRecipients)
}

// DeliverySnapshot is a delivery as returned from a query: a private copy of
// the record plus the values derived from it at read time.
type DeliverySnapshot struct {
	Delivery
	EffectiveStatus DeliveryStatus `json:"effective_status"`
	IncompleteCount int            `json:"incomplete_count"`
	ProgressPercent int            `json:"progress_percent"`
	NearExpiry      bool           `json:"near_expiry"`
	EvaluatedAt     time.Time      `json:"evaluated_at"`
}

// Snapshot copies d and evaluates its derived fields at now.
func Snapshot(d *Delivery, now time.Time) DeliverySnapshot {
	c := d.Clone()
	return DeliverySnapshot{
		Delivery:        *c,
		EffectiveStatus: EffectiveStatus(c, now),
		IncompleteCount: c.IncompleteCount(),
		ProgressPercent: ProgressPercent(c),
		NearExpiry:      IsNearExpiry(c, now),
		EvaluatedAt:     now,
	}
}
