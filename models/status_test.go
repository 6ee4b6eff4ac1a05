package models

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func januaryDelivery(total, completed int) *Delivery {
	return &Delivery{
		ID:              "d-1",
		TargetGroup:     "Sales",
		WindowStart:     day(2024, time.January, 1),
		WindowEnd:       day(2024, time.January, 10),
		DeclaredStatus:  DeliveryStatusScheduled,
		TotalRecipients: total,
		CompletedCount:  completed,
	}
}

func TestEffectiveStatus_FrozenStatesIgnoreTime(t *testing.T) {
	instants := []time.Time{
		day(2023, time.December, 1),
		day(2024, time.January, 5),
		day(2024, time.February, 1),
	}
	for _, declared := range []DeliveryStatus{DeliveryStatusCancelled, DeliveryStatusPaused} {
		for _, now := range instants {
			for _, completed := range []int{0, 50} {
				d := januaryDelivery(50, completed)
				d.DeclaredStatus = declared
				if got := EffectiveStatus(d, now); got != declared {
					t.Errorf("declared %s at %s: expected %s, got %s", declared, now.Format(time.DateOnly), declared, got)
				}
			}
		}
	}
}

func TestEffectiveStatus_DeclaredCompletedStaysCompleted(t *testing.T) {
	d := januaryDelivery(50, 3)
	d.DeclaredStatus = DeliveryStatusCompleted

	for _, now := range []time.Time{day(2023, time.December, 1), day(2024, time.January, 5), day(2024, time.March, 1)} {
		if got := EffectiveStatus(d, now); got != DeliveryStatusCompleted {
			t.Errorf("at %s: expected completed, got %s", now.Format(time.DateOnly), got)
		}
	}
}

func TestEffectiveStatus_TimeDerived(t *testing.T) {
	tests := []struct {
		name      string
		declared  DeliveryStatus
		completed int
		now       time.Time
		want      DeliveryStatus
	}{
		{"before window", DeliveryStatusScheduled, 0, day(2023, time.December, 31), DeliveryStatusScheduled},
		{"at window start", DeliveryStatusScheduled, 0, day(2024, time.January, 1), DeliveryStatusInProgress},
		{"inside window", DeliveryStatusScheduled, 10, day(2024, time.January, 5), DeliveryStatusInProgress},
		{"at window end", DeliveryStatusScheduled, 10, day(2024, time.January, 10), DeliveryStatusInProgress},
		{"after window incomplete", DeliveryStatusScheduled, 40, day(2024, time.January, 15), DeliveryStatusExpired},
		{"after window complete", DeliveryStatusScheduled, 50, day(2024, time.January, 15), DeliveryStatusCompleted},
		{"declared in-progress after window", DeliveryStatusInProgress, 1, day(2024, time.January, 15), DeliveryStatusExpired},
		{"declared in-progress before window", DeliveryStatusInProgress, 0, day(2023, time.December, 1), DeliveryStatusScheduled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := januaryDelivery(50, tt.completed)
			d.DeclaredStatus = tt.declared
			if got := EffectiveStatus(d, tt.now); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
			if d.DeclaredStatus != tt.declared {
				t.Fatalf("EffectiveStatus changed declared status to %s", d.DeclaredStatus)
			}
		})
	}
}

func TestEffectiveStatus_Scenarios(t *testing.T) {
	now := day(2024, time.January, 15)

	full := januaryDelivery(50, 50)
	if got := EffectiveStatus(full, now); got != DeliveryStatusCompleted {
		t.Errorf("expected completed, got %s", got)
	}
	if full.IncompleteCount() != 0 {
		t.Errorf("expected 0 incomplete, got %d", full.IncompleteCount())
	}

	partial := januaryDelivery(50, 40)
	if got := EffectiveStatus(partial, now); got != DeliveryStatusExpired {
		t.Errorf("expected expired, got %s", got)
	}
	if partial.IncompleteCount() != 10 {
		t.Errorf("expected 10 incomplete, got %d", partial.IncompleteCount())
	}
}

func TestEffectiveStatus_ZeroRecipients(t *testing.T) {
	d := januaryDelivery(0, 0)
	if got := EffectiveStatus(d, day(2024, time.January, 15)); got != DeliveryStatusCompleted {
		t.Errorf("expected completed, got %s", got)
	}
	if got := ProgressPercent(d); got != 0 {
		t.Errorf("expected 0%% progress, got %d", got)
	}
	if got := ProgressRatio(d); got != 0 {
		t.Errorf("expected 0 ratio, got %v", got)
	}
}

func TestIsNearExpiry(t *testing.T) {
	d := januaryDelivery(50, 10)

	tests := []struct {
		now  time.Time
		want bool
	}{
		{day(2024, time.January, 6), false},
		{day(2024, time.January, 7), true},
		{day(2024, time.January, 8), true},
		{day(2024, time.January, 9).Add(20 * time.Hour), true},
		{day(2024, time.January, 10), true},
		{day(2024, time.January, 11), false},
		{day(2023, time.December, 30), false},
	}
	for _, tt := range tests {
		if got := IsNearExpiry(d, tt.now); got != tt.want {
			t.Errorf("at %s: expected near expiry %v, got %v", tt.now.Format(time.RFC3339), tt.want, got)
		}
	}

	d.DeclaredStatus = DeliveryStatusPaused
	if IsNearExpiry(d, day(2024, time.January, 8)) {
		t.Error("paused delivery must not be near expiry")
	}
}

func TestDaysUntil_Truncates(t *testing.T) {
	end := day(2024, time.January, 10)
	if got := DaysUntil(end, day(2024, time.January, 6).Add(-time.Hour)); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
	if got := DaysUntil(end, day(2024, time.January, 8).Add(12*time.Hour)); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := DaysUntil(end, day(2024, time.January, 12)); got != -2 {
		t.Errorf("expected -2, got %d", got)
	}
}

func TestProgressPercent(t *testing.T) {
	if got := ProgressPercent(januaryDelivery(3, 1)); got != 33 {
		t.Errorf("expected 33, got %d", got)
	}
	if got := ProgressPercent(januaryDelivery(50, 50)); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
}

func TestSnapshot_DoesNotShareRecurrence(t *testing.T) {
	paused := day(2024, time.January, 3)
	d := januaryDelivery(50, 5)
	d.IsRecurring = true
	d.Recurrence = &Recurrence{
		Frequency: FrequencyWeekly,
		PausedAt:  &paused,
		History:   []InstanceSummary{{InstanceDate: day(2023, time.December, 25), Completed: 4, Total: 5}},
	}

	snap := Snapshot(d, day(2024, time.January, 5))
	snap.Recurrence.History[0].Completed = 99
	*snap.Recurrence.PausedAt = day(2030, time.January, 1)

	if d.Recurrence.History[0].Completed != 4 {
		t.Error("snapshot history aliases the record")
	}
	if !d.Recurrence.PausedAt.Equal(paused) {
		t.Error("snapshot paused-at aliases the record")
	}
	if snap.EffectiveStatus != DeliveryStatusInProgress || snap.IncompleteCount != 45 || snap.ProgressPercent != 10 {
		t.Errorf("unexpected derived fields: %+v", snap)
	}
}

func TestDelivery_Validate(t *testing.T) {
	d := januaryDelivery(10, 2)
	if err := d.Validate(); err != nil {
		t.Fatalf("expected valid delivery, got %v", err)
	}

	bad := januaryDelivery(10, 2)
	bad.WindowEnd = bad.WindowStart
	if err := bad.Validate(); err == nil {
		t.Error("expected error for empty window")
	}

	bad = januaryDelivery(10, 11)
	if err := bad.Validate(); err == nil {
		t.Error("expected error for completed > total")
	}

	bad = januaryDelivery(10, 2)
	bad.TargetGroup = "   "
	if err := bad.Validate(); err == nil {
		t.Error("expected error for blank target group")
	}

	bad = januaryDelivery(10, 2)
	bad.IsRecurring = true
	bad.Recurrence = &Recurrence{Frequency: "hourly"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unsupported frequency")
	}
}
