package datastore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coreybb/dispatch/models"
)

var testNow = time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)

func jan(d int) time.Time {
	return time.Date(2024, time.January, d, 9, 0, 0, 0, time.UTC)
}

type recordingSender struct {
	mu      sync.Mutex
	notices []models.ReminderNotice
}

func (s *recordingSender) Dispatch(ctx context.Context, n models.ReminderNotice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

type bulkCall struct {
	op                 string
	requested, changed int
}

type recordingObserver struct {
	calls []bulkCall
}

func (o *recordingObserver) ObserveBulk(op string, requested, changed int) {
	o.calls = append(o.calls, bulkCall{op, requested, changed})
}

type storeFixture struct {
	store      *DeliveryStore
	groups     *GroupDirectory
	sender     *recordingSender
	observer   *recordingObserver
	templateID string
	clock      *time.Time
}

func newFixture(t *testing.T) *storeFixture {
	t.Helper()
	ctx := context.Background()

	catalog := NewTemplateCatalog()
	tmpl := &models.AssessmentTemplate{Title: "Quarterly Compliance", Kind: models.DeliveryKindAssessment, EstimatedMinutes: 20}
	if err := catalog.AddTemplate(ctx, tmpl); err != nil {
		t.Fatalf("AddTemplate failed: %v", err)
	}
	groups := NewGroupDirectory()
	if err := groups.SetMemberCount(ctx, "Sales", 50); err != nil {
		t.Fatalf("SetMemberCount failed: %v", err)
	}

	clock := testNow
	f := &storeFixture{
		groups:     groups,
		sender:     &recordingSender{},
		observer:   &recordingObserver{},
		templateID: tmpl.ID,
		clock:      &clock,
	}
	f.store = NewDeliveryStore(catalog, groups,
		WithClock(func() time.Time { return *f.clock }),
		WithReminderSender(f.sender),
		WithObserver(f.observer),
	)
	return f
}

func (f *storeFixture) create(t *testing.T, start, end time.Time, mutate func(*CreateDeliveryInput)) models.DeliverySnapshot {
	t.Helper()
	in := CreateDeliveryInput{
		TemplateID:  f.templateID,
		TargetGroup: "Sales",
		WindowStart: start,
		WindowEnd:   end,
		CreatedBy:   "admin-1",
	}
	if mutate != nil {
		mutate(&in)
	}
	snap, err := f.store.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return snap
}

func intPtr(n int) *int { return &n }

func (f *storeFixture) setProgress(t *testing.T, id string, completed int) {
	t.Helper()
	if _, err := f.store.RecordProgress(context.Background(), id, completed); err != nil {
		t.Fatalf("RecordProgress failed: %v", err)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	snap := f.create(t, jan(20), jan(30), nil)
	if snap.ID == "" {
		t.Fatal("expected an ID to be assigned")
	}
	if snap.TotalRecipients != 50 {
		t.Errorf("expected total from group directory, got %d", snap.TotalRecipients)
	}
	if snap.EffectiveStatus != models.DeliveryStatusScheduled || snap.DeclaredStatus != models.DeliveryStatusScheduled {
		t.Errorf("expected scheduled, got declared %s effective %s", snap.DeclaredStatus, snap.EffectiveStatus)
	}
	if snap.Template.Title != "Quarterly Compliance" {
		t.Errorf("unexpected template ref %+v", snap.Template)
	}
	if !snap.CreatedAt.Equal(testNow) {
		t.Errorf("expected created at %v, got %v", testNow, snap.CreatedAt)
	}
}

func TestCreate_FreeTextGroupUsesCallerCount(t *testing.T) {
	f := newFixture(t)
	snap := f.create(t, jan(20), jan(30), func(in *CreateDeliveryInput) {
		in.TargetGroup = "Contractors in Berlin"
		in.TotalRecipients = intPtr(7)
	})
	if snap.TotalRecipients != 7 {
		t.Errorf("expected 7 recipients, got %d", snap.TotalRecipients)
	}
}

func TestCreate_StartImmediately(t *testing.T) {
	f := newFixture(t)
	snap := f.create(t, time.Time{}, jan(20), func(in *CreateDeliveryInput) { in.StartImmediately = true })
	if !snap.WindowStart.Equal(testNow) {
		t.Errorf("expected window to open now, got %v", snap.WindowStart)
	}
	if snap.EffectiveStatus != models.DeliveryStatusInProgress {
		t.Errorf("expected in-progress, got %s", snap.EffectiveStatus)
	}
}

func TestCreate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateDeliveryInput)
	}{
		{"unknown template", func(in *CreateDeliveryInput) { in.TemplateID = "missing" }},
		{"blank group", func(in *CreateDeliveryInput) { in.TargetGroup = "  " }},
		{"inverted window", func(in *CreateDeliveryInput) { in.WindowStart, in.WindowEnd = jan(30), jan(20) }},
		{"empty window", func(in *CreateDeliveryInput) { in.WindowEnd = in.WindowStart }},
		{"bad frequency", func(in *CreateDeliveryInput) { in.Recurring = true; in.Frequency = "hourly" }},
		{"free-text group without total", func(in *CreateDeliveryInput) { in.TargetGroup = "Night shift volunteers" }},
		{"negative free-text total", func(in *CreateDeliveryInput) {
			in.TargetGroup = "Night shift volunteers"
			in.TotalRecipients = intPtr(-1)
		}},
		{"total for directory group", func(in *CreateDeliveryInput) { in.TotalRecipients = intPtr(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := CreateDeliveryInput{TemplateID: f.templateID, TargetGroup: "Sales", WindowStart: jan(20), WindowEnd: jan(30)}
			tt.mutate(&in)
			if _, err := f.store.Create(context.Background(), in); !errors.Is(err, models.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if got := f.store.List(context.Background(), DeliveryFilter{}, DeliverySort{}); len(got) != 0 {
				t.Fatalf("rejected create stored %d records", len(got))
			}
		})
	}
}

func TestGet_NotFoundAndIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.store.Get(ctx, "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created := f.create(t, jan(20), jan(30), nil)
	snap, err := f.store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	snap.TargetGroup = "changed"
	snap.CompletedCount = 49

	again, _ := f.store.Get(ctx, created.ID)
	if again.TargetGroup != "Sales" || again.CompletedCount != 0 {
		t.Errorf("mutating a snapshot leaked into the store: %+v", again.Delivery)
	}
}

func TestList_FilterAndStableSort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, jan(20), jan(30), nil)
	b := f.create(t, jan(20), jan(25), nil)
	c := f.create(t, jan(1), jan(10), func(in *CreateDeliveryInput) { in.TargetGroup = "Marketing"; in.TotalRecipients = intPtr(10) })
	d := f.create(t, jan(20), jan(28), nil)

	got := f.store.List(ctx, DeliveryFilter{}, DeliverySort{Key: SortByStartDate})
	wantOrder := []string{c.ID, a.ID, b.ID, d.ID}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("ascending start: position %d expected %s, got %s", i, id, got[i].ID)
		}
	}

	got = f.store.List(ctx, DeliveryFilter{}, DeliverySort{Key: SortByStartDate, Descending: true})
	wantOrder = []string{a.ID, b.ID, d.ID, c.ID}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("descending start: position %d expected %s, got %s", i, id, got[i].ID)
		}
	}

	got = f.store.List(ctx, DeliveryFilter{TargetGroup: "mark"}, DeliverySort{})
	if len(got) != 1 || got[0].ID != c.ID {
		t.Fatalf("group filter: expected only %s, got %d results", c.ID, len(got))
	}

	got = f.store.List(ctx, DeliveryFilter{Status: models.DeliveryStatusExpired}, DeliverySort{})
	if len(got) != 1 || got[0].ID != c.ID {
		t.Fatalf("status filter: expected only the expired delivery, got %d results", len(got))
	}

	got = f.store.List(ctx, DeliveryFilter{Title: "COMPLIANCE"}, DeliverySort{Key: SortByEndDate})
	if len(got) != 4 || got[0].ID != c.ID || got[1].ID != b.ID {
		t.Fatalf("title filter with end sort returned unexpected order")
	}
}

func TestList_SortByProgress(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, jan(20), jan(30), nil)
	b := f.create(t, jan(20), jan(30), nil)
	f.setProgress(t, a.ID, 25)
	f.setProgress(t, b.ID, 5)

	got := f.store.List(context.Background(), DeliveryFilter{}, DeliverySort{Key: SortByProgress, Descending: true})
	if got[0].ID != a.ID || got[1].ID != b.ID {
		t.Fatalf("expected %s before %s", a.ID, b.ID)
	}
}

func TestParseSortKey(t *testing.T) {
	if k, err := ParseSortKey(" Title "); err != nil || k != SortByTitle {
		t.Fatalf("expected title, got %q %v", k, err)
	}
	if _, err := ParseSortKey("priority"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestExtendDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expired := f.create(t, jan(1), jan(10), nil)
	f.setProgress(t, expired.ID, 40)
	completed := f.create(t, jan(1), jan(10), nil)
	f.setProgress(t, completed.ID, 50)
	cancelled := f.create(t, jan(20), jan(30), nil)
	f.store.Cancel(ctx, []string{cancelled.ID})
	open := f.create(t, jan(10), jan(20), nil)

	f.observer.calls = nil
	ids := []string{expired.ID, completed.ID, cancelled.ID, open.ID, "missing"}
	changed, err := f.store.ExtendDeadline(ctx, ids, 7)
	if err != nil {
		t.Fatalf("ExtendDeadline failed: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected 2 changed, got %d", changed)
	}

	revived, _ := f.store.Get(ctx, expired.ID)
	if !revived.WindowEnd.Equal(jan(17)) {
		t.Errorf("expected window end %v, got %v", jan(17), revived.WindowEnd)
	}
	if revived.EffectiveStatus != models.DeliveryStatusInProgress || revived.DeclaredStatus != models.DeliveryStatusInProgress {
		t.Errorf("expected expired delivery to be revived, got declared %s effective %s", revived.DeclaredStatus, revived.EffectiveStatus)
	}

	untouched, _ := f.store.Get(ctx, completed.ID)
	if !untouched.WindowEnd.Equal(jan(10)) {
		t.Errorf("completed delivery should not be extended, got %v", untouched.WindowEnd)
	}

	if len(f.observer.calls) != 1 || f.observer.calls[0] != (bulkCall{OperationExtend, 5, 2}) {
		t.Errorf("unexpected observer calls %+v", f.observer.calls)
	}
}

func TestExtendDeadline_RejectsNonPositiveDays(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, jan(10), jan(20), nil)
	for _, days := range []int{0, -3} {
		if _, err := f.store.ExtendDeadline(context.Background(), []string{d.ID}, days); !errors.Is(err, models.ErrValidation) {
			t.Errorf("days %d: expected ErrValidation, got %v", days, err)
		}
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	scheduled := f.create(t, jan(20), jan(30), nil)
	inProgress := f.create(t, jan(10), jan(20), nil)
	paused := f.create(t, jan(20), jan(30), func(in *CreateDeliveryInput) {
		in.Recurring = true
		in.Frequency = models.FrequencyWeekly
	})
	if _, err := f.store.Pause(ctx, paused.ID); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	declaredDone := f.create(t, jan(20), jan(30), nil)
	if _, err := f.store.MarkComplete(ctx, declaredDone.ID); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}
	derivedDone := f.create(t, jan(1), jan(10), nil)
	f.setProgress(t, derivedDone.ID, 50)

	f.observer.calls = nil
	ids := []string{scheduled.ID, inProgress.ID, paused.ID, scheduled.ID, declaredDone.ID, derivedDone.ID}
	changed := f.store.Cancel(ctx, ids)
	if changed != 2 {
		t.Fatalf("expected 2 cancelled, got %d", changed)
	}
	if len(f.observer.calls) != 1 || f.observer.calls[0] != (bulkCall{OperationCancel, 5, 2}) {
		t.Errorf("expected requested to count distinct ids, got %+v", f.observer.calls)
	}

	tests := []struct {
		id               string
		declared, wanted models.DeliveryStatus
	}{
		{scheduled.ID, models.DeliveryStatusCancelled, models.DeliveryStatusCancelled},
		{paused.ID, models.DeliveryStatusCancelled, models.DeliveryStatusCancelled},
		{inProgress.ID, models.DeliveryStatusScheduled, models.DeliveryStatusInProgress},
		{declaredDone.ID, models.DeliveryStatusCompleted, models.DeliveryStatusCompleted},
		{derivedDone.ID, models.DeliveryStatusScheduled, models.DeliveryStatusCompleted},
	}
	for _, tt := range tests {
		got, _ := f.store.Get(ctx, tt.id)
		if got.DeclaredStatus != tt.declared || got.EffectiveStatus != tt.wanted {
			t.Errorf("%s: expected %s/%s, got %s/%s", tt.id, tt.declared, tt.wanted, got.DeclaredStatus, got.EffectiveStatus)
		}
	}

	if n := f.store.Cancel(ctx, []string{declaredDone.ID, derivedDone.ID}); n != 0 {
		t.Errorf("cancel on completed deliveries changed %d", n)
	}

	*f.clock = jan(31)
	got, _ := f.store.Get(ctx, scheduled.ID)
	if got.EffectiveStatus != models.DeliveryStatusCancelled {
		t.Errorf("cancelled must stay cancelled over time, got %s", got.EffectiveStatus)
	}
}

func TestRemind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	open := f.create(t, jan(10), jan(20), nil)
	f.setProgress(t, open.ID, 30)
	done := f.create(t, jan(10), jan(20), nil)
	f.setProgress(t, done.ID, 50)
	scheduled := f.create(t, jan(20), jan(30), nil)
	finished := f.create(t, jan(1), jan(10), nil)
	f.setProgress(t, finished.ID, 50)

	before, _ := f.store.Get(ctx, open.ID)

	sent := f.store.Remind(ctx, []string{open.ID, done.ID, scheduled.ID, finished.ID, "missing"})
	if sent != 1 {
		t.Fatalf("expected 1 reminder, got %d", sent)
	}
	if len(f.sender.notices) != 1 {
		t.Fatalf("expected 1 dispatched notice, got %d", len(f.sender.notices))
	}
	n := f.sender.notices[0]
	if n.DeliveryID != open.ID || n.Outstanding != 20 || n.TargetGroup != "Sales" {
		t.Errorf("unexpected notice %+v", n)
	}

	after, _ := f.store.Get(ctx, open.ID)
	if after.CompletedCount != before.CompletedCount || after.DeclaredStatus != before.DeclaredStatus || !after.WindowEnd.Equal(before.WindowEnd) {
		t.Error("remind must not modify the delivery")
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, jan(20), jan(30), nil)
	b := f.create(t, jan(20), jan(30), nil)
	c := f.create(t, jan(20), jan(30), nil)

	if n := f.store.Delete(ctx, []string{b.ID, "missing"}); n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if _, err := f.store.Get(ctx, b.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected deleted delivery to be gone, got %v", err)
	}
	got := f.store.List(ctx, DeliveryFilter{}, DeliverySort{})
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != c.ID {
		t.Fatalf("unexpected remaining deliveries")
	}
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.groups.SetMemberCount(ctx, "Marketing", 12); err != nil {
		t.Fatal(err)
	}

	d := f.create(t, jan(20), jan(30), nil)
	group := "Marketing"
	end := jan(31)
	snap, err := f.store.Edit(ctx, d.ID, DeliveryPatch{TargetGroup: &group, WindowEnd: &end})
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if snap.TargetGroup != "Marketing" || snap.TotalRecipients != 12 || !snap.WindowEnd.Equal(end) {
		t.Errorf("unexpected edited delivery %+v", snap.Delivery)
	}

	badEnd := jan(19)
	if _, err := f.store.Edit(ctx, d.ID, DeliveryPatch{WindowEnd: &badEnd}); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	unchanged, _ := f.store.Get(ctx, d.ID)
	if !unchanged.WindowEnd.Equal(end) {
		t.Error("failed edit modified the record")
	}

	f.store.Cancel(ctx, []string{d.ID})
	if _, err := f.store.Edit(ctx, d.ID, DeliveryPatch{WindowEnd: &end}); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for cancelled delivery, got %v", err)
	}

	if _, err := f.store.Edit(ctx, "missing", DeliveryPatch{TargetGroup: &group}); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEdit_RecipientTotals(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name      string
		freeText  bool
		patch     DeliveryPatch
		wantErr   error
		wantGroup string
		wantTotal int
	}{
		{"directory group", false, DeliveryPatch{TargetGroup: str("Sales")}, nil, "Sales", 50},
		{"directory group with total", false, DeliveryPatch{TargetGroup: str("Sales"), TotalRecipients: intPtr(7)}, models.ErrValidation, "Sales", 50},
		{"total alone on directory group", false, DeliveryPatch{TotalRecipients: intPtr(7)}, models.ErrValidation, "Sales", 50},
		{"free-text group with total", false, DeliveryPatch{TargetGroup: str("Night shift volunteers"), TotalRecipients: intPtr(9)}, nil, "Night shift volunteers", 9},
		{"free-text group without total", false, DeliveryPatch{TargetGroup: str("Night shift volunteers")}, models.ErrValidation, "Sales", 50},
		{"negative free-text total", false, DeliveryPatch{TargetGroup: str("Night shift volunteers"), TotalRecipients: intPtr(-1)}, models.ErrValidation, "Sales", 50},
		{"total alone on free-text group", true, DeliveryPatch{TotalRecipients: intPtr(11)}, nil, "Contractors", 11},
		{"free-text back to directory group", true, DeliveryPatch{TargetGroup: str("Sales")}, nil, "Sales", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			d := f.create(t, jan(20), jan(30), func(in *CreateDeliveryInput) {
				if tt.freeText {
					in.TargetGroup = "Contractors"
					in.TotalRecipients = intPtr(4)
				}
			})

			_, err := f.store.Edit(ctx, d.ID, tt.patch)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("Edit failed: %v", err)
			}

			got, _ := f.store.Get(ctx, d.ID)
			if got.TargetGroup != tt.wantGroup || got.TotalRecipients != tt.wantTotal {
				t.Errorf("expected %s/%d, got %s/%d", tt.wantGroup, tt.wantTotal, got.TargetGroup, got.TotalRecipients)
			}
		})
	}
}

func TestRecordProgress_RejectsOverflow(t *testing.T) {
	f := newFixture(t)
	d := f.create(t, jan(10), jan(20), nil)
	if _, err := f.store.RecordProgress(context.Background(), d.ID, 51); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMarkComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.create(t, jan(10), jan(20), nil)

	snap, err := f.store.MarkComplete(ctx, d.ID)
	if err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}
	if snap.EffectiveStatus != models.DeliveryStatusCompleted || snap.IncompleteCount != 50 {
		t.Errorf("expected completed with 50 incomplete, got %s/%d", snap.EffectiveStatus, snap.IncompleteCount)
	}
	if _, err := f.store.MarkComplete(ctx, d.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRecurringLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.create(t, jan(14), jan(18), func(in *CreateDeliveryInput) {
		in.Recurring = true
		in.Frequency = models.FrequencyWeekly
	})
	f.setProgress(t, d.ID, 45)

	paused, err := f.store.Pause(ctx, d.ID)
	if err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if paused.EffectiveStatus != models.DeliveryStatusPaused || paused.Recurrence.PausedAt == nil {
		t.Fatalf("expected paused with timestamp, got %+v", paused.Recurrence)
	}
	if _, err := f.store.CloseInstance(ctx, d.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected paused delivery to refuse roll-over, got %v", err)
	}

	resumed, err := f.store.Resume(ctx, d.ID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.DeclaredStatus != models.DeliveryStatusInProgress {
		t.Fatalf("expected in-progress after resume, got %s", resumed.DeclaredStatus)
	}

	*f.clock = jan(19)
	rolled, err := f.store.CloseInstance(ctx, d.ID)
	if err != nil {
		t.Fatalf("CloseInstance failed: %v", err)
	}
	if !rolled.WindowStart.Equal(jan(21)) || !rolled.WindowEnd.Equal(jan(25)) {
		t.Errorf("unexpected next window %v - %v", rolled.WindowStart, rolled.WindowEnd)
	}
	if rolled.CompletedCount != 0 || len(rolled.Recurrence.History) != 1 || rolled.Recurrence.History[0].Completed != 45 {
		t.Errorf("unexpected roll-over state %+v", rolled.Recurrence)
	}

	oneOff := f.create(t, jan(20), jan(30), nil)
	if _, err := f.store.Pause(ctx, oneOff.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected one-off pause to fail, got %v", err)
	}
}

func TestRefreshMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.create(t, jan(14), jan(18), func(in *CreateDeliveryInput) {
		in.Recurring = true
		in.Frequency = models.FrequencyWeekly
	})
	if _, err := f.store.RefreshMembership(ctx, d.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Fatalf("expected static group refresh to fail, got %v", err)
	}
	if _, err := f.store.SetDynamicGroup(ctx, d.ID, true); err != nil {
		t.Fatalf("SetDynamicGroup failed: %v", err)
	}
	f.setProgress(t, d.ID, 45)

	if err := f.groups.SetMemberCount(ctx, "sales", 40); err != nil {
		t.Fatal(err)
	}
	snap, err := f.store.RefreshMembership(ctx, d.ID)
	if err != nil {
		t.Fatalf("RefreshMembership failed: %v", err)
	}
	if snap.TotalRecipients != 40 || snap.CompletedCount != 40 {
		t.Errorf("expected 40/40 after shrink, got %d/%d", snap.CompletedCount, snap.TotalRecipients)
	}
}

func TestStatusCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, jan(20), jan(30), nil)
	f.create(t, jan(10), jan(20), nil)
	f.create(t, jan(1), jan(10), nil)
	cancelled := f.create(t, jan(20), jan(30), nil)
	f.store.Cancel(ctx, []string{cancelled.ID})

	counts := f.store.StatusCounts(ctx)
	want := map[models.DeliveryStatus]int{
		models.DeliveryStatusScheduled:  1,
		models.DeliveryStatusInProgress: 1,
		models.DeliveryStatusExpired:    1,
		models.DeliveryStatusCancelled:  1,
	}
	for status, n := range want {
		if counts[status] != n {
			t.Errorf("%s: expected %d, got %d", status, n, counts[status])
		}
	}
}
