package datastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreybb/dispatch/models"
	"github.com/coreybb/dispatch/recurrence"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TemplateLookup resolves a template ID to the reference stored on deliveries.
type TemplateLookup interface {
	LookupTemplate(ctx context.Context, templateID string) (models.TemplateRef, error)
}

// GroupResolver returns the current member count of a recipient group.
// Unknown groups are reported with models.ErrNotFound.
type GroupResolver interface {
	MemberCount(ctx context.Context, group string) (int, error)
}

// ReminderSender accepts reminder notices. Dispatch must not block on delivery.
type ReminderSender interface {
	Dispatch(ctx context.Context, notice models.ReminderNotice)
}

// BulkObserver is told how many of the requested records a bulk operation changed.
type BulkObserver interface {
	ObserveBulk(operation string, requested, changed int)
}

// Bulk operation names reported to the BulkObserver.
const (
	OperationExtend = "extend"
	OperationCancel = "cancel"
	OperationRemind = "remind"
	OperationDelete = "delete"
)

// StoreOption configures a DeliveryStore.
type StoreOption func(*DeliveryStore)

// WithClock replaces the wall clock used for status derivation and timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *DeliveryStore) { s.now = now }
}

// WithReminderSender sets where reminder notices are dispatched.
func WithReminderSender(sender ReminderSender) StoreOption {
	return func(s *DeliveryStore) { s.reminders = sender }
}

// WithObserver registers a BulkObserver.
func WithObserver(observer BulkObserver) StoreOption {
	return func(s *DeliveryStore) { s.observer = observer }
}

// WithLogger sets the store's logger.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *DeliveryStore) { s.logger = logger }
}

// DeliveryStore owns the authoritative in-memory collection of deliveries.
//
// Every mutation holds the write lock for its whole duration, so declared
// status transitions on a record are never interleaved. Reads take the read
// lock and return snapshots whose effective status was derived at read time.
// Records never leave the store by reference.
type DeliveryStore struct {
	mu      sync.RWMutex
	records map[string]*models.Delivery
	order   []string

	templates TemplateLookup
	groups    GroupResolver
	reminders ReminderSender
	observer  BulkObserver
	now       func() time.Time
	logger    *zap.Logger
}

// NewDeliveryStore creates an empty DeliveryStore.
func NewDeliveryStore(templates TemplateLookup, groups GroupResolver, opts ...StoreOption) *DeliveryStore {
	s := &DeliveryStore{
		records:   make(map[string]*models.Delivery),
		templates: templates,
		groups:    groups,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDeliveryInput carries what a scheduling action provides.
type CreateDeliveryInput struct {
	TemplateID  string
	TargetGroup string
	WindowStart time.Time
	WindowEnd   time.Time
	// StartImmediately opens the window at creation time, ignoring WindowStart.
	StartImmediately bool
	// TotalRecipients is required for free-text groups the directory does
	// not know, and rejected for groups it does.
	TotalRecipients *int
	CreatedBy       string

	Recurring    bool
	Frequency    models.Frequency
	DynamicGroup bool
}

// DeliveryPatch holds the editable fields; nil fields are left unchanged.
type DeliveryPatch struct {
	TargetGroup     *string
	WindowStart     *time.Time
	WindowEnd       *time.Time
	TotalRecipients *int
}

// Create validates the input and stores a new scheduled delivery.
func (s *DeliveryStore) Create(ctx context.Context, input CreateDeliveryInput) (models.DeliverySnapshot, error) {
	if strings.TrimSpace(input.TargetGroup) == "" {
		return models.DeliverySnapshot{}, fmt.Errorf("%w: target group cannot be empty", models.ErrValidation)
	}

	ref, err := s.templates.LookupTemplate(ctx, input.TemplateID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.DeliverySnapshot{}, fmt.Errorf("%w: unknown template %q", models.ErrValidation, input.TemplateID)
		}
		return models.DeliverySnapshot{}, fmt.Errorf("failed to look up template %s: %w", input.TemplateID, err)
	}

	total, err := s.resolveRecipients(ctx, input.TargetGroup, input.TotalRecipients)
	if err != nil {
		return models.DeliverySnapshot{}, err
	}

	now := s.now()
	start := input.WindowStart
	if input.StartImmediately {
		start = now
	}

	d := &models.Delivery{
		ID:              uuid.NewString(),
		Template:        ref,
		TargetGroup:     strings.TrimSpace(input.TargetGroup),
		WindowStart:     start.UTC(),
		WindowEnd:       input.WindowEnd.UTC(),
		DeclaredStatus:  models.DeliveryStatusScheduled,
		TotalRecipients: total,
		CreatedBy:       input.CreatedBy,
		CreatedAt:       now,
		IsRecurring:     input.Recurring,
	}
	if input.Recurring {
		freq, ok := models.IsValidFrequency(string(input.Frequency))
		if !ok {
			return models.DeliverySnapshot{}, fmt.Errorf("%w: invalid frequency %q. Must be one of: %s, %s, %s, %s",
				models.ErrValidation, input.Frequency,
				models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyQuarterly)
		}
		d.Recurrence = &models.Recurrence{
			Frequency:    freq,
			DynamicGroup: input.DynamicGroup,
			History:      []models.InstanceSummary{},
		}
	}
	if err := d.Validate(); err != nil {
		return models.DeliverySnapshot{}, err
	}

	s.mu.Lock()
	s.records[d.ID] = d
	s.order = append(s.order, d.ID)
	snap := models.Snapshot(d, now)
	s.mu.Unlock()

	s.logger.Info("delivery created",
		zap.String("delivery_id", d.ID),
		zap.String("template_id", ref.ID),
		zap.String("target_group", d.TargetGroup),
		zap.Bool("recurring", d.IsRecurring))
	return snap, nil
}

// Get returns one delivery with its status derived now.
func (s *DeliveryStore) Get(ctx context.Context, id string) (models.DeliverySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.records[id]
	if !ok {
		return models.DeliverySnapshot{}, notFound(id)
	}
	return models.Snapshot(d, s.now()), nil
}

// Edit applies a patch and re-validates the merged record before committing it.
// Recipient totals follow the same rules as Create, applied to the merged
// target group.
func (s *DeliveryStore) Edit(ctx context.Context, id string, patch DeliveryPatch) (models.DeliverySnapshot, error) {
	s.mu.RLock()
	current, ok := s.records[id]
	var group string
	if ok {
		group = current.TargetGroup
	}
	s.mu.RUnlock()
	if !ok {
		return models.DeliverySnapshot{}, notFound(id)
	}
	if patch.TargetGroup != nil {
		group = *patch.TargetGroup
	}

	resolvedTotal := -1
	if patch.TargetGroup != nil || patch.TotalRecipients != nil {
		total, err := s.resolveRecipients(ctx, group, patch.TotalRecipients)
		if err != nil {
			return models.DeliverySnapshot{}, err
		}
		resolvedTotal = total
	}

	return s.mutate(id, func(d *models.Delivery, now time.Time) error {
		if models.IsTerminal(d.DeclaredStatus) {
			return fmt.Errorf("%w: delivery %s is %s and can no longer be edited", models.ErrInvalidTransition, d.ID, d.DeclaredStatus)
		}
		if patch.TargetGroup != nil {
			d.TargetGroup = strings.TrimSpace(*patch.TargetGroup)
		} else if d.TargetGroup != group {
			return fmt.Errorf("%w: target group of delivery %s changed during edit", models.ErrInvalidTransition, d.ID)
		}
		if patch.WindowStart != nil {
			d.WindowStart = patch.WindowStart.UTC()
		}
		if patch.WindowEnd != nil {
			d.WindowEnd = patch.WindowEnd.UTC()
		}
		if resolvedTotal >= 0 {
			d.TotalRecipients = resolvedTotal
		}
		return nil
	}, "delivery edited")
}

// ExtendDeadline pushes the window end of each eligible delivery forward by
// days. Completed and cancelled deliveries are skipped; expired ones are
// revived to in-progress. It returns how many deliveries changed.
func (s *DeliveryStore) ExtendDeadline(ctx context.Context, ids []string, days int) (int, error) {
	ids = UniqueIDs(ids)
	if days <= 0 {
		return 0, fmt.Errorf("%w: extension must be at least one day, got %d", models.ErrValidation, days)
	}

	s.mu.Lock()
	now := s.now()
	changed := 0
	for _, id := range ids {
		d, ok := s.records[id]
		if !ok {
			continue
		}
		status := models.EffectiveStatus(d, now)
		if status == models.DeliveryStatusCompleted || status == models.DeliveryStatusCancelled {
			continue
		}
		d.WindowEnd = d.WindowEnd.AddDate(0, 0, days)
		if status == models.DeliveryStatusExpired {
			d.DeclaredStatus = models.DeliveryStatusInProgress
		}
		changed++
	}
	s.mu.Unlock()

	s.observe(OperationExtend, len(ids), changed)
	s.logger.Info("deadline extended",
		zap.Int("requested", len(ids)),
		zap.Int("changed", changed),
		zap.Int("days", days))
	return changed, nil
}

// Cancel cancels every delivery that is currently scheduled or paused.
// Work already in progress or finished is left alone.
func (s *DeliveryStore) Cancel(ctx context.Context, ids []string) int {
	ids = UniqueIDs(ids)
	s.mu.Lock()
	now := s.now()
	changed := 0
	for _, id := range ids {
		d, ok := s.records[id]
		if !ok {
			continue
		}
		status := models.EffectiveStatus(d, now)
		if status != models.DeliveryStatusScheduled && status != models.DeliveryStatusPaused {
			continue
		}
		d.DeclaredStatus = models.DeliveryStatusCancelled
		if d.Recurrence != nil {
			d.Recurrence.PausedAt = nil
		}
		changed++
	}
	s.mu.Unlock()

	s.observe(OperationCancel, len(ids), changed)
	s.logger.Info("deliveries cancelled", zap.Int("requested", len(ids)), zap.Int("changed", changed))
	return changed
}

// Remind dispatches a reminder for every in-progress delivery that still has
// outstanding recipients. Anything else is skipped without error. Records are
// never modified.
func (s *DeliveryStore) Remind(ctx context.Context, ids []string) int {
	ids = UniqueIDs(ids)
	s.mu.RLock()
	now := s.now()
	var notices []models.ReminderNotice
	for _, id := range ids {
		d, ok := s.records[id]
		if !ok {
			continue
		}
		if models.EffectiveStatus(d, now) != models.DeliveryStatusInProgress || d.IncompleteCount() == 0 {
			continue
		}
		notices = append(notices, models.ReminderNotice{
			DeliveryID:    d.ID,
			TemplateTitle: d.Template.Title,
			TargetGroup:   d.TargetGroup,
			Outstanding:   d.IncompleteCount(),
			WindowEnd:     d.WindowEnd,
			RequestedAt:   now,
		})
	}
	s.mu.RUnlock()

	for _, n := range notices {
		if s.reminders != nil {
			s.reminders.Dispatch(ctx, n)
		}
	}

	s.observe(OperationRemind, len(ids), len(notices))
	s.logger.Info("reminders requested", zap.Int("requested", len(ids)), zap.Int("sent", len(notices)))
	return len(notices)
}

// Delete removes deliveries regardless of status.
func (s *DeliveryStore) Delete(ctx context.Context, ids []string) int {
	ids = UniqueIDs(ids)
	s.mu.Lock()
	removed := make(map[string]bool)
	for _, id := range ids {
		if _, ok := s.records[id]; !ok {
			continue
		}
		delete(s.records, id)
		removed[id] = true
	}
	if len(removed) > 0 {
		kept := s.order[:0]
		for _, id := range s.order {
			if !removed[id] {
				kept = append(kept, id)
			}
		}
		s.order = kept
	}
	s.mu.Unlock()

	s.observe(OperationDelete, len(ids), len(removed))
	s.logger.Info("deliveries deleted", zap.Int("requested", len(ids)), zap.Int("changed", len(removed)))
	return len(removed)
}

// Pause freezes a recurring delivery.
func (s *DeliveryStore) Pause(ctx context.Context, id string) (models.DeliverySnapshot, error) {
	return s.mutate(id, recurrence.Pause, "delivery paused")
}

// Resume unfreezes a paused delivery.
func (s *DeliveryStore) Resume(ctx context.Context, id string) (models.DeliverySnapshot, error) {
	return s.mutate(id, recurrence.Resume, "delivery resumed")
}

// CloseInstance records the current recurring instance and rolls the
// delivery to its next occurrence.
func (s *DeliveryStore) CloseInstance(ctx context.Context, id string) (models.DeliverySnapshot, error) {
	return s.mutate(id, func(d *models.Delivery, now time.Time) error {
		_, err := recurrence.CloseInstance(d, now)
		return err
	}, "recurring instance closed")
}

// SetDynamicGroup toggles dynamic membership on a recurring delivery.
func (s *DeliveryStore) SetDynamicGroup(ctx context.Context, id string, enabled bool) (models.DeliverySnapshot, error) {
	return s.mutate(id, func(d *models.Delivery, _ time.Time) error {
		return recurrence.SetDynamicGroup(d, enabled)
	}, "dynamic group updated")
}

// MarkComplete declares a delivery completed regardless of its counters.
func (s *DeliveryStore) MarkComplete(ctx context.Context, id string) (models.DeliverySnapshot, error) {
	return s.mutate(id, func(d *models.Delivery, _ time.Time) error {
		if models.IsTerminal(d.DeclaredStatus) {
			return fmt.Errorf("%w: delivery %s is already %s", models.ErrInvalidTransition, d.ID, d.DeclaredStatus)
		}
		d.DeclaredStatus = models.DeliveryStatusCompleted
		if d.Recurrence != nil {
			d.Recurrence.PausedAt = nil
		}
		return nil
	}, "delivery marked complete")
}

// RecordProgress sets the number of recipients who have completed.
func (s *DeliveryStore) RecordProgress(ctx context.Context, id string, completed int) (models.DeliverySnapshot, error) {
	return s.mutate(id, func(d *models.Delivery, _ time.Time) error {
		if d.DeclaredStatus == models.DeliveryStatusCancelled {
			return fmt.Errorf("%w: delivery %s is cancelled", models.ErrInvalidTransition, d.ID)
		}
		d.CompletedCount = completed
		return nil
	}, "delivery progress recorded")
}

// RefreshMembership re-reads the member count of a dynamic group and applies
// it to the delivery's current instance.
func (s *DeliveryStore) RefreshMembership(ctx context.Context, id string) (models.DeliverySnapshot, error) {
	s.mu.RLock()
	d, ok := s.records[id]
	var group string
	if ok {
		group = d.TargetGroup
	}
	s.mu.RUnlock()
	if !ok {
		return models.DeliverySnapshot{}, notFound(id)
	}

	count, err := s.groups.MemberCount(ctx, group)
	if err != nil {
		return models.DeliverySnapshot{}, fmt.Errorf("failed to resolve members of %q: %w", group, err)
	}

	return s.mutate(id, func(d *models.Delivery, _ time.Time) error {
		if !d.IsRecurring || d.Recurrence == nil || !d.Recurrence.DynamicGroup {
			return fmt.Errorf("%w: delivery %s does not use a dynamic group", models.ErrInvalidTransition, d.ID)
		}
		if d.TargetGroup != group {
			return fmt.Errorf("%w: target group of delivery %s changed during refresh", models.ErrInvalidTransition, d.ID)
		}
		d.TotalRecipients = count
		if d.CompletedCount > count {
			d.CompletedCount = count
		}
		return nil
	}, "membership refreshed")
}

// StatusCounts returns how many deliveries are in each effective status.
func (s *DeliveryStore) StatusCounts(ctx context.Context) map[models.DeliveryStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	counts := make(map[models.DeliveryStatus]int)
	for _, d := range s.records {
		counts[models.EffectiveStatus(d, now)]++
	}
	return counts
}

// mutate applies fn to a copy of the record and commits the copy only when
// fn succeeds and the result still satisfies the delivery invariants.
func (s *DeliveryStore) mutate(id string, fn func(d *models.Delivery, now time.Time) error, logMsg string) (models.DeliverySnapshot, error) {
	s.mu.Lock()
	current, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return models.DeliverySnapshot{}, notFound(id)
	}

	now := s.now()
	next := current.Clone()
	if err := fn(next, now); err != nil {
		s.mu.Unlock()
		return models.DeliverySnapshot{}, err
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return models.DeliverySnapshot{}, err
	}
	s.records[id] = next
	snap := models.Snapshot(next, now)
	s.mu.Unlock()

	s.logger.Info(logMsg,
		zap.String("delivery_id", id),
		zap.String("declared_status", string(next.DeclaredStatus)),
		zap.String("effective_status", string(snap.EffectiveStatus)))
	return snap, nil
}

// resolveRecipients asks the group directory first. A directory group owns
// its total, so an explicit count for it is rejected. Groups the directory
// does not know are free text and must come with an explicit count.
func (s *DeliveryStore) resolveRecipients(ctx context.Context, group string, explicit *int) (int, error) {
	if strings.TrimSpace(group) == "" {
		return 0, fmt.Errorf("%w: target group cannot be empty", models.ErrValidation)
	}
	count, err := s.groups.MemberCount(ctx, group)
	if err == nil {
		if explicit != nil {
			return 0, fmt.Errorf("%w: group %q takes its recipient total from the group directory", models.ErrValidation, group)
		}
		return count, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return 0, fmt.Errorf("failed to resolve members of %q: %w", group, err)
	}
	if explicit == nil {
		return 0, fmt.Errorf("%w: free-text group %q needs a recipient total", models.ErrValidation, group)
	}
	if *explicit < 0 {
		return 0, fmt.Errorf("%w: total recipients cannot be negative", models.ErrValidation)
	}
	return *explicit, nil
}

func (s *DeliveryStore) observe(op string, requested, changed int) {
	if s.observer != nil {
		s.observer.ObserveBulk(op, requested, changed)
	}
}

func notFound(id string) error {
	return fmt.Errorf("delivery %s: %w", id, models.ErrNotFound)
}

// UniqueIDs returns ids without repeats, keeping first-seen order. Bulk
// operations report their requested count against this set.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
