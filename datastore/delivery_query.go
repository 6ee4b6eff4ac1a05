package datastore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/coreybb/dispatch/models"
	"go.uber.org/zap"
)

// DeliveryFilter narrows a listing. Zero values match everything.
type DeliveryFilter struct {
	// Title is a case-insensitive substring of the template title.
	Title string
	// TargetGroup is a case-insensitive substring of the target group.
	TargetGroup string
	// Status matches the effective status, not the declared one.
	Status    models.DeliveryStatus
	Kind      models.DeliveryKind
	Recurring *bool
}

// SortKey names a listing order.
type SortKey string

const (
	SortByStartDate   SortKey = "start_date"
	SortByEndDate     SortKey = "end_date"
	SortByCreatedDate SortKey = "created_date"
	SortByTitle       SortKey = "title"
	SortByProgress    SortKey = "progress"
)

// ParseSortKey validates a sort key. An empty key keeps insertion order.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "", SortByStartDate, SortByEndDate, SortByCreatedDate, SortByTitle, SortByProgress:
		return k, nil
	default:
		return "", fmt.Errorf("%w: invalid sort key %q. Must be one of: %s, %s, %s, %s, %s",
			models.ErrValidation, s, SortByStartDate, SortByEndDate, SortByCreatedDate, SortByTitle, SortByProgress)
	}
}

// DeliverySort orders a listing. Ties keep insertion order.
type DeliverySort struct {
	Key        SortKey
	Descending bool
}

// List returns snapshots of every delivery matching filter, in the requested
// order. All snapshots share one evaluation instant.
func (s *DeliveryStore) List(ctx context.Context, filter DeliveryFilter, order DeliverySort) []models.DeliverySnapshot {
	s.mu.RLock()
	now := s.now()
	list := make([]models.DeliverySnapshot, 0, len(s.order))
	for _, id := range s.order {
		snap := models.Snapshot(s.records[id], now)
		if filter.matches(snap) {
			list = append(list, snap)
		}
	}
	s.mu.RUnlock()

	if less := order.less(); less != nil {
		sort.SliceStable(list, func(i, j int) bool {
			if order.Descending {
				return less(list[j], list[i])
			}
			return less(list[i], list[j])
		})
	}

	s.logger.Debug("deliveries listed", zap.Int("count", len(list)), zap.String("sort", string(order.Key)))
	return list
}

func (f DeliveryFilter) matches(snap models.DeliverySnapshot) bool {
	if f.Title != "" && !containsFold(snap.Template.Title, f.Title) {
		return false
	}
	if f.TargetGroup != "" && !containsFold(snap.TargetGroup, f.TargetGroup) {
		return false
	}
	if f.Status != "" && snap.EffectiveStatus != f.Status {
		return false
	}
	if f.Kind != "" && snap.Template.Kind != f.Kind {
		return false
	}
	if f.Recurring != nil && snap.IsRecurring != *f.Recurring {
		return false
	}
	return true
}

func (o DeliverySort) less() func(a, b models.DeliverySnapshot) bool {
	switch o.Key {
	case SortByStartDate:
		return func(a, b models.DeliverySnapshot) bool { return a.WindowStart.Before(b.WindowStart) }
	case SortByEndDate:
		return func(a, b models.DeliverySnapshot) bool { return a.WindowEnd.Before(b.WindowEnd) }
	case SortByCreatedDate:
		return func(a, b models.DeliverySnapshot) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortByTitle:
		return func(a, b models.DeliverySnapshot) bool {
			return strings.ToLower(a.Template.Title) < strings.ToLower(b.Template.Title)
		}
	case SortByProgress:
		return func(a, b models.DeliverySnapshot) bool {
			return models.ProgressRatio(&a.Delivery) < models.ProgressRatio(&b.Delivery)
		}
	default:
		return nil
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
