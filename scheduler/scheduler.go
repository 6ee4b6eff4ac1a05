package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreybb/dispatch/datastore"
	"github.com/coreybb/dispatch/models"
	"github.com/coreybb/dispatch/recurrence"
	"go.uber.org/zap"
)

// DeliveryStore is the part of the delivery store the scheduler drives.
type DeliveryStore interface {
	List(ctx context.Context, filter datastore.DeliveryFilter, order datastore.DeliverySort) []models.DeliverySnapshot
	CloseInstance(ctx context.Context, id string) (models.DeliverySnapshot, error)
	RefreshMembership(ctx context.Context, id string) (models.DeliverySnapshot, error)
}

// Scheduler rolls recurring deliveries over to their next instance once the
// current window has passed, and keeps dynamic group totals current.
type Scheduler struct {
	store  DeliveryStore
	logger *zap.Logger
}

// New creates a new Scheduler.
func New(store DeliveryStore, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{store: store, logger: logger.Named("scheduler")}
}

// HandleTick is an HTTP handler that triggers a scheduler tick.
// Used by external cron jobs or manual curl requests.
func (s *Scheduler) HandleTick(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("tick triggered via HTTP")

	processed, err := s.Tick(r.Context())
	if err != nil {
		s.logger.Error("tick failed", zap.Error(err))
		http.Error(w, "scheduler tick failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK: processed %d instances", processed)
}

// Run ticks every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("tick failed", zap.Error(err))
			}
		}
	}
}

// Tick runs a single scheduler cycle over every recurring delivery.
// Each due delivery is rolled over by one instance per tick. Returns the
// number of instances closed.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	recurring := true
	deliveries := s.store.List(ctx, datastore.DeliveryFilter{Recurring: &recurring}, datastore.DeliverySort{})

	processed := 0
	for i := range deliveries {
		if s.processDelivery(ctx, &deliveries[i]) {
			processed++
		}
	}

	if processed > 0 {
		s.logger.Info("tick complete", zap.Int("closed", processed), zap.Int("recurring", len(deliveries)))
	}
	return processed, nil
}

// processDelivery returns true when an instance was closed.
func (s *Scheduler) processDelivery(ctx context.Context, snap *models.DeliverySnapshot) bool {
	log := s.logger.With(zap.String("delivery_id", snap.ID))

	closed := false
	if recurrence.IsDue(&snap.Delivery, snap.EvaluatedAt) {
		next, err := s.store.CloseInstance(ctx, snap.ID)
		if err != nil {
			log.Warn("failed to close instance", zap.Error(err))
			return false
		}
		closed = true
		log.Info("instance closed",
			zap.Time("next_window_start", next.WindowStart),
			zap.Time("next_window_end", next.WindowEnd))
	}

	active := !models.IsTerminal(snap.DeclaredStatus) && snap.DeclaredStatus != models.DeliveryStatusPaused
	if snap.Recurrence != nil && snap.Recurrence.DynamicGroup && (closed || active) {
		if _, err := s.store.RefreshMembership(ctx, snap.ID); err != nil {
			log.Warn("failed to refresh group membership", zap.String("target_group", snap.TargetGroup), zap.Error(err))
		}
	}
	return closed
}
