package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/coreybb/dispatch/models"
	"go.uber.org/zap"
)

const sendTimeout = 10 * time.Second

// Dispatcher sends notices on background goroutines. A notice for a
// delivery already reminded within the cooldown is dropped.
type Dispatcher struct {
	providers []Provider
	ledger    Ledger
	cooldown  time.Duration
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(ledger Ledger, cooldown time.Duration, logger *zap.Logger, providers ...Provider) *Dispatcher {
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		providers: providers,
		ledger:    ledger,
		cooldown:  cooldown,
		logger:    logger,
	}
}

// Dispatch returns immediately. The send outlives ctx's cancellation so a
// finished HTTP request does not abort reminders it triggered.
func (d *Dispatcher) Dispatch(ctx context.Context, notice models.ReminderNotice) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.send(context.WithoutCancel(ctx), notice)
	}()
}

// Wait blocks until every dispatched notice has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, notice models.ReminderNotice) {
	log := d.logger.With(zap.String("delivery_id", notice.DeliveryID))

	if d.cooldown > 0 {
		claimed, err := d.ledger.Claim(ctx, notice.DeliveryID, d.cooldown)
		if err != nil {
			// Ledger outage: send anyway.
			log.Warn("reminder ledger unavailable", zap.Error(err))
		} else if !claimed {
			log.Debug("reminder skipped, still in cooldown", zap.Duration("cooldown", d.cooldown))
			return
		}
	}

	for _, p := range d.providers {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := p.Send(sendCtx, notice)
		cancel()
		if err != nil {
			log.Error("reminder send failed", zap.String("provider", p.Type()), zap.Error(err))
			continue
		}
		log.Debug("reminder sent", zap.String("provider", p.Type()))
	}
}
