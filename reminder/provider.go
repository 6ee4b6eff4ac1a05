// Package reminder fans reminder notices out to delivery channels without
// blocking the caller that requested them.
package reminder

import (
	"context"

	"github.com/coreybb/dispatch/models"
	"go.uber.org/zap"
)

// Provider is the adapter interface for reminder channels.
// Implement this to add new channels (email, chat, push, etc.).
type Provider interface {
	// Type names the channel this provider sends through (e.g. "log").
	Type() string
	// Send delivers one notice.
	Send(ctx context.Context, notice models.ReminderNotice) error
}

// LogProvider writes each notice to the structured log instead of sending it.
type LogProvider struct {
	logger *zap.Logger
}

func NewLogProvider(logger *zap.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Type() string { return "log" }

func (p *LogProvider) Send(ctx context.Context, n models.ReminderNotice) error {
	p.logger.Info("reminder",
		zap.String("delivery_id", n.DeliveryID),
		zap.String("template", n.TemplateTitle),
		zap.String("target_group", n.TargetGroup),
		zap.Int("outstanding", n.Outstanding),
		zap.Time("window_end", n.WindowEnd))
	return nil
}
