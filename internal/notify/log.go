package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/followwatch/internal/metrics"
	"github.com/JakeFAU/followwatch/internal/tracker"
)

// LogMailer writes messages to the log instead of delivering them.
// It is used when no email provider is configured.
type LogMailer struct {
	logger *zap.Logger
}

var _ tracker.Mailer = (*LogMailer)(nil)

// NewLogMailer builds a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger.Named("mailer")}
}

// Send implements tracker.Mailer.
func (m *LogMailer) Send(_ context.Context, msg tracker.Message) error {
	metrics.ObserveNotification("logged")
	m.logger.Info("email delivery disabled; logging notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text))
	return nil
}
