package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dealtracker/backend/internal/application/alert"
	"github.com/dealtracker/backend/internal/infrastructure/config"
)

// LogNotifier writes alerts to the log instead of sending them. It is the
// default until mail is configured.
type LogNotifier struct {
	logger *zap.Logger
}

var _ alert.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("alerts")}
}

func (n *LogNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.logger.Info(subject,
		zap.String("recipient", recipient),
		zap.String("body", body),
	)
	return nil
}

// New returns the notifier selected by alert.notifier.
func New(cfg *config.Config, logger *zap.Logger) (alert.Notifier, error) {
	switch cfg.Alert.Notifier {
	case "smtp":
		return NewSMTPNotifier(cfg.SMTP, logger)
	case "log", "":
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown alert notifier %q", cfg.Alert.Notifier)
	}
}
