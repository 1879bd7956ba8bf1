package notify

import (
	"context"
	"stats-backend/internal/config"
	"stats-backend/internal/domain"

	"github.com/rs/zerolog"
)

// Notifier delivers corruption reports to the operators of the network.
// Delivery failure is fatal to the operation that produced the report.
type Notifier interface {
	ReportCorruption(ctx context.Context, report domain.CorruptionReport) error
}

// New picks the webhook notifier when a webhook URL is configured and
// falls back to log-only delivery otherwise.
func New(cfg *config.Config, logger zerolog.Logger) Notifier {
	if cfg.AlertWebhookURL != "" {
		return NewWebhookNotifier(cfg, logger)
	}
	logger.Warn().Msg("no alert webhook configured, corruption reports will only be logged")
	return NewLogNotifier(logger)
}

// LogNotifier writes reports to the log. It never fails.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ReportCorruption(ctx context.Context, report domain.CorruptionReport) error {
	event := n.logger.Error().Str("title", report.Title)
	for name, value := range report.Fields {
		event = event.Str(name, value)
	}
	event.Msg(report.Description)
	return nil
}
