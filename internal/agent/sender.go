package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/swarmguard/swarmguard/internal/metrics"
	"github.com/swarmguard/swarmguard/internal/transport"
)

// AlertResponse is the engine's response body (spec.md §6).
type AlertResponse struct {
	Status string `json:"status"`
}

// AlertSender delivers alerts to the engine with spec.md §4.1's exact
// contract: one retry on transport failure, 100ms backoff, drop-and-log
// after the retry is exhausted.
type AlertSender struct {
	client   *transport.Client
	engineURL string
	logger   *zap.Logger
}

// NewAlertSender builds an AlertSender POSTing to engineURL + "/alert".
func NewAlertSender(client *transport.Client, engineURL string, logger *zap.Logger) *AlertSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertSender{client: client, engineURL: engineURL, logger: logger}
}

// Send delivers alert, retrying once after 100ms on transport failure. The
// engine is responsible for tolerating the resulting at-least-once
// duplicates (spec.md §1 Non-goals).
func (s *AlertSender) Send(ctx context.Context, alert Alert) {
	var resp AlertResponse
	err := s.client.PostJSON(ctx, s.engineURL+"/alert", alert, &resp)
	if err == nil {
		return
	}

	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return
	}

	if err := s.client.PostJSON(ctx, s.engineURL+"/alert", alert, &resp); err != nil {
		metrics.RecordAlertSendFailure(alert.Node)
		s.logger.Warn("dropping alert after retry",
			zap.String("container", alert.ContainerID),
			zap.String("scenario", string(alert.Scenario)),
			zap.Error(err),
		)
	}
}
