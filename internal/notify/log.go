package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogGateway stands in when no delivery credentials are configured.
// It records what would have been sent and reports success.
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway creates a logging-only gateway.
func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) SendTicketEmail(ctx context.Context, params EmailParams) error {
	g.logger.Info("Would send ticket email",
		zap.String("to", params.To),
		zap.String("event", params.EventTitle),
		zap.Int("tickets", len(params.Tickets)))
	return nil
}

func (g *LogGateway) SendTicketSMS(ctx context.Context, params SMSParams) error {
	g.logger.Info("Would send ticket SMS",
		zap.String("to", params.To),
		zap.String("event", params.EventTitle))
	return nil
}
