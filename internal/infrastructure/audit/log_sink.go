package audit

import (
	"context"

	"github.com/kunay1/seal/internal/domain/models"
	"github.com/kunay1/seal/internal/domain/service"
	"github.com/kunay1/seal/pkg/logger"
)

var _ service.AuditService = (*LogSink)(nil)

// LogSink writes audit events to the structured log. Used when Kafka is disabled.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink creates a new LogSink.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: log.WithComponent("audit")}
}

// LogEvent implements service.AuditService.
func (s *LogSink) LogEvent(ctx context.Context, event models.AuditEvent) error {
	s.logger.Info(ctx, "audit",
		logger.String("event_id", event.EventID.String()),
		logger.String("event_type", string(event.EventType)),
		logger.String("request_id", event.RequestID),
		logger.String("user", event.User),
		logger.String("policy_scope", event.PolicyScope),
		logger.Int("policy_ids", len(event.PolicyIDs)),
		logger.Bool("success", event.Success),
		logger.String("result_code", event.ResultCode),
	)
	return nil
}
