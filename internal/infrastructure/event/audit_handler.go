package event

import (
	"context"
	"encoding/json"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/erp/stockcount/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditLogHandler writes every count event to the log as one structured entry
// carrying the JSON payload.
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates a handler logging to log under the "audit" name
func NewAuditLogHandler(log *zap.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: log.Named("audit")}
}

func (h *AuditLogHandler) EventTypes() []string {
	return stockcount.EventTypes()
}

// Handle logs the event. Encoding failures are returned to the dispatcher, which logs them.
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	logger.WithLogger(ctx, h.logger).Info("Domain event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.ByteString("payload", payload),
	)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
