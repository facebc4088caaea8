package services

import (
	"context"
	"log/slog"

	"feeledger/internal/amqp"
)

// EventPublisher delivers ledger events after their transaction committed.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event amqp.LedgerEvent) error
}

// publish sends event on a best-effort basis. The ledger rows are already
// committed, so a failure is logged and never returned to the caller.
func publish(ctx context.Context, p EventPublisher, event amqp.LedgerEvent) {
	if p == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping ledger event", "event_type", event.Type)
		return
	}
	if err := p.PublishLedgerEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event_type", event.Type,
			"entity_id", event.EntityID,
			"organization_id", event.OrganizationID,
			"error", err)
	}
}
