package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/events"
	"github.com/spec-kit/ticket-assistant/internal/service"
)

// TicketProcessor triages a single ticket.
type TicketProcessor interface {
	Process(ctx context.Context, ticketID string) error
}

// IsPermanent reports whether a triage error cannot be fixed by retrying.
func IsPermanent(err error) bool {
	return errors.Is(err, service.ErrTicketGone)
}

// StartTicketAnalysisWorker queues the triage of every created ticket on pool.
func StartTicketAnalysisWorker(dispatcher events.Dispatcher, pool *Pool, processor TicketProcessor, logger *zap.Logger) {
	if dispatcher == nil || pool == nil || processor == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, event events.Event) error {
		ticketID := event.TicketID
		err := pool.Submit(Job{
			Name: "ticket-analysis",
			Key:  ticketID,
			Run: func(ctx context.Context) error {
				return processor.Process(ctx, ticketID)
			},
		})
		if err != nil {
			logger.Error("ticket analysis not queued", zap.String("ticket_id", ticketID), zap.Error(err))
		}
		return err
	})
}
