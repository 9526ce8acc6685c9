package worker

import (
	"context"

	"github.com/spec-kit/ticket-assistant/internal/events"
)

// NotificationHandlers is implemented by *service.NotificationService.
type NotificationHandlers interface {
	Handlers() map[events.EventType]events.EventHandler
}

// StartNotificationWorker registers notification handlers so that they run on
// pool instead of the publisher's goroutine.
func StartNotificationWorker(dispatcher events.Dispatcher, pool *Pool, notifications NotificationHandlers) {
	if dispatcher == nil || pool == nil || notifications == nil {
		return
	}
	for eventType, handler := range notifications.Handlers() {
		eventType, handler := eventType, handler
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			return pool.Submit(Job{
				Name: "notify-" + string(eventType),
				Key:  event.ID,
				Run: func(ctx context.Context) error {
					return handler(ctx, event)
				},
			})
		})
	}
}
