package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-assistant/internal/cache"
	"github.com/spec-kit/ticket-assistant/internal/config"
	"github.com/spec-kit/ticket-assistant/internal/events"
	"github.com/spec-kit/ticket-assistant/internal/service"
)

type recordingProcessor struct {
	mu    sync.Mutex
	seen  []string
	calls map[string]int
	err   error
}

func (p *recordingProcessor) Process(_ context.Context, ticketID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[ticketID]++
	p.seen = append(p.seen, ticketID)
	return p.err
}

func TestTicketAnalysisWorkerProcessesCreatedTickets(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	pool := NewPool("analysis", testPoolConfig(), zap.NewNop(), WithPermanentErrors(IsPermanent))
	processor := &recordingProcessor{}
	StartTicketAnalysisWorker(dispatcher, pool, processor, zap.NewNop())
	pool.Start(context.Background())

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated, TicketID: "t1"}))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketAssigned, TicketID: "t2"}))
	require.NoError(t, pool.Stop(context.Background()))

	assert.Equal(t, []string{"t1"}, processor.seen)
}

func TestTicketAnalysisWorkerSkipsVanishedTickets(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	pool := NewPool("analysis", testPoolConfig(), zap.NewNop(), WithPermanentErrors(IsPermanent))
	processor := &recordingProcessor{err: fmt.Errorf("%w: t9", service.ErrTicketGone)}
	StartTicketAnalysisWorker(dispatcher, pool, processor, zap.NewNop())
	pool.Start(context.Background())

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated, TicketID: "t9"}))
	require.NoError(t, pool.Stop(context.Background()))

	assert.Equal(t, 1, processor.calls["t9"])
}

type staticHandlers map[events.EventType]events.EventHandler

func (h staticHandlers) Handlers() map[events.EventType]events.EventHandler { return h }

func TestNotificationWorkerRunsHandlersOnPool(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	pool := NewPool("notifications", testPoolConfig(), zap.NewNop())

	var mu sync.Mutex
	var got []events.Event
	StartNotificationWorker(dispatcher, pool, staticHandlers{
		events.EventUserSignup: func(_ context.Context, e events.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, e)
			return nil
		},
	})

	// nothing runs until the pool starts
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventUserSignup}))
	mu.Lock()
	assert.Empty(t, got)
	mu.Unlock()

	pool.Start(context.Background())
	require.NoError(t, pool.Stop(context.Background()))
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
}

type countingWarmer struct {
	mu    sync.Mutex
	calls int
}

func (w *countingWarmer) WarmRoster(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return nil
}

func TestSchedulerRegistersJobs(t *testing.T) {
	cfg := config.CacheConfig{ProbeSchedule: "@every 1h", RosterWarmSchedule: "*/5 * * * *"}
	client := cache.NewClient(nil, zap.NewNop())
	s, err := NewScheduler(context.Background(), cfg, client, &countingWarmer{}, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s.Start()
	s.Stop()

	s, err = NewScheduler(context.Background(), config.CacheConfig{}, client, &countingWarmer{}, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, s.cron.Entries())

	_, err = NewScheduler(context.Background(), config.CacheConfig{RosterWarmSchedule: "every now and then"}, nil, &countingWarmer{}, zap.NewNop())
	assert.Error(t, err)
}

func TestSchedulerWarmsRoster(t *testing.T) {
	warmer := &countingWarmer{}
	s, err := NewScheduler(context.Background(), config.CacheConfig{RosterWarmSchedule: "@every 1s"}, nil, warmer, zap.NewNop())
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		warmer.mu.Lock()
		defer warmer.mu.Unlock()
		return warmer.calls > 0
	}, 3*time.Second, 50*time.Millisecond)
}
