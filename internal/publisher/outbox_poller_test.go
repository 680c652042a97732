package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockStore struct {
	mu        sync.Mutex
	events    []*domain.OutboxEvent
	getErr    error
	markErr   error
	processed []int64
}

func (m *mockStore) GetUnprocessedEvents(context.Context, int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var pending []*domain.OutboxEvent
	for _, e := range m.events {
		if e.ProcessedAt == nil {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (m *mockStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	now := time.Now()
	for _, e := range m.events {
		if e.ID == id {
			e.ProcessedAt = &now
		}
	}
	m.processed = append(m.processed, id)
	return nil
}

type mockWriter struct {
	mu       sync.Mutex
	messages []kafkaGo.Message
	err      error
	failID   string // event_id header that fails while set
	calls    int
	closed   bool
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.err != nil {
		return w.err
	}
	for _, m := range msgs {
		if w.failID != "" && eventIDHeader(m) == w.failID {
			return errors.New("message too large")
		}
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *mockWriter) Close() error {
	w.closed = true
	return nil
}

func eventIDHeader(m kafkaGo.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_id" {
			return string(h.Value)
		}
	}
	return ""
}

func newEvent(id int64, orderID string) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:          id,
		AggregateID: orderID,
		EventType:   domain.EventTypeOrderPlaced,
		Payload:     json.RawMessage(`{"order_id":"` + orderID + `"}`),
		CreatedAt:   time.Now(),
	}
}

func newTestPoller(store EventStore, w MessageWriter) *OutboxPoller {
	return NewOutboxPoller(store, w, metrics.New(prometheus.NewRegistry()), zap.NewNop())
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	store := &mockStore{events: []*domain.OutboxEvent{newEvent(1, "order-1"), newEvent(2, "order-2")}}
	writer := &mockWriter{}

	newTestPoller(store, writer).processUnpublishedEvents(context.Background())

	require.Len(t, writer.messages, 2)
	assert.Equal(t, "order-1", string(writer.messages[0].Key))
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(writer.messages[0].Value))
	assert.Equal(t, "event_type", writer.messages[0].Headers[0].Key)
	assert.Equal(t, domain.EventTypeOrderPlaced, string(writer.messages[0].Headers[0].Value))
	assert.Equal(t, "1", string(writer.messages[0].Headers[1].Value))
	assert.Equal(t, []int64{1, 2}, store.processed)
}

func TestProcessUnpublishedEvents_WriteFailureLeavesEventPending(t *testing.T) {
	store := &mockStore{events: []*domain.OutboxEvent{newEvent(1, "order-1")}}
	writer := &mockWriter{err: errors.New("leader not available")}
	p := newTestPoller(store, writer)

	p.processUnpublishedEvents(context.Background())
	assert.Empty(t, store.processed)

	// the next tick retries
	writer.err = nil
	p.processUnpublishedEvents(context.Background())
	assert.Equal(t, []int64{1}, store.processed)
	assert.Len(t, writer.messages, 1)
}

func TestProcessUnpublishedEvents_FailureStopsBatchInOrder(t *testing.T) {
	store := &mockStore{events: []*domain.OutboxEvent{
		newEvent(1, "order-1"), newEvent(2, "order-2"), newEvent(3, "order-3"),
	}}
	writer := &mockWriter{failID: "2"}
	p := newTestPoller(store, writer)

	p.processUnpublishedEvents(context.Background())

	// event 3 must not overtake the failed event 2
	assert.Equal(t, 2, writer.calls)
	require.Len(t, writer.messages, 1)
	assert.Equal(t, []int64{1}, store.processed)

	writer.failID = ""
	p.processUnpublishedEvents(context.Background())

	assert.Equal(t, []int64{1, 2, 3}, store.processed)
	require.Len(t, writer.messages, 3)
	for i, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, eventIDHeader(writer.messages[i]))
	}
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	store := &mockStore{getErr: errors.New("database connection error")}
	writer := &mockWriter{}

	newTestPoller(store, writer).processUnpublishedEvents(context.Background())

	assert.Equal(t, 0, writer.calls)
}

func TestProcessUnpublishedEvents_MarkErrorStopsBatch(t *testing.T) {
	store := &mockStore{
		events:  []*domain.OutboxEvent{newEvent(1, "order-1"), newEvent(2, "order-2")},
		markErr: errors.New("deadlock"),
	}
	writer := &mockWriter{}

	newTestPoller(store, writer).processUnpublishedEvents(context.Background())

	// event 1 is redelivered next tick; event 2 waits behind it
	assert.Len(t, writer.messages, 1)
	assert.Empty(t, store.processed)
}

func TestProcessUnpublishedEvents_BreakerOpensAfterFailures(t *testing.T) {
	var events []*domain.OutboxEvent
	for i := range 8 {
		events = append(events, newEvent(int64(i+1), "order"))
	}
	store := &mockStore{events: events}
	writer := &mockWriter{err: errors.New("broker down")}

	p := newTestPoller(store, writer)

	// each tick stops at its first failure; five ticks trip the breaker
	for range 5 {
		p.processUnpublishedEvents(context.Background())
	}
	assert.Equal(t, 5, writer.calls)

	// open breaker: the writer is not called at all
	p.processUnpublishedEvents(context.Background())
	assert.Equal(t, 5, writer.calls)
	assert.Empty(t, store.processed)
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := &mockStore{events: []*domain.OutboxEvent{newEvent(1, "order-1")}}
	writer := &mockWriter{}
	p := newTestPoller(store, writer)
	p.eventTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.processed) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestPoller_DrainsSQLiteOutbox(t *testing.T) {
	creds := &repository.Credentials{
		Driver:            repository.DriverSQLite,
		SQLitePath:        ":memory:",
		MigrationsDirPath: "../repository/migrations",
	}
	repo, err := repository.NewRepository(creds)
	require.NoError(t, err)
	defer repo.Close()
	require.NoError(t, repo.RunMigrations(creds))

	ctx := context.Background()
	require.NoError(t, repo.InsertOutboxEvent(ctx, newEvent(0, "order-42")))

	writer := &mockWriter{}
	newTestPoller(repo, writer).processUnpublishedEvents(ctx)

	require.Len(t, writer.messages, 1)
	assert.Equal(t, "order-42", string(writer.messages[0].Key))

	pending, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
