package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *MockWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...)
}

type MockStore struct {
	mu        sync.Mutex
	events    []*Event
	processed []int64
	getErr    error
	markErr   error
}

func (s *MockStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []*Event
	for _, e := range s.events {
		done := false
		for _, id := range s.processed {
			if id == e.ID {
				done = true
			}
		}
		if !done && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MockStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.processed = append(s.processed, id)
	return nil
}

func testEvents() []*Event {
	return []*Event{
		{ID: 1, EventID: "e-1", AggregateID: "tok-1", EventType: EventOrderCompleted, Payload: []byte(`{"order_number":"1"}`)},
		{ID: 2, EventID: "e-2", AggregateID: "tok-2", EventType: EventOrderCompleted, Payload: []byte(`{"order_number":"2"}`)},
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	store := &MockStore{events: testEvents()}
	writer := &MockWriter{}
	p := NewOutboxPoller(store, writer, time.Second, zap.NewNop())

	n := p.processUnpublishedEvents(context.Background())
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, store.processed)

	msgs := writer.written()
	require.Len(t, msgs, 2)
	assert.Equal(t, "tok-1", string(msgs[0].Key))
	assert.Equal(t, `{"order_number":"1"}`, string(msgs[0].Value))
	assert.Equal(t, "event_type", msgs[0].Headers[0].Key)
	assert.Equal(t, EventOrderCompleted, string(msgs[0].Headers[0].Value))

	assert.Equal(t, 0, p.processUnpublishedEvents(context.Background()))
}

func TestProcessUnpublishedEvents_PublishFailureKeepsEvent(t *testing.T) {
	store := &MockStore{events: testEvents()}
	writer := &MockWriter{err: errors.New("broker down")}
	p := NewOutboxPoller(store, writer, time.Second, zap.NewNop())

	assert.Equal(t, 0, p.processUnpublishedEvents(context.Background()))
	assert.Empty(t, store.processed)

	writer.err = nil
	assert.Equal(t, 2, p.processUnpublishedEvents(context.Background()))
}

func TestProcessUnpublishedEvents_StoreFailure(t *testing.T) {
	store := &MockStore{getErr: errors.New("disk full")}
	writer := &MockWriter{}
	p := NewOutboxPoller(store, writer, time.Second, zap.NewNop())

	assert.Equal(t, 0, p.processUnpublishedEvents(context.Background()))
	assert.Empty(t, writer.written())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := &MockStore{events: testEvents()}
	writer := &MockWriter{}
	p := NewOutboxPoller(store, writer, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(writer.written()) == 2 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPoller_WithSQLiteStore(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()
	event, err := NewOrderCompleted(completedOrder(), time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Record(ctx, event))

	writer := &MockWriter{}
	p := NewOutboxPoller(repo, writer, time.Second, zap.NewNop())
	assert.Equal(t, 1, p.processUnpublishedEvents(ctx))

	pending, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	require.Len(t, writer.written(), 1)
	assert.Equal(t, "tok-1", string(writer.written()[0].Key))
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter("storefront-orders", "localhost:9092")
	defer w.Close()
	assert.Equal(t, "storefront-orders", w.Topic)
}
