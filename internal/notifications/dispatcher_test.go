package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bakery-orders/internal/domain"
	"bakery-orders/internal/mocks"
	"bakery-orders/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestDispatcher_DeliversToEverySink(t *testing.T) {
	store := memory.NewStore()
	failing := new(mocks.MockSink)
	failing.On("Deliver", mock.Anything, mock.AnythingOfType("domain.Notification")).Return(errors.New("broker down"))

	d := NewDispatcher(Config{QueueSize: 4, Workers: 2, Clock: fixedClock}, nil, failing, StoreSink{Repo: store.Notifications()})
	d.Start()

	orderID := uint64(9)
	assert.True(t, d.Emit(context.Background(), domain.Notification{Type: domain.EventOrderCreated, Title: "New order", OrderID: &orderID}))
	d.Close()

	feed, err := store.Notifications().ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Len(t, feed[0].ID, 26)
	assert.Equal(t, fixedClock(), feed[0].CreatedAt)
	assert.Equal(t, domain.PriorityMedium, feed[0].Priority)
	failing.AssertNumberOfCalls(t, "Deliver", 1)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	sink := new(mocks.MockSink)
	sink.On("Deliver", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) { <-block })

	d := NewDispatcher(Config{QueueSize: 1, Workers: 1}, nil, sink)
	d.Start()

	accepted := 0
	for i := 0; i < 5; i++ {
		if d.Emit(context.Background(), domain.Notification{Type: "t"}) {
			accepted++
		}
		// let the worker pick up the first one
		if i == 0 {
			time.Sleep(20 * time.Millisecond)
		}
	}
	assert.Less(t, accepted, 5)
	assert.GreaterOrEqual(t, accepted, 1)

	close(block)
	d.Close()
	sink.AssertNumberOfCalls(t, "Deliver", accepted)
}

func TestDispatcher_EmitAfterCloseIsRejected(t *testing.T) {
	d := NewDispatcher(Config{}, nil)
	d.Start()
	d.Close()
	d.Close()
	assert.False(t, d.Emit(context.Background(), domain.Notification{Type: "t"}))
}

func TestDispatcher_CloseDrainsWithoutWorkers(t *testing.T) {
	store := memory.NewStore()
	d := NewDispatcher(Config{QueueSize: 8}, nil, StoreSink{Repo: store.Notifications()})
	for i := 0; i < 3; i++ {
		require.True(t, d.Emit(context.Background(), domain.Notification{Type: "t"}))
	}
	d.Close()

	feed, _ := store.Notifications().ListRecent(context.Background(), 10)
	assert.Len(t, feed, 3)
}

func TestDispatcher_QueuedBeforeStartIsDelivered(t *testing.T) {
	sink := new(mocks.MockSink)
	var mu sync.Mutex
	var got []string
	sink.On("Deliver", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		mu.Lock()
		got = append(got, args.Get(1).(domain.Notification).Type)
		mu.Unlock()
	})

	d := NewDispatcher(Config{Workers: 3}, nil, sink)
	d.Emit(context.Background(), domain.Notification{Type: "a"})
	d.Emit(context.Background(), domain.Notification{Type: "b"})
	d.Start()
	d.Start()
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, got)
}
