package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	audit "checkin/pkg/platform/audit"
	"checkin/pkg/platform/audit/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subject := "T-0001"
	event := audit.Event{
		Subject: subject,
		Action:  string(audit.EventBindingCreated),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventBindingCreated), events[0].Action)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	subject := "T-0001"
	event := audit.Event{
		Subject: subject,
		Action:  string(audit.EventOperationQueued),
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	// Wait for async processing
	time.Sleep(100 * time.Millisecond)

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventOperationQueued), events[0].Action)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	subject := "T-0001"

	// Emit multiple events
	for range 10 {
		event := audit.Event{
			Subject: subject,
			Action:  string(audit.EventBindingCreated),
		}
		err := pub.Emit(context.Background(), event)
		require.NoError(t, err)
	}

	// Close should drain all events
	pub.Close()

	events, err := store.ListBySubject(context.Background(), subject)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	subject := "T-0001"

	// Fill the buffer with concurrent writes
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event := audit.Event{
				Subject: subject,
				Action:  string(audit.EventBindingCreated),
			}
			_ = pub.Emit(context.Background(), event)
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		return pub.Emit(context.Background(), audit.Event{Subject: subject, Action: string(audit.EventBindingCreated)}) == nil
	}, time.Second, 10*time.Millisecond, "publisher accepts again once the buffer drains")
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subject := "T-0001"
	event := audit.Event{
		Subject: subject,
		Action:  string(audit.EventBindingCreated),
		// Timestamp not set
	}

	before := time.Now()
	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)
	after := time.Now()

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.True(t, !events[0].Timestamp.Before(before), "timestamp should be >= before")
	assert.True(t, !events[0].Timestamp.After(after), "timestamp should be <= after")
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subject := "T-0001"
	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	event := audit.Event{
		Subject:   subject,
		Action:    string(audit.EventBindingCreated),
		Timestamp: customTime,
	}

	err := pub.Emit(context.Background(), event)
	require.NoError(t, err)

	events, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_ContextCancellation(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	// Fill buffer first
	_ = pub.Emit(context.Background(), audit.Event{
		Subject: "T-0009",
		Action:  string(audit.EventBindingCreated),
	})

	// Wait for the event to be processed
	time.Sleep(50 * time.Millisecond)

	// Fill buffer again
	_ = pub.Emit(context.Background(), audit.Event{
		Subject: "T-0009",
		Action:  string(audit.EventBindingCreated),
	})

	// Try to emit with cancelled context when buffer is full
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.Emit(ctx, audit.Event{
		Subject: "T-0009",
		Action:  string(audit.EventBindingCreated),
	})

	if err != nil {
		assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, ErrBufferFull),
			"expected context.Canceled or buffer full error, got: %v", err)
	}
}

func TestPublisher_MultipleEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subject := "T-0001"

	events := []audit.Event{
		{Subject: subject, Action: string(audit.EventBindingCreated)},
		{Subject: subject, Action: string(audit.EventOperationReplayed)},
		{Subject: subject, Action: string(audit.EventBindingReset)},
	}

	for _, event := range events {
		err := pub.Emit(context.Background(), event)
		require.NoError(t, err)
	}

	result, err := pub.List(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, string(audit.EventBindingCreated), result[0].Action)
	assert.Equal(t, string(audit.EventOperationReplayed), result[1].Action)
	assert.Equal(t, string(audit.EventBindingReset), result[2].Action)
}

func TestPublisher_DifferentTokens(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	subject1 := "T-0001"
	subject2 := "T-0002"

	err := pub.Emit(context.Background(), audit.Event{
		Subject: subject1,
		Action:  string(audit.EventBindingCreated),
	})
	require.NoError(t, err)

	err = pub.Emit(context.Background(), audit.Event{
		Subject: subject2,
		Action:  string(audit.EventOperationQueued),
	})
	require.NoError(t, err)

	events1, err := pub.List(context.Background(), subject1)
	require.NoError(t, err)
	require.Len(t, events1, 1)
	assert.Equal(t, string(audit.EventBindingCreated), events1[0].Action)

	events2, err := pub.List(context.Background(), subject2)
	require.NoError(t, err)
	require.Len(t, events2, 1)
	assert.Equal(t, string(audit.EventOperationQueued), events2[0].Action)
}
