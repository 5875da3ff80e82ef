package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const runFinished EventType = "run.finished"

func TestBroker_Subscribe(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)

	delivered := broker.Publish(runFinished, "hello")
	require.Equal(t, 1, delivered)

	select {
	case event := <-ch:
		require.Equal(t, "hello", event.Payload)
		require.Equal(t, runFinished, event.Type)
		require.False(t, event.Timestamp.IsZero())
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for event")
	}
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx := context.Background()

	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)
	ch3 := broker.Subscribe(ctx)

	require.Equal(t, 3, broker.SubscriberCount())
	require.Equal(t, 3, broker.Publish(EntryEvent, 42))

	for i, ch := range []<-chan Event[int]{ch1, ch2, ch3} {
		select {
		case event := <-ch:
			require.Equal(t, 42, event.Payload, "subscriber %d", i)
		case <-time.After(100 * time.Millisecond):
			require.Fail(t, "timeout waiting for event", "subscriber %d", i)
		}
	}
}

func TestBroker_ContextCancellation(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())

	ch := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()
	require.Eventually(t, func() bool {
		return broker.SubscriberCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}

func TestBroker_NonBlocking(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())

	require.Equal(t, 1, broker.Publish(EntryEvent, 1))

	done := make(chan int)
	go func() {
		done <- broker.Publish(EntryEvent, 2) + broker.Publish(EntryEvent, 3)
	}()

	select {
	case n := <-done:
		require.Zero(t, n, "full subscriber should drop events")
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "Publish blocked")
	}

	event := <-ch
	require.Equal(t, 1, event.Payload)
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()

	ctx := context.Background()
	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)

	broker.Close()
	broker.Close()

	_, ok1 := <-ch1
	_, ok2 := <-ch2
	require.False(t, ok1)
	require.False(t, ok2)
	require.Equal(t, 0, broker.SubscriberCount())

	ch3 := broker.Subscribe(ctx)
	_, ok3 := <-ch3
	require.False(t, ok3, "subscribe after close returns a closed channel")

	require.Zero(t, broker.Publish(EntryEvent, "late"))
}

func TestNext(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)

	broker.Publish(EntryEvent, "first")
	event, ok := Next(ctx, ch)
	require.True(t, ok)
	require.Equal(t, "first", event.Payload)

	cancel()
	_, ok = Next(ctx, ch)
	require.False(t, ok)
}
