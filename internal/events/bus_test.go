package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInPublishOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	ctx := context.Background()

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	require.True(t, bus.HasSubscribers())

	require.NoError(t, bus.Publish(ctx, Event{Kind: KindIndexingStarted, IndexingStarted: &IndexingStarted{Collection: "c", TotalFiles: 2}}))
	require.NoError(t, bus.Publish(ctx, Event{Kind: KindIndexingProgress, IndexingProgress: &IndexingProgress{Collection: "c", Processed: 1, Total: 2}}))
	require.NoError(t, bus.Publish(ctx, Event{Kind: KindIndexingCompleted, IndexingCompleted: &IndexingCompleted{Collection: "c", Chunks: 5}}))

	var kinds []Kind
	for i := 0; i < 3; i++ {
		select {
		case e := <-ch:
			kinds = append(kinds, e.Kind)
			assert.False(t, e.At.IsZero(), "publish stamps the event time")
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []Kind{KindIndexingStarted, KindIndexingProgress, KindIndexingCompleted}, kinds)
}

func TestBusNoSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	assert.False(t, bus.HasSubscribers())
	assert.NoError(t, bus.Publish(context.Background(), Event{Kind: KindCacheInvalidate}))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	assert.False(t, bus.HasSubscribers())

	_, open := <-ch
	assert.False(t, open, "unsubscribed channel is closed")
}

func TestPublishAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()
	assert.NoError(t, bus.Publish(context.Background(), Event{Kind: KindMetricsSnapshot}))
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	require.NoError(t, rec.Publish(ctx, Event{Kind: KindSearchExecuted, SearchExecuted: &SearchExecuted{Query: "q"}}))
	require.NoError(t, rec.Publish(ctx, Event{Kind: KindSessionStateChanged}))

	assert.Equal(t, []Kind{KindSearchExecuted, KindSessionStateChanged}, rec.Kinds())
	assert.Len(t, rec.Events(), 2)
	assert.True(t, rec.HasSubscribers())
}
