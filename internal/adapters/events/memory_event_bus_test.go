package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
)

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, providers.EventChannelDatasetUpdates)
	require.NoError(t, err)

	event := entities.NewDatasetPublishedEvent(&entities.BuildReport{BuildID: "b1", Snapshot: "202512"}, "/data/hospitals_geo.min.parquet")
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelDatasetUpdates, event))
	require.NoError(t, bus.Publish(context.Background(), "other", event))

	select {
	case got := <-ch:
		assert.Equal(t, "b1", got.BuildID)
		assert.Equal(t, "202512", got.SnapshotTag)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	require.NoError(t, bus.Close())
}

func TestMemoryEventBus_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "c")
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, ok := <-ch
	assert.False(t, ok)

	late, err := bus.Subscribe(ctx, "c")
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok)
	cancel()
}
