package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/maternidades/internal/adapters/events"
	"github.com/zatekoja/maternidades/internal/api/handlers"
	"github.com/zatekoja/maternidades/internal/domain/entities"
	"github.com/zatekoja/maternidades/internal/domain/providers"
)

func TestSSEHandler_StreamDatasetUpdates(t *testing.T) {
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	handler := handlers.NewSSEHandlerWithHeartbeat(bus, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/stream/dataset", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.StreamDatasetUpdates(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return handler.GetClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	event := entities.NewDatasetPublishedEvent(&entities.BuildReport{BuildID: "b1", Snapshot: "202512", DataVersion: "v2"}, "/data/geo.parquet")
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelDatasetUpdates, event))

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after cancel")
	}

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	body := w.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: dataset_published")
	assert.Contains(t, body, `"data_version":"v2"`)
	assert.Equal(t, 0, handler.GetClientCount())
}

func TestSSEHandler_ClosedBus(t *testing.T) {
	bus := events.NewMemoryEventBus()
	require.NoError(t, bus.Close())
	handler := handlers.NewSSEHandlerWithHeartbeat(bus, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	handler.StreamDatasetUpdates(w, httptest.NewRequest(http.MethodGet, "/api/stream/dataset", nil).WithContext(ctx))

	assert.Contains(t, w.Body.String(), "event: connected")
}
