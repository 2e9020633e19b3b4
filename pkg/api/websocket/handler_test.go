package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/scriptflow/pkg/adapters/events/memory"
	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRuns struct {
	mu   sync.Mutex
	runs map[string]*domain.RunState
}

func (f *fakeRuns) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.runs[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRuns) setStatus(runID string, status domain.RunStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[runID].Status = status
}

func setupStream(t *testing.T, runs *fakeRuns) (*memory.InMemoryEventBus, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := memory.NewInMemoryEventBus()
	h := NewHandler(bus, runs, zap.NewNop())

	router := gin.New()
	router.GET("/api/v1/runs/:id/ws", h.HandleRunStream)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return bus, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHandleRunStream_SnapshotThenEvents(t *testing.T) {
	runs := &fakeRuns{runs: map[string]*domain.RunState{
		"run-1": {RunID: "run-1", Status: domain.RunStatusRunning},
	}}
	bus, baseURL := setupStream(t, runs)

	conn, _, err := websocket.DefaultDialer.Dial(baseURL+"/api/v1/runs/run-1/ws", nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	first := readMessage(t, conn)
	assert.Equal(t, MessageTypeSnapshot, first.Type)
	require.NotNil(t, first.Run)
	assert.Equal(t, domain.RunStatusRunning, first.Run.Status)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, domain.TopicStepEvents, domain.Event{
		ID: "e1", Type: domain.EventTypeStepCompleted, RunID: "run-1", NodeID: "0",
	}))
	require.NoError(t, bus.Publish(ctx, domain.TopicStepEvents, domain.Event{
		ID: "other", Type: domain.EventTypeStepCompleted, RunID: "run-2",
	}))
	runs.setStatus("run-1", domain.RunStatusCompleted)
	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, domain.Event{
		ID: "e2", Type: domain.EventTypeRunCompleted, RunID: "run-1",
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeEvent, msg.Type)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "e1", msg.Event.ID)

	msg = readMessage(t, conn)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "e2", msg.Event.ID)

	msg = readMessage(t, conn)
	assert.Equal(t, MessageTypeSnapshot, msg.Type)
	assert.Equal(t, domain.RunStatusCompleted, msg.Run.Status)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestHandleRunStream_FinishedRunClosesAfterSnapshot(t *testing.T) {
	runs := &fakeRuns{runs: map[string]*domain.RunState{
		"done": {RunID: "done", Status: domain.RunStatusAborted, Error: "transport error"},
	}}
	_, baseURL := setupStream(t, runs)

	conn, _, err := websocket.DefaultDialer.Dial(baseURL+"/api/v1/runs/done/ws", nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	msg := readMessage(t, conn)
	assert.Equal(t, domain.RunStatusAborted, msg.Run.Status)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestHandleRunStream_UnknownRun(t *testing.T) {
	_, baseURL := setupStream(t, &fakeRuns{runs: map[string]*domain.RunState{}})

	_, resp, err := websocket.DefaultDialer.Dial(baseURL+"/api/v1/runs/missing/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
