package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aescanero/scriptflow/pkg/domain"
	"github.com/aescanero/scriptflow/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the editor is served from another origin
	},
}

const writeWait = 10 * time.Second

// Message types sent to clients
const (
	MessageTypeSnapshot = "snapshot"
	MessageTypeEvent    = "event"
)

// Message is one frame sent to the client
type Message struct {
	Type  string           `json:"type"`
	Run   *domain.RunState `json:"run,omitempty"`
	Event *domain.Event    `json:"event,omitempty"`
}

// RunReader looks up run snapshots
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*domain.RunState, error)
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	runs     RunReader
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, runs RunReader, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		runs:     runs,
		logger:   logger,
	}
}

// HandleRunStream streams the progress of one run: a snapshot first, then
// every event of the run, then a final snapshot once the run has ended.
func (h *Handler) HandleRunStream(c *gin.Context) {
	runID := c.Param("id")

	if _, err := h.runs.GetRun(c.Request.Context(), runID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": gin.H{"code": "RUN_NOT_FOUND", "message": err.Error()},
		})
		return
	}

	// Upgrade connection
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("run_id", runID),
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The client never sends anything useful; reading detects a hang-up
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Subscribe before taking the snapshot so nothing falls in between
	sub := h.subscribe(ctx, runID)

	state, err := h.runs.GetRun(ctx, runID)
	if err != nil {
		h.logger.Error("failed to load run", zap.String("run_id", runID), zap.Error(err))
		return
	}
	if err := h.write(conn, Message{Type: MessageTypeSnapshot, Run: state}); err != nil {
		return
	}
	if state.Status.IsTerminal() {
		h.close(conn)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-sub.events:
			if err := h.write(conn, Message{Type: MessageTypeEvent, Event: &event}); err != nil {
				return
			}
		case <-sub.done:
			h.drain(conn, sub)
			if final, err := h.runs.GetRun(ctx, runID); err == nil {
				_ = h.write(conn, Message{Type: MessageTypeSnapshot, Run: final})
			}
			h.close(conn)
			return
		}
	}
}

// subscription buffers the events of one run for a single connection
type subscription struct {
	events chan domain.Event
	done   chan struct{}
	once   sync.Once
}

func (h *Handler) subscribe(ctx context.Context, runID string) *subscription {
	sub := &subscription{
		events: make(chan domain.Event, 64),
		done:   make(chan struct{}),
	}

	handler := func(_ context.Context, event domain.Event) error {
		if event.RunID != runID {
			return nil
		}

		// Send to channel (non-blocking)
		select {
		case sub.events <- event:
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("run_id", runID),
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}

		if event.IsTerminal() {
			sub.once.Do(func() { close(sub.done) })
		}
		return nil
	}

	for _, topic := range []string{domain.TopicRunEvents, domain.TopicStepEvents} {
		if err := h.eventBus.Subscribe(ctx, topic, handler); err != nil {
			h.logger.Error("failed to subscribe to events",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}

	return sub
}

// drain flushes events buffered before the run ended
func (h *Handler) drain(conn *websocket.Conn, sub *subscription) {
	for {
		select {
		case event := <-sub.events:
			if err := h.write(conn, Message{Type: MessageTypeEvent, Event: &event}); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("failed to write message", zap.Error(err))
		return err
	}
	return nil
}

func (h *Handler) close(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
		time.Now().Add(writeWait))
}
