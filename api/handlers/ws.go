package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/councilflow/councilflow/api"
	"github.com/councilflow/councilflow/council"
	"github.com/councilflow/councilflow/llm"
	"github.com/councilflow/councilflow/storage"
)

// wsFrame is one message sent to a websocket client. Progress frames carry a
// pipeline event; the final frame carries either the full result or an error.
type wsFrame struct {
	Type   string                   `json:"type"` // "event", "result", "error"
	Event  *council.Event           `json:"event,omitempty"`
	Result *api.SendMessageResponse `json:"result,omitempty"`
	Error  *ErrorInfo               `json:"error,omitempty"`
}

// WSHandler streams deliberation progress over a websocket. The client sends
// one SendMessageRequest and receives ordered pipeline events followed by a
// terminal result or error frame.
type WSHandler struct {
	store    storage.Store
	pipeline Deliberator
	logger   *zap.Logger
}

// NewWSHandler creates the handler.
func NewWSHandler(store storage.Store, pipeline Deliberator, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		store:    store,
		pipeline: pipeline,
		logger:   logger.With(zap.String("component", "ws_handler")),
	}
}

// HandleDeliberate serves GET /api/conversations/{id}/ws.
func (h *WSHandler) HandleDeliberate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctx := r.Context()

	conv, err := h.store.Get(ctx, id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	var req api.SendMessageRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		h.logger.Warn("websocket read failed", zap.Error(err))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		wsjson.Write(ctx, conn, wsFrame{
			Type:  "error",
			Error: &ErrorInfo{Code: "INVALID_REQUEST", Message: "content must not be empty"},
		})
		conn.Close(websocket.StatusUnsupportedData, "empty content")
		return
	}

	history := historyMessages(conv)
	history = append(history, llm.Message{Role: llm.RoleUser, Content: req.Content})

	// Websocket writes are not concurrency-safe; the sink serializes them.
	var mu sync.Mutex
	sink := council.EventSinkFunc(func(e council.Event) {
		mu.Lock()
		defer mu.Unlock()
		ev := e
		if err := wsjson.Write(ctx, conn, wsFrame{Type: "event", Event: &ev}); err != nil {
			h.logger.Debug("websocket event write failed", zap.Error(err))
		}
	})

	start := time.Now()
	result, err := h.pipeline.Deliberate(ctx, history, sink)
	if err != nil {
		_, info := classify(err)
		mu.Lock()
		wsjson.Write(ctx, conn, wsFrame{Type: "error", Error: info})
		mu.Unlock()
		conn.Close(websocket.StatusInternalError, "deliberation failed")
		return
	}

	declared := h.pipeline.Members()
	userMsg, assistantMsg := api.StorageMessages(req.Content, declared, result)
	if err := h.store.Append(ctx, id, userMsg, assistantMsg); err != nil {
		_, info := classify(err)
		mu.Lock()
		wsjson.Write(ctx, conn, wsFrame{Type: "error", Error: info})
		mu.Unlock()
		conn.Close(websocket.StatusInternalError, "persist failed")
		return
	}

	resp := api.NewSendMessageResponse(id, declared, result)
	mu.Lock()
	wsjson.Write(ctx, conn, wsFrame{Type: "result", Result: &resp})
	mu.Unlock()

	h.logger.Info("streamed deliberation complete",
		zap.String("conversation_id", id),
		zap.Duration("duration", time.Since(start)),
	)
	conn.Close(websocket.StatusNormalClosure, "done")
}
