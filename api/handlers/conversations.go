package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/councilflow/councilflow/api"
	"github.com/councilflow/councilflow/council"
	"github.com/councilflow/councilflow/llm"
	"github.com/councilflow/councilflow/storage"
)

// Deliberator runs one full council round. Satisfied by *council.Pipeline.
type Deliberator interface {
	Deliberate(ctx context.Context, history []llm.Message, sink council.EventSink) (*council.DeliberationResult, error)
	Members() []council.Member
}

// ConversationHandler serves conversation CRUD and message submission.
type ConversationHandler struct {
	store    storage.Store
	pipeline Deliberator
	logger   *zap.Logger
}

// NewConversationHandler creates the handler.
func NewConversationHandler(store storage.Store, pipeline Deliberator, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		store:    store,
		pipeline: pipeline,
		logger:   logger.With(zap.String("component", "conversation_handler")),
	}
}

// HandleList serves GET /api/conversations.
func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, summaries)
}

// HandleCreate serves POST /api/conversations.
func (h *ConversationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateConversationRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	conv, err := h.store.Create(r.Context(), req.Title)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("conversation created", zap.String("conversation_id", conv.ID))
	WriteJSON(w, http.StatusCreated, Response{
		Success:   true,
		Data:      conv,
		Timestamp: time.Now(),
	})
}

// HandleGet serves GET /api/conversations/{id}.
func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, conv)
}

// HandleDelete serves DELETE /api/conversations/{id}.
func (h *ConversationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.logger.Info("conversation deleted", zap.String("conversation_id", id))
	WriteJSON(w, http.StatusNoContent, nil)
}

// HandleSendMessage serves POST /api/conversations/{id}/message. It appends
// the user turn, runs a full deliberation over the conversation history, and
// persists the outcome. The label map and aggregate table are returned but
// never stored.
func (h *ConversationHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req api.SendMessageRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "INVALID_REQUEST", "content must not be empty", h.logger)
		return
	}

	conv, err := h.store.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	history := historyMessages(conv)
	history = append(history, llm.Message{Role: llm.RoleUser, Content: req.Content})

	start := time.Now()
	result, err := h.pipeline.Deliberate(r.Context(), history, nil)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	declared := h.pipeline.Members()
	userMsg, assistantMsg := api.StorageMessages(req.Content, declared, result)
	if err := h.store.Append(r.Context(), id, userMsg, assistantMsg); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	h.logger.Info("deliberation complete",
		zap.String("conversation_id", id),
		zap.Int("stage1_answers", len(result.Stage1)),
		zap.Int("stage2_evaluations", len(result.Stage2)),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, api.NewSendMessageResponse(id, declared, result))
}

// historyMessages projects the stored conversation onto the chat history the
// pipeline sees: user turns plus the chairman's final answers. Intermediate
// stage outputs stay out of the context window.
func historyMessages(conv *storage.Conversation) []llm.Message {
	out := make([]llm.Message, 0, len(conv.Messages)+1)
	for _, m := range conv.Messages {
		switch m.Role {
		case "user":
			out = append(out, llm.Message{Role: llm.RoleUser, Content: m.Content})
		case "assistant":
			out = append(out, llm.Message{Role: llm.RoleAssistant, Content: m.Content})
		}
	}
	return out
}
