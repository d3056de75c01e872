package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dvloznov/receipt-reader/internal/ai"
	"github.com/dvloznov/receipt-reader/internal/api/middleware"
	"github.com/dvloznov/receipt-reader/internal/expenses"
	"github.com/rs/zerolog"
)

// ChatService answers questions about the user's receipts.
type ChatService interface {
	Chat(ctx context.Context, query string, history []ai.ChatMessage) (string, error)
}

// ChatHandler handles the advisor chatbot.
type ChatHandler struct {
	svc ChatService
	log zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc ChatService, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, log: log}
}

// Chat handles POST /api/chatbot/
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query   string           `json:"query"`
		History []map[string]any `json:"history"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	answer, err := h.svc.Chat(r.Context(), req.Query, historyMessages(req.History))
	if err != nil {
		if errors.Is(err, expenses.ErrQueryRequired) {
			middleware.WriteError(w, http.StatusBadRequest, "A query is required.")
			return
		}
		h.log.Error().Err(err).Msg("Chat failed")
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"response": answer})
}

// historyMessages accepts loosely typed history entries; non-string values
// are rendered as text.
func historyMessages(raw []map[string]any) []ai.ChatMessage {
	out := make([]ai.ChatMessage, 0, len(raw))
	for _, entry := range raw {
		out = append(out, ai.ChatMessage{
			Sender: text(entry["sender"]),
			Text:   text(entry["text"]),
		})
	}
	return out
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
