package expenses

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/receipt-reader/internal/ai"
)

// Chat answers a question about the user's spending. Every receipt, most
// recent first, is passed to the advisor as its factual grounding.
func (s *Service) Chat(ctx context.Context, query string, history []ai.ChatMessage) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("Chat: %w", ErrQueryRequired)
	}

	receipts, err := s.deps.Receipts.ListReceipts(ctx)
	if err != nil {
		return "", fmt.Errorf("Chat: %w", err)
	}

	corpus := "[]"
	if len(receipts) > 0 {
		raw, err := json.Marshal(receipts)
		if err != nil {
			return "", fmt.Errorf("Chat: encode receipts: %w", err)
		}
		corpus = string(raw)
	}

	return s.deps.Advisor.Respond(ctx, query, history, corpus), nil
}
