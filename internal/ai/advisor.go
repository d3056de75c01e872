package ai

import (
	"context"

	"github.com/dvloznov/receipt-reader/internal/logger"
	"google.golang.org/genai"
)

// Advisor answers questions about the user's spending.
type Advisor struct {
	gen   Generator
	model string
}

// NewAdvisor creates an advisor that calls model through gen.
func NewAdvisor(gen Generator, model string) *Advisor {
	return &Advisor{gen: gen, model: model}
}

// Respond answers question given prior turns and the receipt corpus as JSON.
// Model failures are logged and replaced by ApologyText.
func (a *Advisor) Respond(ctx context.Context, question string, history []ChatMessage, receiptsJSON string) string {
	prompt := buildAdvisorPrompt(question, history, receiptsJSON)

	text, err := generateText(ctx, a.gen, "advisor", a.model, nil, &genai.Part{Text: prompt})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Int("history_turns", len(history)).Msg("advisor request failed")
		return ApologyText
	}
	return text
}
