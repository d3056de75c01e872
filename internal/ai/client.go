// Package ai wraps the Gemini models used to read receipts, answer questions
// about spending and look for cheaper deals.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/receipt-reader/internal/metrics"
	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

// Generator is the subset of *genai.Models the agents need. It enables
// mocking the model in tests.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewClient creates the process-wide Gemini client. It is built once at
// startup and its Models service is shared by every agent.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NewClient: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}
	return client, nil
}

func modelOrDefault(model string) string {
	if strings.TrimSpace(model) == "" {
		return DefaultModelName
	}
	return model
}

// generateText sends the parts as a single user turn and returns the response text.
// Latency is recorded under agent.
func generateText(ctx context.Context, gen Generator, agent, model string, config *genai.GenerateContentConfig, parts ...*genai.Part) (text string, err error) {
	started := time.Now()
	defer func() { metrics.ObserveModelCall(agent, err, time.Since(started)) }()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: parts,
		},
	}

	resp, err := gen.GenerateContent(ctx, modelOrDefault(model), contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("empty response from model")
	}

	text = resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}
