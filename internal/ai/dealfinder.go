package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DealFinder suggests cheaper alternatives for a purchase, grounded on Google Search.
type DealFinder struct {
	gen   Generator
	model string
}

// NewDealFinder creates a deal finder that calls model through gen.
func NewDealFinder(gen Generator, model string) *DealFinder {
	return &DealFinder{gen: gen, model: model}
}

// Suggest returns a short savings suggestion for itemName.
func (d *DealFinder) Suggest(ctx context.Context, itemName string) (string, error) {
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		},
	}

	text, err := generateText(ctx, d.gen, "deal_finder", d.model, config, &genai.Part{Text: buildDealPrompt(itemName)})
	if err != nil {
		return "", fmt.Errorf("Suggest: %w", err)
	}
	return strings.TrimSpace(text), nil
}
