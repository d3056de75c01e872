package ai

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/receipt-reader/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// mockGenerator is a mock implementation of Generator for testing.
type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.lastModel, m.lastContents, m.lastConfig = model, contents, config
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, model, contents, config)
	}
	return nil, errors.New("not implemented")
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func replying(text string) *mockGenerator {
	return &mockGenerator{
		GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return textResponse(text), nil
		},
	}
}

func failing(err error) *mockGenerator {
	return &mockGenerator{
		GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, err
		},
	}
}

func promptText(t *testing.T, m *mockGenerator) string {
	t.Helper()
	require.Len(t, m.lastContents, 1)
	require.NotEmpty(t, m.lastContents[0].Parts)
	return m.lastContents[0].Parts[0].Text
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```\n", `{"a":1}`},
		{"single line fence", "```json{\"a\":1}```", `{"a":1}`},
		{"surrounding prose", "Here you go:\n{\"a\":{\"b\":2}}\nThanks!", `{"a":{"b":2}}`},
		{"no object", "sorry", "sorry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelJSON(tt.raw))
		})
	}
}

func TestReceiptScanner_Extract(t *testing.T) {
	gen := replying("```json\n{\"Merchant Name\":\"Cafe\",\"Items\":[],\"Total Amount\":12.5,\"Category\":\"Food & Dining\"}\n```")
	scanner := NewReceiptScanner(gen, "")

	data, err := scanner.Extract(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Cafe", data.MerchantName())
	assert.Equal(t, "Food & Dining", data.Category())
	assert.Empty(t, data.Items())

	assert.Equal(t, DefaultModelName, gen.lastModel)
	assert.Nil(t, gen.lastConfig)
	require.Len(t, gen.lastContents, 1)
	parts := gen.lastContents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, `"Transaction Date"`)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("img"), parts[1].InlineData.Data)
}

func TestReceiptScanner_ExtractErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewReceiptScanner(replying("{}"), "m").Extract(ctx, nil, "image/png")
	assert.Error(t, err)

	_, err = NewReceiptScanner(failing(errors.New("quota exceeded")), "m").Extract(ctx, []byte("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	_, err = NewReceiptScanner(replying("I cannot read this image."), "m").Extract(ctx, []byte("x"), "")
	assert.Error(t, err)

	_, err = NewReceiptScanner(replying("[1, 2]"), "m").Extract(ctx, []byte("x"), "")
	assert.Error(t, err)

	_, err = NewReceiptScanner(replying("   "), "m").Extract(ctx, []byte("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestReceiptScanner_RawResponseOnlyLogged(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logger.WithContext(context.Background(), logger.NewWithWriter(buf))

	_, err := NewReceiptScanner(replying("Sorry, the photo is blurry."), "m").Extract(ctx, []byte("x"), "")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "blurry")
	assert.Contains(t, buf.String(), "Sorry, the photo is blurry.")
}

func TestExtractionPrompt_ListsCategories(t *testing.T) {
	prompt := buildExtractionPrompt()
	assert.Contains(t, prompt, `"Food & Dining", "Transportation", "Groceries", "Shopping", "Utilities", "Health", "Entertainment", or "Other"`)
	assert.Contains(t, prompt, "null")
	assert.Contains(t, prompt, "[]")
}

func TestAdvisor_Respond(t *testing.T) {
	gen := replying("* You spent ₹500 on groceries.")
	advisor := NewAdvisor(gen, "advisor-model")

	history := []ChatMessage{
		{Sender: "user", Text: "How much on food?"},
		{Sender: "bot", Text: "₹300."},
	}
	got := advisor.Respond(context.Background(), "And groceries?", history, `[{"id":1}]`)

	assert.Equal(t, "* You spent ₹500 on groceries.", got)
	assert.Equal(t, "advisor-model", gen.lastModel)

	prompt := promptText(t, gen)
	assert.Contains(t, prompt, DisclaimerText)
	assert.Contains(t, prompt, "[USER'S RECEIPT DATA]:\n[{\"id\":1}]\n\n")
	assert.Contains(t, prompt, "[CONVERSATION HISTORY]:\nUser: How much on food?\nAdvisor: ₹300.\n\n")
	assert.True(t, strings.HasSuffix(prompt, "[USER'S NEW QUESTION]:\nAnd groceries?\nAdvisor Response:"))
}

func TestAdvisor_RespondFailureReturnsApology(t *testing.T) {
	advisor := NewAdvisor(failing(errors.New("boom")), "")
	assert.Equal(t, ApologyText, advisor.Respond(context.Background(), "hi", nil, "[]"))

	advisor = NewAdvisor(replying(""), "")
	assert.Equal(t, ApologyText, advisor.Respond(context.Background(), "hi", nil, "[]"))
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "", formatHistory(nil))
	assert.Equal(t, "User: a\nAdvisor: b\nAdvisor: c\n", formatHistory([]ChatMessage{
		{Sender: "user", Text: "a"},
		{Sender: "advisor", Text: "b"},
		{Text: "c"},
	}))
}

func TestDealFinder_Suggest(t *testing.T) {
	gen := replying("\n  You could save money on this. I found it cheaper at ShopX.  \n")
	finder := NewDealFinder(gen, "deal-model")

	got, err := finder.Suggest(context.Background(), "Noise-cancelling headphones")
	require.NoError(t, err)
	assert.Equal(t, "You could save money on this. I found it cheaper at ShopX.", got)

	assert.Equal(t, "deal-model", gen.lastModel)
	require.NotNil(t, gen.lastConfig)
	require.Len(t, gen.lastConfig.Tools, 1)
	assert.NotNil(t, gen.lastConfig.Tools[0].GoogleSearch)
	assert.Contains(t, promptText(t, gen), `"Noise-cancelling headphones"`)
}

func TestDealFinder_SuggestError(t *testing.T) {
	_, err := NewDealFinder(failing(errors.New("rate limited")), "").Suggest(context.Background(), "TV")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
