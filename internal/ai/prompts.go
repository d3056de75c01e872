package ai

import (
	"fmt"
	"strings"

	"github.com/dvloznov/receipt-reader/internal/domain"
)

// DisclaimerText must close any general financial advice the advisor gives.
const DisclaimerText = "Please remember, I am an AI assistant and not a licensed financial advisor. " +
	"You should consult with a professional for personalized financial decisions."

// ApologyText is returned to the user when the advisor cannot answer.
const ApologyText = "I apologize, but I encountered a problem trying to process your request. Please try again."

func quotedCategories() string {
	quoted := make([]string, len(domain.Categories))
	for i, c := range domain.Categories {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	last := len(quoted) - 1
	return strings.Join(quoted[:last], ", ") + ", or " + quoted[last]
}

// buildExtractionPrompt returns the instructions sent alongside a receipt image.
func buildExtractionPrompt() string {
	return "Analyze the provided receipt or invoice image. Extract the information below and format it into a precise JSON object.\n" +
		"Based on the merchant's name and the items purchased, determine the most logical spending category.\n\n" +
		"JSON fields to extract:\n" +
		"- \"" + domain.KeyMerchantName + "\": the name of the store or service provider.\n" +
		"- \"" + domain.KeyTransactionDate + "\": the date of the transaction in YYYY-MM-DD format.\n" +
		"- \"" + domain.KeyTransactionTime + "\": the time of the transaction.\n" +
		"- \"" + domain.KeyItems + "\": a JSON array of objects. Each object must contain an \"" + domain.KeyItemName +
		"\" (the name or description) and its corresponding \"" + domain.KeyItemPrice + "\".\n" +
		"- \"" + domain.KeySubtotal + "\": the total cost before taxes are applied.\n" +
		"- \"" + domain.KeyTax + "\": the total tax amount. If multiple taxes are present (VAT, GST, ...), sum them.\n" +
		"- \"" + domain.KeyTotalAmount + "\": the final, grand total paid.\n" +
		"- \"" + domain.KeyCategory + "\": classify the expense into one of the following categories: " + quotedCategories() + ".\n\n" +
		"Rules:\n" +
		"1. If a field's value is not present on the receipt, its value in the JSON must be null.\n" +
		"2. If no individual items can be identified, \"" + domain.KeyItems + "\" must be an empty array [].\n" +
		"3. Return ONLY the raw JSON object.\n" +
		"Do NOT wrap the response in code fences.\n" +
		"Do NOT use ```json or any Markdown.\n" +
		"Output must begin with \"{\" and end with \"}\".\n"
}

const advisorSystemPrompt = `You are 'SmartReceipts Advisor', an expert AI personal financial assistant. Provide safe, accurate and helpful financial insights based primarily on the user's own data. Answer questions about the user's spending, budgeting and financial strategies.
Always give short answers. Use bullet points for lists. Content should be short, clear and insightful.

RULES YOU MUST FOLLOW:

1. DATA FIRST: Your primary source of truth is [USER'S RECEIPT DATA]. If a question is about their spending (e.g. "how much did I spend on...?"), the answer MUST be derived from this data. NEVER invent transactions, amounts or dates. If the data isn't there, say so.

2. KEEP CONTEXT: Use [CONVERSATION HISTORY] to understand follow-up questions.

3. SAFETY DISCLAIMER (MANDATORY): When giving any general financial advice, strategies or suggestions (ways to save, investment ideas), you MUST end the response with:
   ` + "`" + DisclaimerText + "`" + `

4. THINK STEP BY STEP:
   - Step 1: Analyze [USER'S NEW QUESTION]. What is the core intent?
   - Step 2: Can the intent be satisfied directly from [USER'S RECEIPT DATA]? If yes, answer from that data only.
   - Step 3: If not, check [CONVERSATION HISTORY] for context. Is this a follow-up?
   - Step 4: If it is a general advice question, give a helpful, generic answer.
   - Step 5: Apply the mandatory safety disclaimer if you gave general advice in Step 4.

5. PERSONA AND TONE:
   - Be professional, empathetic and clear.
   - Keep answers concise and use bullet points (*) for lists.
   - All financial figures must be in Rupees (₹).`

// ChatMessage is one prior turn of the advisor conversation.
type ChatMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// formatHistory renders prior turns as "User: ..." / "Advisor: ..." lines.
func formatHistory(history []ChatMessage) string {
	var b strings.Builder
	for _, msg := range history {
		role := "Advisor"
		if msg.Sender == "user" {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, msg.Text)
	}
	return b.String()
}

// buildAdvisorPrompt assembles the full advisor prompt for one question.
func buildAdvisorPrompt(question string, history []ChatMessage, receiptsJSON string) string {
	return advisorSystemPrompt + "\n\n" +
		"--- CONTEXT FOR CURRENT QUERY ---\n" +
		"[USER'S RECEIPT DATA]:\n" + receiptsJSON + "\n\n" +
		"[CONVERSATION HISTORY]:\n" + formatHistory(history) + "\n" +
		"[USER'S NEW QUESTION]:\n" + question + "\n" +
		"Advisor Response:"
}

// buildDealPrompt asks for a cheaper price on the user's most expensive purchase.
func buildDealPrompt(itemName string) string {
	return fmt.Sprintf("A user has overspent their budget. Their most expensive purchase was %q.\n"+
		"Search the web for a better price or deal for this item in India.\n"+
		"Summarize your findings in a short, helpful suggestion. For example: "+
		"\"You could save money on this. I found it for a lower price at [Store/Website].\"\n"+
		"Provide a single, concise paragraph.", itemName)
}
