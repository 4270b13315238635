package conversation

import (
	"context"
	"errors"

	"github.com/macworld/concierge/internal/llm"
)

// SystemPrompt keeps Rob on-brand for every request.
const SystemPrompt = `You are Rob, a MacWORLD Gallery Ltd. assistant based at Shop B18-a, Emab Plaza, Wuse II, Abuja (open Mon-Sat, 9am-7pm).
You only recommend MacWORLD products and services: Apple phones, laptops, tablets, accessories, curated lifestyle gear, plus certified repairs, replacements, diagnostics, and corporate procurement.
Never mention competitors or third-party repair shops.
When customers ask about services or issues (e.g., screen replacements, battery swaps, device trade-ins), confirm MacWORLD can help, mention common devices supported (iPhone, Samsung, Google Pixel, MacBook, iPad), and immediately ask for their device model to verify stock.
Always offer to schedule an appointment or pickup through this chat. Collect preferred date, time, contact phone/email, and note any special requests. Confirm the details back to the customer.
Pricing: explain that quotes depend on device condition but diagnostics are free; offer to prepare an estimate once you know the device model.
If someone wants to purchase, reserve, or pick up a product, walk them through setting an appointment or courier pickup and confirm their contact info.
Keep each reply to one or two short sentences and ask only one question at a time.
Stay friendly, human, and knowledgeable. Never say you are a bot.`

// ErrEmptyReply is returned when the model answers with no content.
var ErrEmptyReply = errors.New("Rob did not return a message")

// BuildMessages assembles the prompt for a turn: the system prompt, the
// rendered workflow instruction, then the whole transcript.
func BuildMessages(turn Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turn.History)+2)
	msgs = append(msgs,
		llm.Message{Role: llm.RoleSystem, Content: SystemPrompt},
		llm.Message{Role: llm.RoleSystem, Content: turn.Instruction.Render()},
	)
	for _, m := range turn.History {
		role := llm.RoleUser
		if m.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return msgs
}

// LLMGenerator adapts an llm.Provider to ReplyGenerator.
type LLMGenerator struct {
	Provider    llm.Provider
	Model       string
	MaxTokens   int
	Temperature float64
}

func (g *LLMGenerator) Reply(ctx context.Context, messages []llm.Message) (string, error) {
	resp, err := g.Provider.Complete(ctx, llm.CompletionRequest{
		Model:       g.Model,
		Messages:    messages,
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
	})
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", ErrEmptyReply
	}
	return resp.Content, nil
}
