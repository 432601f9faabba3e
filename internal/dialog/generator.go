// Package dialog produces the synthetic patient's next spoken line from the
// scenario brief and the recent conversation history.
package dialog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// systemPrompt is the fixed persona brief. The scenario supplies the
// per-call specifics; this supplies how a patient on the phone behaves.
const systemPrompt = `You are a realistic patient calling a medical office. ` +
	`You speak in short, natural, conversational sentences, one thought at a ` +
	`time, the way people actually talk on the phone. You answer the staff ` +
	`member's questions directly, provide details from your scenario when ` +
	`asked, and politely steer the conversation toward what you called for. ` +
	`You never break character, never mention being an AI, and never narrate ` +
	`or describe actions.`

// Generator produces patient utterances via OpenAI chat completions.
type Generator struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
}

// NewGenerator creates a Generator. baseURL may be empty to use the default
// OpenAI endpoint.
func NewGenerator(apiKey, baseURL, model string, temperature float64, timeout time.Duration) *Generator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Generator{
		client:      openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
		timeout:     timeout,
	}
}

// NextUtterance returns the patient's next line given the scenario and the
// capped recent transcript. A failure here is fatal to the current turn:
// no fallback text is substituted, since a fabricated line would corrupt
// the persisted transcript.
func (g *Generator) NextUtterance(ctx context.Context, scenario string, history []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(g.temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(scenario, history)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("generating utterance: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generating utterance: response contained no choices")
	}

	utterance := strings.TrimSpace(resp.Choices[0].Message.Content)
	if utterance == "" {
		return "", fmt.Errorf("generating utterance: model returned empty text")
	}
	return utterance, nil
}

// BuildPrompt renders the user message handed to the model. Exported so the
// prompt shape is testable without a live client.
func BuildPrompt(scenario string, history []string) string {
	return fmt.Sprintf(
		"Scenario: %s\n\nConversation so far:\n%s\n\nReturn ONLY the next thing the patient should say (no quotes, no labels).",
		scenario, strings.Join(history, "\n"),
	)
}
