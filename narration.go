package genairadio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// NarrationWriter produces the spoken script for one podcast topic
type NarrationWriter interface {
	GenerateNarration(ctx context.Context, topic string) (string, error)
}

// ErrEmptyNarration is returned when the model answers with no text
var ErrEmptyNarration = errors.New("empty narration")

// OpenAINarrator writes narration with a chat completion model
type OpenAINarrator struct {
	client *openai.Client
	model  string
}

// NewOpenAINarrator creates a narrator for the given client. An empty model
// uses gpt-4o-mini.
func NewOpenAINarrator(client *openai.Client, model string) *OpenAINarrator {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAINarrator{client: client, model: model}
}

// GenerateNarration asks the model for a radio-host style segment on topic
func (on *OpenAINarrator) GenerateNarration(ctx context.Context, topic string) (string, error) {
	VerboseLog("Generating narration for topic: %s", topic)

	prompt := buildNarrationPrompt(topic)
	transcript := llmLoggerFrom(ctx)
	transcript.LogLLMRequest("Narrator", prompt)

	resp, err := on.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: on.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate narration: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", on.model)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	transcript.LogLLMResponse("Narrator", text)
	if text == "" {
		return "", fmt.Errorf("%w for topic %q", ErrEmptyNarration, topic)
	}
	return text, nil
}

func buildNarrationPrompt(topic string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Create a detailed 90-120 second podcast narration about: %s.\n\n", topic))
	sb.WriteString("Style:\n")
	sb.WriteString("- Friendly radio host\n")
	sb.WriteString("- Engaging storytelling\n")
	sb.WriteString("- No dates, no breaking news, no live events\n")
	sb.WriteString("- No repeating sentences\n")
	sb.WriteString("- Smooth transitions and natural tone\n")
	sb.WriteString("- 4-6 paragraphs\n")
	sb.WriteString("- Creative and informative\n")

	return sb.String()
}

type llmLoggerKey struct{}

// WithLLMLogger attaches a transcript logger to ctx for collaborator calls
func WithLLMLogger(ctx context.Context, l *LLMLogger) context.Context {
	return context.WithValue(ctx, llmLoggerKey{}, l)
}

func llmLoggerFrom(ctx context.Context) *LLMLogger {
	l, _ := ctx.Value(llmLoggerKey{}).(*LLMLogger)
	return l
}
