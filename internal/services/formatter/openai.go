package formatter

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	domsvc "ChartPulse/internal/domain/service"
	"ChartPulse/pkg/config"
	"ChartPulse/pkg/logger"
)

const (
	defaultModel       = openai.GPT4oMini
	defaultTemperature = 0.3
	defaultMaxTokens   = 2000
)

const systemPrompt = "You are a helpful assistant that formats financial analysis text to be more readable using markdown."

const promptTemplate = `You are a financial analysis text formatter. Format the following text to make it more readable and digestible.

Rules:
1. Use **bold** for key metrics, percentages, dates, and important numbers
2. Use *italics* for emphasis on important concepts
3. Break long paragraphs into shorter, digestible chunks
4. Add bullet points or numbered lists where appropriate
5. Highlight critical information (price changes, percentages, dates) with **bold**
6. Keep the original meaning and facts intact
7. Use markdown formatting only (no HTML)
8. Make key statistics stand out with **bold**

Text to format:
%s

Return only the formatted markdown text, no explanations:`

// OpenAI rewrites analysis prose into markdown. Every failure path
// returns the input unchanged so callers never lose content.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *logger.Logger
}

func NewOpenAI(cfg *config.Config, log *logger.Logger) *OpenAI {
	fc := cfg.Formatter
	model := fc.Model
	if model == "" {
		model = defaultModel
	}
	temperature := fc.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := fc.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	var client *openai.Client
	if fc.APIKey != "" {
		client = openai.NewClient(fc.APIKey)
	}
	return &OpenAI{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      log,
	}
}

func (f *OpenAI) Format(ctx context.Context, text string) string {
	if text == "" {
		return text
	}
	if f.client == nil {
		f.logger.Warn("OPENAI_API_KEY not set, returning original text")
		return text
	}

	resp, err := f.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: f.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(promptTemplate, text)},
		},
		Temperature: f.temperature,
		MaxTokens:   f.maxTokens,
	})
	if err != nil {
		f.logger.Warn("text formatting failed", logger.Error(err))
		return text
	}
	if len(resp.Choices) == 0 {
		return text
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

var _ domsvc.TextFormatter = (*OpenAI)(nil)
