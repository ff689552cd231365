// Package genai extracts structured order intents from free-form customer
// messages using the OpenAI API.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mundohelados/orderbot/internal/models"
)

// Extractor is the intent-extraction capability the conversation engine
// consumes.
type Extractor interface {
	ExtractIntent(ctx context.Context, conversationContext, userMessage string) (models.Intent, error)
}

// chatService abstracts the OpenAI chat completions endpoint for testing.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client wraps the OpenAI chat completions API for intent extraction.
type Client struct {
	chat    chatService
	model   string
	timeout time.Duration
	retries int
}

const systemPrompt = `Eres el asistente de una heladeria que recibe pedidos por WhatsApp.
Analiza el mensaje del cliente y responde UNICAMENTE con un objeto JSON con esta forma:
{"reply": "...", "items": [{"product": "...", "quantity": 1, "modifications": ["..."]}], "show_menu": false}
Reglas:
- Si el cliente pide productos concretos, lista cada uno en "items" con su cantidad.
- Si el cliente quiere ver el menu o pregunta que hay, pon "show_menu" en true.
- Si solo saluda o hace una pregunta general, responde en "reply" de forma breve y amable.
- Usa exactamente uno de los tres campos. No inventes productos ni precios.
- Responde solo el JSON, sin texto adicional.`

// NewClient creates an intent extraction client. The API key comes from the
// OPENAI_API_KEY environment variable.
func NewClient(model string, timeout time.Duration, retries int) (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		chat:    &cli.Chat.Completions,
		model:   model,
		timeout: timeout,
		retries: retries,
	}, nil
}

// ExtractIntent asks the model to classify a customer message. Each attempt
// runs under its own timeout; transient failures are retried with doubling
// backoff. The parsed intent is untrusted and must be validated by the
// caller.
func (c *Client) ExtractIntent(ctx context.Context, conversationContext, userMessage string) (models.Intent, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	if conversationContext != "" {
		messages = append(messages, openai.SystemMessage("Contexto de la conversacion: "+conversationContext))
	}
	messages = append(messages, openai.UserMessage(userMessage))

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	}

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return models.Intent{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			slog.Debug("Retrying intent extraction", "attempt", attempt)
		}

		intent, err := c.extractOnce(ctx, params)
		if err == nil {
			return intent, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return models.Intent{}, ctx.Err()
		}
	}
	return models.Intent{}, fmt.Errorf("intent extraction failed after %d attempts: %w", c.retries+1, lastErr)
}

func (c *Client) extractOnce(ctx context.Context, params openai.ChatCompletionNewParams) (models.Intent, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.chat.New(callCtx, params)
	if err != nil {
		return models.Intent{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.Intent{}, fmt.Errorf("no choices returned")
	}
	return parseIntent(resp.Choices[0].Message.Content)
}

// parseIntent decodes the model output, tolerating markdown code fences.
func parseIntent(content string) (models.Intent, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	if content == "" {
		return models.Intent{}, models.ErrEmptyIntent
	}
	var intent models.Intent
	if err := json.Unmarshal([]byte(content), &intent); err != nil {
		return models.Intent{}, fmt.Errorf("%w: %v", models.ErrMalformedIntent, err)
	}
	if intent.IsEmpty() {
		return models.Intent{}, models.ErrEmptyIntent
	}
	return intent, nil
}
