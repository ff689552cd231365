package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mundohelados/orderbot/internal/models"
)

type mockChatService struct {
	responses []string
	errs      []error
	calls     int
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	content := ""
	if i < len(m.responses) {
		content = m.responses[i]
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}, nil
}

func newTestClient(mock *mockChatService, retries int) *Client {
	return &Client{chat: mock, model: "test-model", timeout: time.Second, retries: retries}
}

func TestExtractIntent_Items(t *testing.T) {
	mock := &mockChatService{responses: []string{
		`{"items":[{"product":"helado de fresa","quantity":2,"modifications":["sin chips"]}]}`,
	}}
	intent, err := newTestClient(mock, 0).ExtractIntent(context.Background(), "", "quiero dos helados de fresa sin chips")
	if err != nil {
		t.Fatalf("ExtractIntent failed: %v", err)
	}
	if len(intent.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(intent.Items))
	}
	item := intent.Items[0]
	if item.Product != "helado de fresa" || item.Quantity != 2 || len(item.Modifications) != 1 {
		t.Errorf("unexpected item: %+v", item)
	}
}

func TestExtractIntent_StripsCodeFence(t *testing.T) {
	mock := &mockChatService{responses: []string{
		"```json\n{\"show_menu\": true}\n```",
	}}
	intent, err := newTestClient(mock, 0).ExtractIntent(context.Background(), "", "que tienen")
	if err != nil {
		t.Fatalf("ExtractIntent failed: %v", err)
	}
	if !intent.ShowMenu {
		t.Error("expected show_menu to be true")
	}
}

func TestExtractIntent_RetriesTransientError(t *testing.T) {
	mock := &mockChatService{
		errs:      []error{errors.New("rate limited"), nil},
		responses: []string{"", `{"reply":"hola, con gusto"}`},
	}
	intent, err := newTestClient(mock, 2).ExtractIntent(context.Background(), "", "hola")
	if err != nil {
		t.Fatalf("ExtractIntent failed: %v", err)
	}
	if intent.Reply != "hola, con gusto" {
		t.Errorf("unexpected reply %q", intent.Reply)
	}
	if mock.calls != 2 {
		t.Errorf("expected 2 calls, got %d", mock.calls)
	}
}

func TestExtractIntent_ExhaustsRetries(t *testing.T) {
	boom := errors.New("boom")
	mock := &mockChatService{errs: []error{boom, boom, boom}}
	_, err := newTestClient(mock, 2).ExtractIntent(context.Background(), "", "hola")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if mock.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", mock.calls)
	}
}

func TestExtractIntent_MalformedJSON(t *testing.T) {
	mock := &mockChatService{responses: []string{"definitely not json", "still not json"}}
	_, err := newTestClient(mock, 1).ExtractIntent(context.Background(), "", "hola")
	if !errors.Is(err, models.ErrMalformedIntent) {
		t.Errorf("expected ErrMalformedIntent, got %v", err)
	}
}

func TestExtractIntent_EmptyIntent(t *testing.T) {
	mock := &mockChatService{responses: []string{`{}`, `{}`}}
	_, err := newTestClient(mock, 1).ExtractIntent(context.Background(), "", "hola")
	if !errors.Is(err, models.ErrEmptyIntent) {
		t.Errorf("expected ErrEmptyIntent, got %v", err)
	}
}

func TestExtractIntent_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock := &mockChatService{errs: []error{context.Canceled}}
	_, err := newTestClient(mock, 2).ExtractIntent(ctx, "", "hola")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if mock.calls > 1 {
		t.Errorf("should not retry after cancellation, got %d calls", mock.calls)
	}
}

func TestParseIntentVariants(t *testing.T) {
	intent, err := parseIntent("```\n{\"reply\":\"hola\"}\n```")
	if err != nil || intent.Reply != "hola" {
		t.Errorf("bare fence parse failed: %v %+v", err, intent)
	}
	if _, err := parseIntent(""); !errors.Is(err, models.ErrEmptyIntent) {
		t.Errorf("expected ErrEmptyIntent for empty content, got %v", err)
	}
}
