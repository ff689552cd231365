package messaging

import (
	"context"
	"sync"

	"github.com/mundohelados/orderbot/internal/models"
)

// MockService is an in-memory Service implementation for tests. It records
// every outbound call and lets tests inject incoming messages.
type MockService struct {
	mu       sync.Mutex
	texts    []SentText
	images   []SentImage
	typing   []string
	incoming chan models.IncomingMessage

	// SendTextErr, when set, is returned by SendText.
	SendTextErr error
}

// SentText is one recorded SendText call.
type SentText struct {
	To   string
	Body string
}

// SentImage is one recorded SendImage call.
type SentImage struct {
	To      string
	Image   []byte
	Caption string
}

// NewMockService creates a mock messaging service.
func NewMockService() *MockService {
	return &MockService{incoming: make(chan models.IncomingMessage, DefaultChannelBufferSize)}
}

func (m *MockService) SendText(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendTextErr != nil {
		return m.SendTextErr
	}
	m.texts = append(m.texts, SentText{To: to, Body: body})
	return nil
}

func (m *MockService) SendImage(ctx context.Context, to string, image []byte, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, SentImage{To: to, Image: image, Caption: caption})
	return nil
}

func (m *MockService) SendTyping(ctx context.Context, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, to)
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error {
	close(m.incoming)
	return nil
}

func (m *MockService) Messages() <-chan models.IncomingMessage {
	return m.incoming
}

// Inject delivers an incoming message to consumers of Messages.
func (m *MockService) Inject(msg models.IncomingMessage) {
	m.incoming <- msg
}

// Texts returns a copy of the recorded SendText calls.
func (m *MockService) Texts() []SentText {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentText, len(m.texts))
	copy(out, m.texts)
	return out
}

// Images returns a copy of the recorded SendImage calls.
func (m *MockService) Images() []SentImage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentImage, len(m.images))
	copy(out, m.images)
	return out
}

// TypingCount returns how many typing indicators were sent.
func (m *MockService) TypingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.typing)
}

// Reset clears all recorded calls.
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = nil
	m.images = nil
	m.typing = nil
}
