package messaging

import (
	"context"

	"github.com/mundohelados/orderbot/internal/models"
)

// Service defines a pluggable message delivery abstraction.
// It supports sending text, images and typing indicators, and exposes a
// channel of incoming customer messages.
type Service interface {
	// SendText sends a plain text message to a recipient.
	SendText(ctx context.Context, to string, body string) error

	// SendImage sends image bytes with an optional caption.
	SendImage(ctx context.Context, to string, image []byte, caption string) error

	// SendTyping shows a composing indicator in the recipient's chat.
	SendTyping(ctx context.Context, to string) error

	// Start begins background processing (event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Messages returns a channel of incoming customer messages.
	Messages() <-chan models.IncomingMessage
}
