package messaging

import (
	"context"
	"log/slog"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/mundohelados/orderbot/internal/models"
	"github.com/mundohelados/orderbot/internal/whatsapp"
)

const (
	// DefaultChannelBufferSize defines the buffer size for the incoming
	// message channel.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds non-blocking channel sends.
	DefaultChannelTimeout = 1 * time.Second
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp
// client.
type WhatsAppService struct {
	sender   whatsapp.Sender
	waClient *whatsapp.Client // event handling needs the full client
	messages chan models.IncomingMessage
	done     chan struct{}
}

// NewWhatsAppService creates a WhatsAppService wrapping the given sender.
func NewWhatsAppService(sender whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		sender:   sender,
		messages: make(chan models.IncomingMessage, DefaultChannelBufferSize),
		done:     make(chan struct{}),
	}
	if waClient, ok := sender.(*whatsapp.Client); ok {
		service.waClient = waClient
	} else {
		slog.Debug("WhatsAppService created with interface sender (likely mock)")
	}
	return service
}

// Start begins background event processing.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling")
		return nil
	}
	go s.handleEvents(ctx)
	return nil
}

// Stop stops background processing and closes the message channel.
func (s *WhatsAppService) Stop() error {
	close(s.done)
	close(s.messages)
	if s.waClient != nil {
		s.waClient.Disconnect()
	}
	slog.Info("WhatsAppService stopped")
	return nil
}

// SendText sends a plain text message.
func (s *WhatsAppService) SendText(ctx context.Context, to string, body string) error {
	if err := s.sender.SendText(ctx, to, body); err != nil {
		slog.Error("WhatsAppService SendText error", "error", err, "to", to)
		return err
	}
	return nil
}

// SendImage sends image bytes with a caption.
func (s *WhatsAppService) SendImage(ctx context.Context, to string, image []byte, caption string) error {
	if err := s.sender.SendImage(ctx, to, image, caption); err != nil {
		slog.Error("WhatsAppService SendImage error", "error", err, "to", to)
		return err
	}
	return nil
}

// SendTyping shows a composing indicator.
func (s *WhatsAppService) SendTyping(ctx context.Context, to string) error {
	return s.sender.SendTyping(ctx, to)
}

// Messages returns the channel of incoming customer messages.
func (s *WhatsAppService) Messages() <-chan models.IncomingMessage {
	return s.messages
}

// handleEvents registers a Whatsmeow event handler that feeds incoming text
// messages into the message channel.
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	client := s.waClient.GetClient()
	if client == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	client.AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})

	<-ctx.Done()
	slog.Debug("WhatsAppService event handler stopping")
}

// handleIncomingMessage converts a Whatsmeow message event into the engine's
// incoming message shape. Non-text payloads are dropped here; self, group and
// broadcast traffic is flagged and filtered by the consumer.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var messageText string
	if evt.Message.Conversation != nil {
		messageText = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		messageText = *evt.Message.ExtendedTextMessage.Text
	} else {
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	msg := models.IncomingMessage{
		From:       evt.Info.Sender.User,
		Body:       messageText,
		MessageID:  string(evt.Info.ID),
		IsFromSelf: evt.Info.IsFromMe,
		IsGroup:    evt.Info.IsGroup || evt.Info.Chat.Server == "broadcast",
		Timestamp:  evt.Info.Timestamp,
	}

	select {
	case s.messages <- msg:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService message channel blocked, dropping message", "from", msg.From)
	}
}
