// Package engine implements the conversation state machine at the heart of
// the order bot.
//
// Every inbound message flows through the same pipeline: ignore filter,
// duplicate guard, operator commands, mute gate, global keyword
// short-circuits, then phase dispatch. Handlers decide the next phase and
// produce replies; all sending happens afterwards in the engine loop, so the
// transition logic stays testable without I/O.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mundohelados/orderbot/internal/catalog"
	"github.com/mundohelados/orderbot/internal/config"
	"github.com/mundohelados/orderbot/internal/dedup"
	"github.com/mundohelados/orderbot/internal/escalate"
	"github.com/mundohelados/orderbot/internal/genai"
	"github.com/mundohelados/orderbot/internal/messaging"
	"github.com/mundohelados/orderbot/internal/models"
	"github.com/mundohelados/orderbot/internal/session"
	"github.com/mundohelados/orderbot/internal/textutil"
)

// Catalog is the inventory/order backend capability the engine consumes.
// Satisfied by *catalog.Client.
type Catalog interface {
	Search(ctx context.Context, query string) ([]models.Product, error)
	Options(ctx context.Context) (catalog.Options, error)
	SubmitOrder(ctx context.Context, sub models.OrderSubmission) error
	DeliveryCost(ctx context.Context, address string) (int, error)
}

// Reply is one outbound message produced by a handler. Either Text or
// ImagePath is set; images carry an optional caption.
type Reply struct {
	Text      string
	ImagePath string
	Caption   string
}

func text(s string) Reply { return Reply{Text: s} }

// handlerFunc is a phase handler: it mutates the session (phase, cart,
// counters) and returns the replies to send.
type handlerFunc func(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply

// Deps collects the engine's collaborators.
type Deps struct {
	Sessions  *session.Manager
	Guard     *dedup.Guard
	Gate      *escalate.Gate
	Catalog   Catalog
	Extractor genai.Extractor
	Messenger messaging.Service
}

// Engine drives the per-customer ordering conversation.
type Engine struct {
	cfg       config.Config
	sessions  *session.Manager
	guard     *dedup.Guard
	gate      *escalate.Gate
	catalog   Catalog
	extractor genai.Extractor
	messenger messaging.Service
	enabled   atomic.Bool
	handlers  map[models.Phase]handlerFunc

	// newOrderCode is swapped in tests for deterministic codes.
	newOrderCode func() string
}

// New creates an Engine. The bot starts enabled.
func New(cfg config.Config, deps Deps) *Engine {
	e := &Engine{
		cfg:          cfg,
		sessions:     deps.Sessions,
		guard:        deps.Guard,
		gate:         deps.Gate,
		catalog:      deps.Catalog,
		extractor:    deps.Extractor,
		messenger:    deps.Messenger,
		newOrderCode: newOrderCode,
	}
	e.enabled.Store(true)
	e.handlers = map[models.Phase]handlerFunc{
		models.PhaseOptionSelect:          e.handleOptionSelect,
		models.PhaseBrowseProducts:        e.handleBrowseProducts,
		models.PhaseProductDisambiguation: e.handleDisambiguation,
		models.PhaseSelectDetails:         e.handleSelectDetails,
		models.PhaseSelectQuantity:        e.handleSelectQuantity,
		models.PhaseEnterAddress:          e.handleEnterAddress,
		models.PhaseEnterName:             e.handleEnterName,
		models.PhaseEnterPhone:            e.handleEnterPhone,
		models.PhaseSelectPayment:         e.handleSelectPayment,
		models.PhaseConfirmOrder:          e.handleConfirmOrder,
		models.PhaseCustomOrder:           e.handleCustomOrder,
	}
	return e
}

// Run consumes the messenger's inbound stream until the context is cancelled.
// Each message is handled on its own goroutine; the session manager
// serializes handling per conversation.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("Engine running")
	for {
		select {
		case <-ctx.Done():
			slog.Info("Engine stopping", "reason", ctx.Err())
			return
		case msg, ok := <-e.messenger.Messages():
			if !ok {
				slog.Info("Engine stopping, message channel closed")
				return
			}
			go e.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage runs the full pipeline for one inbound message. It never
// panics: any fault in a handler is caught, logged and degraded to an
// apology, and the process keeps serving other conversations.
func (e *Engine) HandleMessage(ctx context.Context, msg models.IncomingMessage) {
	if msg.Ignorable() {
		return
	}
	if e.guard.SeenID(msg.MessageID) {
		slog.Debug("Dropping replayed message", "conversation", msg.From, "messageID", msg.MessageID)
		return
	}

	normalized := textutil.Normalize(msg.Body)

	if e.gate.IsOperator(msg.From) {
		e.handleOperatorMessage(ctx, msg.From, msg.Body, normalized)
		return
	}
	if !e.enabled.Load() {
		return
	}

	e.sessions.Lock(msg.From)
	defer e.sessions.Unlock(msg.From)

	defer func() {
		if r := recover(); r != nil {
			e.recoverFromPanic(ctx, msg, r)
		}
	}()

	s := e.sessions.GetOrCreate(msg.From)

	if e.guard.DuplicateContent(msg.From, normalized, expectsSelection(s.Phase)) {
		slog.Debug("Dropping double-sent content", "conversation", msg.From)
		return
	}

	if e.gate.IsMuted(msg.From) {
		e.gate.NoteMutedMessage(msg.From)
		return
	}

	s.LastPromptAt = time.Now()

	replies := e.dispatch(ctx, msg.From, s, msg.Body, normalized)

	if e.gate.ShouldEscalate(s) {
		reason := fmt.Sprintf("%d validation errors, %d AI failures", s.ErrorCount, s.AIFailureCount)
		e.gate.Escalate(ctx, msg.From, s, reason)
		replies = []Reply{text("Lo siento 🙏 te comunico con una persona del equipo, ya te atendemos.")}
	}

	e.send(ctx, msg.From, replies)
}

// dispatch applies the global short-circuits and then the phase handler.
func (e *Engine) dispatch(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	// Greeting and menu keywords reset the conversation from any phase.
	if textutil.ContainsAny(normalized, e.cfg.GreetingKeywords) || textutil.ContainsAny(normalized, e.cfg.MenuKeywords) {
		e.sessions.Reset(convID)
		return e.mainMenuReplies()
	}

	if textutil.ContainsAny(normalized, e.cfg.PayKeywords) && checkoutReachable(s.Phase) {
		return e.startCheckout(s)
	}

	handler, ok := e.handlers[s.Phase]
	if !ok {
		slog.Error("Unknown conversation phase, forcing reset", "conversation", convID, "phase", s.Phase)
		e.sessions.Reset(convID)
		return append([]Reply{text("Algo salió mal, empecemos de nuevo 🙏")}, e.mainMenuReplies()...)
	}
	return handler(ctx, convID, s, raw, normalized)
}

// expectsSelection reports whether the phase legitimately receives short
// selection tokens back to back, which exempts those tokens from content
// dedup.
func expectsSelection(p models.Phase) bool {
	switch p {
	case models.PhaseOptionSelect, models.PhaseProductDisambiguation,
		models.PhaseSelectDetails, models.PhaseSelectQuantity:
		return true
	}
	return false
}

// checkoutReachable reports whether the pay/cart keywords short-circuit from
// this phase. Mid-field collection they would misfire on addresses containing
// the word "pago".
func checkoutReachable(p models.Phase) bool {
	switch p {
	case models.PhaseOptionSelect, models.PhaseBrowseProducts, models.PhaseProductDisambiguation:
		return true
	}
	return false
}

// startCheckout moves a cart-holding session into delivery collection.
func (e *Engine) startCheckout(s *models.Session) []Reply {
	if len(s.Order.Items) == 0 {
		return []Reply{text("Tu carrito está vacío 🛒 Escribe el nombre del producto que quieres.")}
	}
	s.Phase = models.PhaseEnterAddress
	s.ErrorCount = 0
	return []Reply{
		text(cartLines(s.Order)),
		text("📍 Escríbeme la dirección de entrega (barrio y referencia si aplica)."),
	}
}

// send delivers replies with a typing pause before each one. The pause is
// skipped once the context is cancelled so shutdown is not delayed.
func (e *Engine) send(ctx context.Context, to string, replies []Reply) {
	for _, r := range replies {
		if err := ctx.Err(); err != nil {
			slog.Debug("Skipping remaining replies, context cancelled", "conversation", to)
			return
		}
		e.typingPause(ctx, to)
		if r.ImagePath != "" {
			e.sendImageFile(ctx, to, r.ImagePath, r.Caption)
			continue
		}
		if r.Text == "" {
			continue
		}
		if err := e.messenger.SendText(ctx, to, r.Text); err != nil {
			slog.Error("Failed to send reply", "conversation", to, "error", err)
		}
	}
}

// typingPause shows the composing indicator and waits the configured delay.
// Purely cosmetic pacing; interruptible.
func (e *Engine) typingPause(ctx context.Context, to string) {
	delay := e.cfg.TypingDelay.D()
	if delay <= 0 {
		return
	}
	if err := e.messenger.SendTyping(ctx, to); err != nil {
		slog.Debug("Typing indicator failed", "conversation", to, "error", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

// sendImageFile loads and sends an image, degrading to its caption as text
// when the file cannot be read or sent.
func (e *Engine) sendImageFile(ctx context.Context, to, path, caption string) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Failed to read image file", "path", path, "error", err)
		if caption != "" {
			if serr := e.messenger.SendText(ctx, to, caption); serr != nil {
				slog.Error("Failed to send caption fallback", "conversation", to, "error", serr)
			}
		}
		return
	}
	if err := e.messenger.SendImage(ctx, to, data, caption); err != nil {
		slog.Error("Failed to send image", "conversation", to, "error", err)
	}
}

// recoverFromPanic is the last line of defense: it logs the fault with full
// context, alerts the operators and apologizes to the customer. It must not
// itself panic.
func (e *Engine) recoverFromPanic(ctx context.Context, msg models.IncomingMessage, r interface{}) {
	phase := models.Phase("unknown")
	if s := e.sessions.Get(msg.From); s != nil {
		phase = s.Phase
	}
	slog.Error("Panic in message handler",
		"conversation", msg.From, "phase", phase, "input", msg.Body,
		"panic", r, "stack", string(debug.Stack()))

	e.gate.NotifyOperators(ctx, fmt.Sprintf("⚠️ Bot fault handling %s (phase %s), please check the logs.", msg.From, phase))
	if err := e.messenger.SendText(ctx, msg.From, "Lo siento, tuve un problema 🙏 Escribe *menú* para empezar de nuevo."); err != nil {
		slog.Error("Failed to send panic apology", "conversation", msg.From, "error", err)
	}
}

// Enabled reports whether the bot is globally answering customers.
func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

// SetEnabled flips the global bot switch.
func (e *Engine) SetEnabled(on bool) {
	e.enabled.Store(on)
	slog.Info("Bot switch changed", "enabled", on)
}

// handleOperatorMessage interprets admin commands. Operators never reach the
// customer state machine.
func (e *Engine) handleOperatorMessage(ctx context.Context, from, raw, normalized string) {
	reply := func(body string) {
		if err := e.messenger.SendText(ctx, from, body); err != nil {
			slog.Error("Failed to reply to operator", "operator", from, "error", err)
		}
	}

	switch {
	case strings.HasPrefix(normalized, textutil.Normalize(e.cfg.TakeoverKeyword)):
		target := commandTarget(normalized, textutil.Normalize(e.cfg.TakeoverKeyword), e.gate.LastCustomer())
		if target == "" {
			reply("No customer to take over yet.")
			return
		}
		e.gate.Mute(target)
		slog.Info("Operator takeover", "operator", from, "conversation", target)
		reply(fmt.Sprintf("You are now handling %s. Send %q when done.", target, e.cfg.ResumeKeyword))

	case strings.HasPrefix(normalized, textutil.Normalize(e.cfg.ResumeKeyword)):
		target := commandTarget(normalized, textutil.Normalize(e.cfg.ResumeKeyword), e.gate.LastCustomer())
		if target == "" {
			reply("No conversation to resume.")
			return
		}
		e.sessions.Lock(target)
		e.gate.Reactivate(target, e.sessions.Get(target))
		e.sessions.Unlock(target)
		reply(fmt.Sprintf("Bot resumed for %s.", target))

	case normalized == "enable":
		e.SetEnabled(true)
		reply("Bot enabled ✅")

	case normalized == "disable":
		e.SetEnabled(false)
		reply("Bot disabled ⛔ Customers will get no replies until you enable it.")

	case normalized == "status":
		reply(fmt.Sprintf("Enabled: %v\nActive sessions: %d\nMuted conversations: %d\nLast escalated customer: %s",
			e.enabled.Load(), e.sessions.Len(), e.gate.MutedCount(), orDash(e.gate.LastCustomer())))

	case strings.HasPrefix(normalized, "reset "):
		target := strings.TrimSpace(strings.TrimPrefix(normalized, "reset "))
		if target == "" {
			reply("Usage: reset <conversation id>")
			return
		}
		e.sessions.Lock(target)
		e.sessions.Reset(target)
		e.sessions.Unlock(target)
		reply(fmt.Sprintf("Session %s reset.", target))

	default:
		reply(fmt.Sprintf("Commands: enable | disable | status | reset <id> | %s [id] | %s [id]",
			e.cfg.TakeoverKeyword, e.cfg.ResumeKeyword))
	}
}

// commandTarget extracts the optional conversation id following an operator
// keyword, falling back to the given default.
func commandTarget(normalized, keyword, fallback string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(normalized, keyword))
	if rest != "" {
		return rest
	}
	return fallback
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
