package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mundohelados/orderbot/internal/cart"
	"github.com/mundohelados/orderbot/internal/models"
	"github.com/mundohelados/orderbot/internal/textutil"
)

// Closed vocabularies for fuzzy command matching. Bounded edit distance only
// works against small fixed sets like these.
var (
	paymentOptions = []string{"transferencia", "transfer", "efectivo", "cash"}
	confirmWords   = []string{"si", "yes", "confirmar", "confirm"}
	editWords      = []string{"editar", "edit", "cambiar"}
)

const fuzzyDistance = 2

func newOrderCode() string {
	return uuid.NewString()[:8]
}

// handleOptionSelect is the initial main-menu phase. Numeric options are
// served directly; anything else goes to the language model when AI fallback
// is enabled.
func (e *Engine) handleOptionSelect(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	switch normalized {
	case "1":
		s.Phase = models.PhaseBrowseProducts
		s.ErrorCount = 0
		return e.browsePromptReplies()
	case "2":
		s.ErrorCount = 0
		return []Reply{text(e.cfg.LocationInfo)}
	case "3":
		s.Phase = models.PhaseCustomOrder
		s.ErrorCount = 0
		return []Reply{text("🎉 Cuéntame qué necesitas para tu evento o pedido grande: producto, cantidad y fecha. Te respondemos en persona.")}
	}

	if s.AIEnabled && e.extractor != nil {
		return e.handleFreeText(ctx, convID, s, raw)
	}

	s.ErrorCount++
	return append([]Reply{text("No entendí 🙈 Elige una opción del menú:")}, e.mainMenuReplies()...)
}

// handleFreeText routes unstructured input through intent extraction.
// Extraction failures feed the AI-failure counter; results drive automatic
// phase advancement.
func (e *Engine) handleFreeText(ctx context.Context, convID string, s *models.Session, raw string) []Reply {
	intent, err := e.extractor.ExtractIntent(ctx, conversationContext(s), raw)
	if err != nil {
		s.AIFailureCount++
		slog.Warn("Intent extraction failed", "conversation", convID, "failures", s.AIFailureCount, "error", err)
		return []Reply{text("No entendí muy bien 🙈 Escribe *menú* para ver las opciones.")}
	}
	s.AIFailureCount = 0

	switch {
	case len(intent.Items) > 0:
		return e.applyIntentItems(ctx, convID, s, intent.Items)
	case intent.ShowMenu:
		s.Phase = models.PhaseBrowseProducts
		return e.browsePromptReplies()
	default:
		return []Reply{text(intent.Reply)}
	}
}

// applyIntentItems resolves extracted items against the catalog and merges
// the resolvable ones into the cart as if the customer had typed them. With
// items in the cart the flow jumps straight to address collection.
func (e *Engine) applyIntentItems(ctx context.Context, convID string, s *models.Session, items []models.IntentItem) []Reply {
	resolved := 0
	var misses []string
	for _, item := range items {
		products, err := e.catalog.Search(ctx, item.Product)
		if err != nil || len(products) != 1 {
			misses = append(misses, item.Product)
			continue
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		if qty > models.MaxQuantityPerLine {
			qty = models.MaxQuantityPerLine
		}
		p := products[0]
		cart.Add(&s.Order, models.CartItem{Code: p.Code, Name: p.Name, Price: p.Price, Quantity: qty})
		s.Order.Notes = append(s.Order.Notes, item.Modifications...)
		resolved++
	}

	if resolved == 0 {
		s.Phase = models.PhaseBrowseProducts
		return append([]Reply{text("No encontré esos productos 🙈 Este es nuestro menú:")}, e.browsePromptReplies()...)
	}

	replies := []Reply{text("¡Listo! Esto llevas:\n\n" + cartLines(s.Order))}
	if len(misses) > 0 {
		replies = append(replies, text("No encontré: "+strings.Join(misses, ", ")+". Puedes buscarlos por nombre después."))
	}
	s.Phase = models.PhaseEnterAddress
	s.ErrorCount = 0
	replies = append(replies, text("📍 Escríbeme la dirección de entrega."))
	return replies
}

// handleBrowseProducts treats free text as a catalog search query.
func (e *Engine) handleBrowseProducts(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	products, err := e.catalog.Search(ctx, strings.TrimSpace(raw))
	if err != nil {
		slog.Error("Product search failed", "conversation", convID, "error", err)
		return []Reply{text("Tuve un problema buscando 🙈 Intenta de nuevo en un momento.")}
	}

	switch len(products) {
	case 0:
		s.ErrorCount++
		return []Reply{text("No encontré ese producto 🙈 Prueba con otro nombre o escribe *menú*.")}
	case 1:
		s.ErrorCount = 0
		return e.selectProduct(ctx, s, products[0])
	default:
		s.LastMatches = products
		s.Phase = models.PhaseProductDisambiguation
		s.ErrorCount = 0
		return []Reply{text(matchListText(products))}
	}
}

// handleDisambiguation resolves a numbered pick from the last search.
func (e *Engine) handleDisambiguation(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	if len(s.LastMatches) == 0 {
		// Nothing to pick from; treat the input as a fresh search.
		s.Phase = models.PhaseBrowseProducts
		return e.handleBrowseProducts(ctx, convID, s, raw, normalized)
	}

	n, err := strconv.Atoi(normalized)
	if err != nil || n < 1 || n > len(s.LastMatches) {
		s.ErrorCount++
		return []Reply{text(fmt.Sprintf("Elige un número entre 1 y %d 🙏", len(s.LastMatches)))}
	}

	product := s.LastMatches[n-1]
	s.LastMatches = nil
	s.ErrorCount = 0
	return e.selectProduct(ctx, s, product)
}

// selectProduct stores the product on the session and advances to details or
// quantity, fetching the global option catalog when the product has counts
// but no embedded lists.
func (e *Engine) selectProduct(ctx context.Context, s *models.Session, p models.Product) []Reply {
	if p.NeedsDetails() {
		if (p.FlavorCount > 0 && len(p.Flavors) == 0) || (p.ToppingCount > 0 && len(p.Toppings) == 0) {
			opts, err := e.catalog.Options(ctx)
			if err != nil {
				slog.Error("Options fetch failed", "product", p.Code, "error", err)
				return []Reply{text("Tuve un problema consultando las opciones 🙈 Intenta de nuevo en un momento.")}
			}
			if p.FlavorCount > 0 && len(p.Flavors) == 0 {
				p.Flavors = opts.Flavors
			}
			if p.ToppingCount > 0 && len(p.Toppings) == 0 {
				p.Toppings = opts.Toppings
			}
		}
		s.CurrentProduct = &p
		s.SelectedFlavors = nil
		s.SelectedToppings = nil
		s.Phase = models.PhaseSelectDetails
		return []Reply{text(detailsPromptText(p))}
	}

	s.CurrentProduct = &p
	s.SelectedFlavors = nil
	s.SelectedToppings = nil
	s.Phase = models.PhaseSelectQuantity
	return []Reply{text(fmt.Sprintf("%s - %s\n¿Cuántas unidades quieres? (1-%d)", p.Name, cart.FormatMoney(p.Price), models.MaxQuantityPerLine))}
}

// handleSelectDetails parses S<n>/T<n> tokens against the current product's
// option lists. Validation is all-or-nothing: one bad token rejects the whole
// input.
func (e *Engine) handleSelectDetails(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	if s.CurrentProduct == nil {
		return e.corruptedSessionReset(convID)
	}
	p := s.CurrentProduct

	if normalized == "none" || normalized == "ninguno" {
		s.SelectedFlavors = nil
		s.SelectedToppings = nil
		s.ErrorCount = 0
		s.Phase = models.PhaseSelectQuantity
		return []Reply{text(fmt.Sprintf("¿Cuántas unidades de %s quieres? (1-%d)", p.Name, models.MaxQuantityPerLine))}
	}

	var flavors, toppings []string
	for _, token := range strings.Fields(normalized) {
		kind := token[0]
		idx, err := strconv.Atoi(token[1:])
		switch {
		case err != nil, len(token) < 2:
			return e.rejectDetails(s, p, token)
		case kind == 's':
			if idx < 1 || idx > len(p.Flavors) {
				return e.rejectDetails(s, p, token)
			}
			flavors = append(flavors, p.Flavors[idx-1])
		case kind == 't':
			if idx < 1 || idx > len(p.Toppings) {
				return e.rejectDetails(s, p, token)
			}
			toppings = append(toppings, p.Toppings[idx-1])
		default:
			return e.rejectDetails(s, p, token)
		}
	}

	if len(flavors) > p.FlavorCount || len(toppings) > p.ToppingCount {
		s.ErrorCount++
		return []Reply{
			text(fmt.Sprintf("Puedes elegir máximo %d sabores y %d toppings 🙏", p.FlavorCount, p.ToppingCount)),
			text(detailsPromptText(*p)),
		}
	}

	s.SelectedFlavors = flavors
	s.SelectedToppings = toppings
	s.ErrorCount = 0
	s.Phase = models.PhaseSelectQuantity
	return []Reply{text(fmt.Sprintf("¡Buena elección! ¿Cuántas unidades de %s quieres? (1-%d)", p.Name, models.MaxQuantityPerLine))}
}

func (e *Engine) rejectDetails(s *models.Session, p *models.Product, token string) []Reply {
	s.ErrorCount++
	return []Reply{
		text(fmt.Sprintf("No reconozco %q 🙈 Usa S1, T2... o *none* si no quieres nada.", token)),
		text(detailsPromptText(*p)),
	}
}

// handleSelectQuantity commits the current product into the cart.
func (e *Engine) handleSelectQuantity(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	if s.CurrentProduct == nil {
		return e.corruptedSessionReset(convID)
	}

	qty, err := strconv.Atoi(normalized)
	if err != nil || qty < 1 || qty > models.MaxQuantityPerLine {
		s.ErrorCount++
		return []Reply{text(fmt.Sprintf("Escribe un número entre 1 y %d 🙏", models.MaxQuantityPerLine))}
	}

	p := s.CurrentProduct
	cart.Add(&s.Order, models.CartItem{
		Code:     p.Code,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: qty,
		Flavors:  s.SelectedFlavors,
		Toppings: s.SelectedToppings,
	})

	s.CurrentProduct = nil
	s.SelectedFlavors = nil
	s.SelectedToppings = nil
	s.ErrorCount = 0
	s.Phase = models.PhaseBrowseProducts

	return []Reply{
		text("¡Agregado! 🛒\n\n" + cartLines(s.Order)),
		text("¿Qué más? Escribe otro producto, *pagar* para finalizar o *menú* para empezar de nuevo."),
	}
}

// handleEnterAddress, handleEnterName and handleEnterPhone collect the
// delivery fields in sequence.
func (e *Engine) handleEnterAddress(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	address := strings.TrimSpace(raw)
	if len(address) < models.MinAddressLength {
		s.ErrorCount++
		return []Reply{text("Esa dirección se ve muy corta 🙈 Escríbela completa con barrio y referencia.")}
	}

	s.Order.Address = address
	s.ErrorCount = 0
	s.Phase = models.PhaseEnterName

	// Best effort; the summary shows a zero placeholder when unavailable.
	if cost, err := e.catalog.DeliveryCost(ctx, address); err == nil {
		s.Order.DeliveryCost = cost
	} else {
		slog.Debug("Delivery cost lookup failed", "conversation", convID, "error", err)
	}

	return []Reply{text("👤 ¿A nombre de quién va el pedido?")}
}

func (e *Engine) handleEnterName(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	name := strings.TrimSpace(raw)
	if len(name) < models.MinNameLength {
		s.ErrorCount++
		return []Reply{text("Ese nombre se ve muy corto 🙈 Escríbelo completo por favor.")}
	}
	s.Order.Name = name
	s.ErrorCount = 0
	s.Phase = models.PhaseEnterPhone
	return []Reply{text("📞 ¿A qué número te podemos contactar?")}
}

func (e *Engine) handleEnterPhone(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	digits := textutil.Digits(raw)
	if len(digits) < models.MinPhoneDigits {
		s.ErrorCount++
		return []Reply{text("Ese número no se ve completo 🙈 Escríbelo con todos los dígitos.")}
	}
	s.Order.Phone = digits
	s.ErrorCount = 0
	s.Phase = models.PhaseSelectPayment
	return []Reply{text("💳 ¿Cómo quieres pagar? *Transferencia* o *efectivo*.")}
}

// handleSelectPayment fuzzy-matches the payment method and renders the final
// summary.
func (e *Engine) handleSelectPayment(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	match := textutil.BestMatch(normalized, paymentOptions, fuzzyDistance)
	if match == "" {
		s.ErrorCount++
		return []Reply{text("No entendí el método de pago 🙈 Escribe *transferencia* o *efectivo*.")}
	}

	var replies []Reply
	if match == "transferencia" || match == "transfer" {
		s.Order.PaymentMethod = "transferencia"
		if e.cfg.PaymentQRPath != "" {
			replies = append(replies, Reply{ImagePath: e.cfg.PaymentQRPath, Caption: e.cfg.PaymentInstructions})
		} else {
			replies = append(replies, text(e.cfg.PaymentInstructions))
		}
	} else {
		s.Order.PaymentMethod = "efectivo"
	}

	s.ErrorCount = 0
	s.Phase = models.PhaseConfirmOrder
	replies = append(replies,
		text(cart.Summary(s.Order)),
		text("¿Confirmas tu pedido? Responde *sí* para confirmar o *editar* para cambiar los datos de entrega."),
	)
	return replies
}

// handleConfirmOrder submits the order or restarts delivery collection.
// Unrecognized input is a validation error, never an implicit product search.
func (e *Engine) handleConfirmOrder(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	switch {
	case normalized == "1" || textutil.BestMatch(normalized, confirmWords, 1) != "":
		return e.submitOrder(ctx, convID, s)
	case normalized == "2" || textutil.BestMatch(normalized, editWords, 1) != "":
		s.Phase = models.PhaseEnterAddress
		s.ErrorCount = 0
		return []Reply{text("📍 Escríbeme de nuevo la dirección de entrega.")}
	default:
		s.ErrorCount++
		return []Reply{text("Responde *sí* para confirmar o *editar* para cambiar los datos 🙏")}
	}
}

// submitOrder registers the order with the backend. Failures keep the cart
// and phase intact so the customer can retry; success resets the session.
func (e *Engine) submitOrder(ctx context.Context, convID string, s *models.Session) []Reply {
	if len(s.Order.Items) == 0 {
		e.sessions.Reset(convID)
		return append([]Reply{text("Tu carrito está vacío 🙈 Empecemos de nuevo:")}, e.mainMenuReplies()...)
	}

	code := e.newOrderCode()
	sub := models.OrderSubmission{
		Code:           code,
		Name:           s.Order.Name,
		Phone:          s.Order.Phone,
		Address:        s.Order.Address,
		Amount:         cart.Total(s.Order),
		ProductSummary: cart.ProductSummary(s.Order),
		PaymentMethod:  s.Order.PaymentMethod,
	}

	if err := e.catalog.SubmitOrder(ctx, sub); err != nil {
		slog.Error("Order submission failed", "conversation", convID, "code", code, "error", err)
		e.gate.NotifyOperators(ctx, fmt.Sprintf("⚠️ Order submission failed for %s: %v\n%s", convID, err, cart.Summary(s.Order)))
		return []Reply{text("No pude registrar tu pedido 🙈 Ya avisé al equipo, en un momento te confirmamos.")}
	}

	e.gate.NotifyOperators(ctx, fmt.Sprintf("🧾 New order %s from %s\n%s", code, convID, cart.Summary(s.Order)))
	summary := s.Order
	e.sessions.Reset(convID)

	return []Reply{
		text(fmt.Sprintf("✅ ¡Pedido confirmado! Tu código es *%s*.\nTotal: %s\nTe avisamos cuando salga para tu dirección. ¡Gracias por comprar en %s! 🍦",
			code, cart.FormatMoney(cart.Total(summary)), e.cfg.StoreName)),
	}
}

// handleCustomOrder forwards a bulk/event request verbatim to the operators.
func (e *Engine) handleCustomOrder(ctx context.Context, convID string, s *models.Session, raw, normalized string) []Reply {
	e.gate.NotifyOperators(ctx, fmt.Sprintf("🎉 Custom order request from %s:\n%s", convID, strings.TrimSpace(raw)))
	e.sessions.Reset(convID)
	return []Reply{text("¡Recibido! 🎉 Una persona del equipo te contacta pronto para cotizar tu pedido.")}
}

// corruptedSessionReset recovers from a session that reached a customization
// phase without a current product.
func (e *Engine) corruptedSessionReset(convID string) []Reply {
	slog.Error("Session reached product phase without current product, forcing reset", "conversation", convID)
	e.sessions.Reset(convID)
	return append([]Reply{text("Lo siento, perdí el hilo 🙏 Empecemos de nuevo:")}, e.mainMenuReplies()...)
}

func conversationContext(s *models.Session) string {
	if len(s.Order.Items) == 0 {
		return ""
	}
	return "El cliente ya lleva en el carrito: " + cart.ProductSummary(s.Order)
}
