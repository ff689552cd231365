package engine

import (
	"fmt"
	"strings"

	"github.com/mundohelados/orderbot/internal/cart"
	"github.com/mundohelados/orderbot/internal/models"
)

// mainMenuReplies renders the greeting menu.
func (e *Engine) mainMenuReplies() []Reply {
	menu := fmt.Sprintf("¡Hola! 👋 Bienvenido a *%s* 🍦\n\n"+
		"1️⃣ Ver productos y pedir\n"+
		"2️⃣ Horario y ubicación\n"+
		"3️⃣ Pedidos grandes / eventos\n\n"+
		"Responde con el número de la opción.", e.cfg.StoreName)
	return []Reply{text(menu)}
}

// browsePromptReplies sends the menu images (when configured) and the search
// prompt.
func (e *Engine) browsePromptReplies() []Reply {
	var replies []Reply
	for _, path := range e.cfg.MenuImagePaths {
		replies = append(replies, Reply{ImagePath: path})
	}
	replies = append(replies, text("Escríbeme el nombre del producto que quieres 🍨"))
	return replies
}

// matchListText renders a numbered disambiguation list, capped for display.
func matchListText(products []models.Product) string {
	var b strings.Builder
	b.WriteString("Encontré varias opciones 👀 Responde con el número:\n")
	for i, p := range products {
		if i >= models.MaxDisplayedMatches {
			b.WriteString(fmt.Sprintf("\n...y %d más. Escribe un nombre más específico si no está en la lista.", len(products)-models.MaxDisplayedMatches))
			break
		}
		b.WriteString(fmt.Sprintf("\n%d. %s - %s", i+1, p.Name, cart.FormatMoney(p.Price)))
	}
	return b.String()
}

// detailsPromptText renders the flavor/topping selection prompt for a
// product.
func detailsPromptText(p models.Product) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("*%s* - %s\n", p.Name, cart.FormatMoney(p.Price)))

	if p.FlavorCount > 0 && len(p.Flavors) > 0 {
		b.WriteString(fmt.Sprintf("\nElige hasta %d sabores:\n", p.FlavorCount))
		for i, f := range p.Flavors {
			b.WriteString(fmt.Sprintf("S%d. %s\n", i+1, f))
		}
	}
	if p.ToppingCount > 0 && len(p.Toppings) > 0 {
		b.WriteString(fmt.Sprintf("\nElige hasta %d toppings:\n", p.ToppingCount))
		for i, t := range p.Toppings {
			b.WriteString(fmt.Sprintf("T%d. %s\n", i+1, t))
		}
	}

	b.WriteString("\nResponde con los códigos separados por espacio (ej: S1 T2) o *none* si no quieres nada.")
	return b.String()
}

// cartLines renders the current cart contents for mid-flow confirmations.
func cartLines(order models.Order) string {
	return cart.Lines(order)
}
