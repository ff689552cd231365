// Package cart implements cart accumulation and order summary rendering.
package cart

import (
	"fmt"
	"strings"

	"github.com/mundohelados/orderbot/internal/models"
)

// Add merges an item into the order. Lines are keyed by product code: adding
// an existing code increments its quantity, and flavor/topping selections are
// overwritten only when the new ones are non-empty. The cart never holds two
// lines with the same code.
func Add(order *models.Order, item models.CartItem) {
	if order.Items == nil {
		order.Items = []models.CartItem{}
	}
	for i := range order.Items {
		if order.Items[i].Code != item.Code {
			continue
		}
		order.Items[i].Quantity += item.Quantity
		if len(item.Flavors) > 0 {
			order.Items[i].Flavors = item.Flavors
		}
		if len(item.Toppings) > 0 {
			order.Items[i].Toppings = item.Toppings
		}
		return
	}
	order.Items = append(order.Items, item)
}

// Subtotal sums line totals. Line totals are always unit price times
// quantity, computed here rather than cached on the line.
func Subtotal(order models.Order) int {
	total := 0
	for _, item := range order.Items {
		total += item.Price * item.Quantity
	}
	return total
}

// Total is the subtotal plus delivery cost.
func Total(order models.Order) int {
	return Subtotal(order) + order.DeliveryCost
}

// FormatMoney renders an amount in pesos with dot thousands separators,
// e.g. 14000 -> "$14.000".
func FormatMoney(amount int) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteByte('.')
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// Lines renders the cart as customer-facing text, one block per line item
// with its customizations.
func Lines(order models.Order) string {
	var blocks []string
	for _, item := range order.Items {
		lineTotal := item.Price * item.Quantity
		text := fmt.Sprintf("*%dx* %s - *%s*", item.Quantity, item.Name, FormatMoney(lineTotal))
		if len(item.Flavors) > 0 {
			text += fmt.Sprintf("\n  flavors: _%s_", strings.Join(item.Flavors, ", "))
		}
		if len(item.Toppings) > 0 {
			text += fmt.Sprintf("\n  toppings: _%s_", strings.Join(item.Toppings, ", "))
		}
		blocks = append(blocks, text)
	}
	return strings.Join(blocks, "\n\n")
}

// Summary renders the full order confirmation text: line items, subtotal,
// delivery cost, grand total and collected delivery details.
func Summary(order models.Order) string {
	var b strings.Builder
	b.WriteString("📝 *Order summary*\n\n")
	b.WriteString(Lines(order))
	b.WriteString(fmt.Sprintf("\n\nSubtotal: %s", FormatMoney(Subtotal(order))))
	b.WriteString(fmt.Sprintf("\nDelivery: %s", FormatMoney(order.DeliveryCost)))
	b.WriteString(fmt.Sprintf("\n*Total: %s*", FormatMoney(Total(order))))
	b.WriteString("\n\n*Delivery details:*")
	b.WriteString(fmt.Sprintf("\n👤 Name: %s", order.Name))
	b.WriteString(fmt.Sprintf("\n📞 Phone: %s", order.Phone))
	b.WriteString(fmt.Sprintf("\n🏠 Address: %s", order.Address))
	b.WriteString(fmt.Sprintf("\n💳 Payment: %s", order.PaymentMethod))
	return b.String()
}

// ProductSummary renders the compact single-line description submitted to the
// order backend: "Name (flavors: a, b; toppings: c) x2 | ...".
func ProductSummary(order models.Order) string {
	var parts []string
	for _, item := range order.Items {
		var details []string
		if len(item.Flavors) > 0 {
			details = append(details, "flavors: "+strings.Join(item.Flavors, ", "))
		}
		if len(item.Toppings) > 0 {
			details = append(details, "toppings: "+strings.Join(item.Toppings, ", "))
		}
		entry := item.Name
		if len(details) > 0 {
			entry += " (" + strings.Join(details, "; ") + ")"
		}
		entry += fmt.Sprintf(" x%d", item.Quantity)
		parts = append(parts, entry)
	}
	summary := strings.Join(parts, " | ")
	if len(order.Notes) > 0 {
		summary += " (notes: " + strings.Join(order.Notes, ", ") + ")"
	}
	return summary
}
