// Package models defines the core data structures for the order bot.
//
// It includes the conversation session, cart and order types, inbound message
// events, and the product/intent shapes shared across modules.
package models

import (
	"errors"
	"time"
)

// Phase identifies a position in the ordering state machine.
type Phase string

// The full set of conversation phases. Any other value is a defect and forces
// a session reset.
const (
	// PhaseOptionSelect is the initial phase: main menu option selection.
	PhaseOptionSelect Phase = "option_select"
	// PhaseBrowseProducts treats free text as a product search query.
	PhaseBrowseProducts Phase = "browse_products"
	// PhaseProductDisambiguation resolves a numbered pick from the last search.
	PhaseProductDisambiguation Phase = "product_disambiguation"
	// PhaseSelectDetails collects flavor/topping tokens for the current product.
	PhaseSelectDetails Phase = "select_details"
	// PhaseSelectQuantity collects the unit count for the current product.
	PhaseSelectQuantity Phase = "select_quantity"
	// PhaseEnterAddress collects the delivery address.
	PhaseEnterAddress Phase = "enter_address"
	// PhaseEnterName collects the customer name.
	PhaseEnterName Phase = "enter_name"
	// PhaseEnterPhone collects the contact phone number.
	PhaseEnterPhone Phase = "enter_phone"
	// PhaseSelectPayment collects the payment method.
	PhaseSelectPayment Phase = "select_payment"
	// PhaseConfirmOrder awaits the final confirm/edit decision.
	PhaseConfirmOrder Phase = "confirm_order"
	// PhaseCustomOrder accepts a freeform bulk/event order description.
	PhaseCustomOrder Phase = "custom_order"
)

// IsValidPhase reports whether p is one of the known phases.
func IsValidPhase(p Phase) bool {
	switch p {
	case PhaseOptionSelect, PhaseBrowseProducts, PhaseProductDisambiguation,
		PhaseSelectDetails, PhaseSelectQuantity, PhaseEnterAddress,
		PhaseEnterName, PhaseEnterPhone, PhaseSelectPayment,
		PhaseConfirmOrder, PhaseCustomOrder:
		return true
	}
	return false
}

// Validation constants shared by the phase handlers.
const (
	// MaxQuantityPerLine is the largest quantity accepted for a single line item.
	MaxQuantityPerLine = 50
	// MaxDisplayedMatches caps the rendered disambiguation list.
	MaxDisplayedMatches = 10
	// MinAddressLength is the minimum accepted delivery address length.
	MinAddressLength = 8
	// MinNameLength is the minimum accepted customer name length.
	MinNameLength = 3
	// MinPhoneDigits is the minimum digit count for a phone number.
	MinPhoneDigits = 7
)

// Error variables for better error handling and testability.
var (
	ErrUnknownPhase       = errors.New("unknown conversation phase")
	ErrNoCurrentProduct   = errors.New("no current product in session")
	ErrInvalidSelection   = errors.New("selection out of range")
	ErrInvalidQuantity    = errors.New("quantity out of range")
	ErrEmptyIntent        = errors.New("intent extraction returned nothing usable")
	ErrMalformedIntent    = errors.New("intent extraction returned malformed JSON")
	ErrSubmissionRejected = errors.New("order submission rejected by backend")
)

// Product describes a catalog entry returned by the inventory backend.
type Product struct {
	Code        string
	Name        string
	Price       int
	Description string
	// FlavorCount and ToppingCount say how many choices this product allows.
	FlavorCount  int
	ToppingCount int
	// Flavors and Toppings are the product's own option lists; empty means the
	// global catalog applies.
	Flavors  []string
	Toppings []string
}

// NeedsDetails reports whether the product requires flavor or topping choices
// before a quantity can be asked.
func (p Product) NeedsDetails() bool {
	return p.FlavorCount > 0 || p.ToppingCount > 0
}

// CartItem is one line of an order: product, quantity and chosen options.
// Identity key is Code; adding the same code again merges into one line.
type CartItem struct {
	Code     string
	Name     string
	Price    int
	Quantity int
	Flavors  []string
	Toppings []string
}

// Order accumulates across the ordering flow and is reset on completion.
type Order struct {
	Items         []CartItem
	Address       string
	Name          string
	Phone         string
	PaymentMethod string
	DeliveryCost  int
	Notes         []string
}

// Session is the per-conversation mutable state record. One per customer,
// keyed by conversation identifier. All mutation happens under the session
// manager's per-conversation lock.
type Session struct {
	Phase            Phase
	Order            Order
	CurrentProduct   *Product
	SelectedFlavors  []string
	SelectedToppings []string
	LastMatches      []Product
	ErrorCount       int
	AIFailureCount   int
	AIEnabled        bool
	AdminNotified    bool
	LastPromptAt     time.Time
	CreatedAt        time.Time
}

// IncomingMessage is an inbound transport event, already reduced to text.
type IncomingMessage struct {
	From       string
	Body       string
	MessageID  string
	IsFromSelf bool
	IsGroup    bool
	Timestamp  time.Time
}

// Ignorable reports whether the event must be dropped before it reaches the
// state machine: self-originated, group/broadcast, or empty text.
func (m IncomingMessage) Ignorable() bool {
	return m.IsFromSelf || m.IsGroup || len(m.Body) == 0
}

// IntentItem is one "product + quantity + modifications" entry extracted from
// free text by the language model.
type IntentItem struct {
	Product       string   `json:"product"`
	Quantity      int      `json:"quantity"`
	Modifications []string `json:"modifications"`
}

// Intent is the structured result of language-model intent extraction. The
// model returns exactly one of: a direct reply, a list of items, or a
// show-menu action. It is untrusted input and validated by the caller.
type Intent struct {
	Reply    string       `json:"reply,omitempty"`
	Items    []IntentItem `json:"items,omitempty"`
	ShowMenu bool         `json:"show_menu,omitempty"`
}

// IsEmpty reports whether the intent carries nothing actionable.
func (i Intent) IsEmpty() bool {
	return i.Reply == "" && len(i.Items) == 0 && !i.ShowMenu
}

// OrderSubmission is the payload sent to the order-registration backend.
type OrderSubmission struct {
	Code           string `json:"code"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	Amount         int    `json:"amount"`
	ProductSummary string `json:"product_summary"`
	PaymentMethod  string `json:"payment_method"`
}
