package cart

import (
	"strings"
	"testing"

	"github.com/mundohelados/orderbot/internal/models"
)

func TestAddMergesByCode(t *testing.T) {
	order := models.Order{Items: []models.CartItem{}}
	Add(&order, models.CartItem{Code: "CB-01", Name: "Copa Brownie", Price: 14000, Quantity: 2})
	Add(&order, models.CartItem{Code: "CB-01", Name: "Copa Brownie", Price: 14000, Quantity: 3})

	if len(order.Items) != 1 {
		t.Fatalf("expected one merged line, got %d", len(order.Items))
	}
	if order.Items[0].Quantity != 5 {
		t.Errorf("merged quantity = %d, want 5", order.Items[0].Quantity)
	}
}

func TestAddKeepsDistinctCodes(t *testing.T) {
	order := models.Order{}
	Add(&order, models.CartItem{Code: "A", Quantity: 1, Price: 1000})
	Add(&order, models.CartItem{Code: "B", Quantity: 1, Price: 2000})
	if len(order.Items) != 2 {
		t.Fatalf("expected two lines, got %d", len(order.Items))
	}
}

func TestAddSelectionOverwriteRules(t *testing.T) {
	order := models.Order{}
	Add(&order, models.CartItem{Code: "A", Quantity: 1, Flavors: []string{"chocolate"}, Toppings: []string{"oreo"}})

	// Empty selections on a re-add must not clobber existing ones.
	Add(&order, models.CartItem{Code: "A", Quantity: 1})
	if len(order.Items[0].Flavors) != 1 || order.Items[0].Flavors[0] != "chocolate" {
		t.Errorf("empty flavors overwrote existing: %v", order.Items[0].Flavors)
	}

	// Non-empty selections replace.
	Add(&order, models.CartItem{Code: "A", Quantity: 1, Flavors: []string{"vanilla"}})
	if len(order.Items[0].Flavors) != 1 || order.Items[0].Flavors[0] != "vanilla" {
		t.Errorf("non-empty flavors did not replace: %v", order.Items[0].Flavors)
	}
	if order.Items[0].Toppings[0] != "oreo" {
		t.Errorf("toppings should be untouched: %v", order.Items[0].Toppings)
	}
	if order.Items[0].Quantity != 3 {
		t.Errorf("quantity = %d, want 3", order.Items[0].Quantity)
	}
}

func TestTotals(t *testing.T) {
	order := models.Order{
		Items: []models.CartItem{
			{Code: "A", Price: 14000, Quantity: 2},
			{Code: "B", Price: 5000, Quantity: 1},
		},
		DeliveryCost: 3000,
	}
	if got := Subtotal(order); got != 33000 {
		t.Errorf("Subtotal = %d, want 33000", got)
	}
	if got := Total(order); got != 36000 {
		t.Errorf("Total = %d, want 36000", got)
	}
}

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "$0"},
		{500, "$500"},
		{14000, "$14.000"},
		{1234567, "$1.234.567"},
		{-3000, "-$3.000"},
	}
	for _, c := range cases {
		if got := FormatMoney(c.in); got != c.want {
			t.Errorf("FormatMoney(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSummaryRendersDetails(t *testing.T) {
	order := models.Order{
		Items: []models.CartItem{
			{Code: "A", Name: "Copa Brownie", Price: 14000, Quantity: 2, Flavors: []string{"chocolate"}},
		},
		Name:          "Dalis",
		Phone:         "3004864177",
		Address:       "CR 2 # 28A 49",
		PaymentMethod: "transfer",
	}
	got := Summary(order)
	for _, want := range []string{"Copa Brownie", "$28.000", "chocolate", "Dalis", "3004864177", "transfer"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestProductSummary(t *testing.T) {
	order := models.Order{
		Items: []models.CartItem{
			{Code: "A", Name: "Copa Brownie", Quantity: 2, Flavors: []string{"chocolate", "vanilla"}},
			{Code: "B", Name: "Fruit Salad", Quantity: 1},
		},
		Notes: []string{"no papaya"},
	}
	got := ProductSummary(order)
	want := "Copa Brownie (flavors: chocolate, vanilla) x2 | Fruit Salad x1 (notes: no papaya)"
	if got != want {
		t.Errorf("ProductSummary = %q, want %q", got, want)
	}
}
