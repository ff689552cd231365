package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mundohelados/orderbot/internal/models"
)

func TestSearchDecodesMatchList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "fresa" {
			t.Errorf("expected query fresa, got %q", got)
		}
		w.Write([]byte(`{"matches":[
			{"code":"H1","name":"Helado fresa","price":"14.000","flavor_count":2,"topping_count":"1"},
			{"code":"H2","name":"Malteada fresa","price":18000}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	products, err := c.Search(context.Background(), "fresa")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].Price != 14000 {
		t.Errorf("expected string price 14.000 to decode as 14000, got %d", products[0].Price)
	}
	if products[0].FlavorCount != 2 || products[0].ToppingCount != 1 {
		t.Errorf("counts decoded wrong: %d/%d", products[0].FlavorCount, products[0].ToppingCount)
	}
	if products[1].Price != 18000 {
		t.Errorf("expected numeric price to decode as 18000, got %d", products[1].Price)
	}
}

func TestSearchDecodesSingleProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"H9","name":"Cono sencillo","price":"5.000"}`))
	}))
	defer srv.Close()

	products, err := NewClient(srv.URL).Search(context.Background(), "cono")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(products) != 1 || products[0].Code != "H9" || products[0].Price != 5000 {
		t.Fatalf("unexpected result: %+v", products)
	}
}

func TestSearchEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"matches":[]}`))
	}))
	defer srv.Close()

	products, err := NewClient(srv.URL).Search(context.Background(), "algo raro")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("expected no products, got %d", len(products))
	}
}

func TestSearchBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Search(context.Background(), "fresa"); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/catalog/options" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"flavors":["chocolate","fresa","vainilla"],"toppings":["oreo","chips"]}`))
	}))
	defer srv.Close()

	opts, err := NewClient(srv.URL).Options(context.Background())
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if len(opts.Flavors) != 3 || len(opts.Toppings) != 2 {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestDeliveryCost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "calle 10 #4-20" {
			t.Errorf("unexpected address %q", got)
		}
		w.Write([]byte(`{"cost":"3.000"}`))
	}))
	defer srv.Close()

	cost, err := NewClient(srv.URL).DeliveryCost(context.Background(), "calle 10 #4-20")
	if err != nil {
		t.Fatalf("DeliveryCost failed: %v", err)
	}
	if cost != 3000 {
		t.Errorf("expected 3000, got %d", cost)
	}
}

func TestSubmitOrder(t *testing.T) {
	var received models.OrderSubmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode submission: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sub := models.OrderSubmission{
		Code:           "a1b2c3d4",
		Name:           "Laura",
		Phone:          "3001234567",
		Address:        "calle 10 #4-20",
		Amount:         33000,
		ProductSummary: "Helado fresa x2",
		PaymentMethod:  "efectivo",
	}
	if err := NewClient(srv.URL).SubmitOrder(context.Background(), sub); err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if received.Code != "a1b2c3d4" || received.Amount != 33000 {
		t.Errorf("backend received wrong payload: %+v", received)
	}
}

func TestSubmitOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).SubmitOrder(context.Background(), models.OrderSubmission{Code: "x"})
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if !errors.Is(err, models.ErrSubmissionRejected) {
		t.Errorf("expected ErrSubmissionRejected, got %v", err)
	}
}

func TestFlexIntVariants(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{`"14.000"`, 14000},
		{`"1.250.000"`, 1250000},
		{`"7000"`, 7000},
		{`14000`, 14000},
		{`14000.0`, 14000},
		{`null`, 0},
		{`""`, 0},
	}
	for _, tc := range cases {
		var f flexInt
		if err := json.Unmarshal([]byte(tc.in), &f); err != nil {
			t.Errorf("flexInt(%s) failed: %v", tc.in, err)
			continue
		}
		if int(f) != tc.want {
			t.Errorf("flexInt(%s) = %d, want %d", tc.in, f, tc.want)
		}
	}
}
