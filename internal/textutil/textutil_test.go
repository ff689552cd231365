package textutil

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Hola  ", "hola"},
		{"Menú", "menu"},
		{"HELADO de Limón", "helado de limon"},
		{"", ""},
		{"número 5", "numero 5"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("+57 (300) 486-4177"); got != "573004864177" {
		t.Errorf("Digits = %q", got)
	}
	if got := Digits("no digits"); got != "" {
		t.Errorf("Digits on letters = %q, want empty", got)
	}
}

func TestContainsAny(t *testing.T) {
	kws := []string{"hola", "buenas"}
	if !ContainsAny("hola, quiero un helado", kws) {
		t.Error("expected greeting substring to match")
	}
	if ContainsAny("quiero un helado", kws) {
		t.Error("unexpected match without greeting")
	}
	if ContainsAny("anything", nil) {
		t.Error("nil keyword list must never match")
	}
}

func TestBestMatch(t *testing.T) {
	opts := []string{"transfer", "cash"}
	cases := []struct {
		in   string
		want string
	}{
		{"transfer", "transfer"},
		{"transfre", "transfer"}, // transposition, distance 2
		{"CASH", "cash"},
		{"csh", "cash"},
		{"paypal", ""}, // nothing within distance 2
		{"", ""},
	}
	for _, c := range cases {
		if got := BestMatch(c.in, opts, 2); got != c.want {
			t.Errorf("BestMatch(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
