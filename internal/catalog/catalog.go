// Package catalog implements the HTTP clients for the inventory backend:
// product search, the global flavor/topping catalog, delivery cost lookup and
// order registration.
//
// The backend serves numbers inconsistently (prices as "14.000", counts as
// strings), so numeric fields are decoded through a tolerant type before use.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mundohelados/orderbot/internal/models"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 10 * time.Second

// Searcher is the product lookup capability the engine consumes.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.Product, error)
}

// OptionsLister returns the global flavor/topping catalog, used when a
// product does not embed its own lists.
type OptionsLister interface {
	Options(ctx context.Context) (Options, error)
}

// Submitter registers confirmed orders with the backend.
type Submitter interface {
	SubmitOrder(ctx context.Context, sub models.OrderSubmission) error
}

// Options is the global customization catalog.
type Options struct {
	Flavors  []string `json:"flavors"`
	Toppings []string `json:"toppings"`
}

// Client talks to the inventory/order backend over HTTP.
type Client struct {
	base             string
	searchPath       string
	optionsPath      string
	orderPath        string
	deliveryCostPath string
	httpClient       *http.Client
}

// Opts holds configuration for the catalog client.
type Opts struct {
	SearchPath       string
	OptionsPath      string
	OrderPath        string
	DeliveryCostPath string
	HTTPClient       *http.Client
}

// Option configures the catalog client.
type Option func(*Opts)

// WithPaths overrides the endpoint paths.
func WithPaths(search, options, order, deliveryCost string) Option {
	return func(o *Opts) {
		o.SearchPath = search
		o.OptionsPath = options
		o.OrderPath = order
		o.DeliveryCostPath = deliveryCost
	}
}

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = hc
	}
}

// NewClient creates a catalog client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	cfg := Opts{
		SearchPath:       "/products/search",
		OptionsPath:      "/catalog/options",
		OrderPath:        "/orders",
		DeliveryCostPath: "/delivery/cost",
		HTTPClient:       &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		base:             strings.TrimRight(baseURL, "/"),
		searchPath:       cfg.SearchPath,
		optionsPath:      cfg.OptionsPath,
		orderPath:        cfg.OrderPath,
		deliveryCostPath: cfg.DeliveryCostPath,
		httpClient:       cfg.HTTPClient,
	}
}

// flexInt decodes a JSON number or a numeric string, tolerating thousands
// separators ("14.000" means fourteen thousand pesos).
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, s)
		if digits == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return fmt.Errorf("invalid numeric string %q: %w", s, err)
		}
		*f = flexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(int(n))
	return nil
}

// productDTO is the backend's wire shape for a product.
type productDTO struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Price        flexInt  `json:"price"`
	Description  string   `json:"description"`
	FlavorCount  flexInt  `json:"flavor_count"`
	ToppingCount flexInt  `json:"topping_count"`
	Flavors      []string `json:"flavors"`
	Toppings     []string `json:"toppings"`
}

func (d productDTO) toModel() models.Product {
	return models.Product{
		Code:         d.Code,
		Name:         d.Name,
		Price:        int(d.Price),
		Description:  d.Description,
		FlavorCount:  int(d.FlavorCount),
		ToppingCount: int(d.ToppingCount),
		Flavors:      d.Flavors,
		Toppings:     d.Toppings,
	}
}

// searchResponse tolerates both shapes the backend produces: a match list or
// a single bare product object.
type searchResponse struct {
	Matches []productDTO `json:"matches"`
	productDTO
}

// Search queries the inventory backend for products matching the query.
func (c *Client) Search(ctx context.Context, query string) ([]models.Product, error) {
	endpoint := c.base + c.searchPath + "?q=" + url.QueryEscape(query)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("product search failed: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("product search returned malformed JSON: %w", err)
	}

	var products []models.Product
	if len(resp.Matches) > 0 {
		for _, dto := range resp.Matches {
			products = append(products, dto.toModel())
		}
	} else if resp.Code != "" {
		products = append(products, resp.productDTO.toModel())
	}
	slog.Debug("Catalog search completed", "query", query, "matches", len(products))
	return products, nil
}

// Options fetches the global flavor/topping catalog.
func (c *Client) Options(ctx context.Context) (Options, error) {
	body, err := c.get(ctx, c.base+c.optionsPath)
	if err != nil {
		return Options{}, fmt.Errorf("options fetch failed: %w", err)
	}
	var opts Options
	if err := json.Unmarshal(body, &opts); err != nil {
		return Options{}, fmt.Errorf("options returned malformed JSON: %w", err)
	}
	return opts, nil
}

// DeliveryCost asks the backend for the delivery cost to an address. Callers
// treat an error as "cost unknown" and fall back to a placeholder.
func (c *Client) DeliveryCost(ctx context.Context, address string) (int, error) {
	endpoint := c.base + c.deliveryCostPath + "?q=" + url.QueryEscape(address)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, fmt.Errorf("delivery cost lookup failed: %w", err)
	}
	var resp struct {
		Cost flexInt `json:"cost"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("delivery cost returned malformed JSON: %w", err)
	}
	return int(resp.Cost), nil
}

// SubmitOrder registers a confirmed order. A non-2xx status is an error; the
// conversation layer degrades it to an apology plus an operator alert.
func (c *Client) SubmitOrder(ctx context.Context, sub models.OrderSubmission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+c.orderPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("order submission failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", models.ErrSubmissionRejected, resp.StatusCode)
	}
	slog.Info("Order submitted to backend", "code", sub.Code, "amount", sub.Amount)
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
