// Package config loads the bot configuration from a YAML file with
// environment variable overrides for deployment-specific values.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "5s" or
// "200ms" instead of nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// D returns the wrapped time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// Config holds all recognized configuration keys for the order bot.
type Config struct {
	// StoreName is the business name used in customer-facing messages.
	StoreName string `yaml:"store_name"`

	// LocationInfo is the address/hours blurb sent for the location option.
	LocationInfo string `yaml:"location_info"`

	// PaymentInstructions is the fallback text sent for transfer payments
	// when no QR image is available.
	PaymentInstructions string `yaml:"payment_instructions"`

	// PaymentQRPath is an optional image shown for transfer payments.
	PaymentQRPath string `yaml:"payment_qr_path"`

	// MenuImagePaths are optional menu images sent with the product prompt.
	MenuImagePaths []string `yaml:"menu_image_paths"`

	// GreetingKeywords reset the conversation from any phase (substring match).
	GreetingKeywords []string `yaml:"greeting_keywords"`

	// MenuKeywords force a return to the main menu (substring match).
	MenuKeywords []string `yaml:"menu_keywords"`

	// PayKeywords short-circuit into the cart summary / checkout.
	PayKeywords []string `yaml:"pay_keywords"`

	// OperatorIDs are conversation identifiers allowed to run admin commands
	// and addressed by escalation notices.
	OperatorIDs []string `yaml:"operator_ids"`

	// TakeoverKeyword mutes a conversation for human handling (operator only).
	TakeoverKeyword string `yaml:"takeover_keyword"`

	// ResumeKeyword unmutes a conversation (operator only).
	ResumeKeyword string `yaml:"resume_keyword"`

	// InactivityThreshold evicts sessions idle longer than this.
	InactivityThreshold Duration `yaml:"inactivity_threshold"`

	// MessageCacheWindow bounds the duplicate message-ID cache.
	MessageCacheWindow Duration `yaml:"message_cache_window"`

	// ContentDedupWindow bounds the same-text double-send suppression.
	ContentDedupWindow Duration `yaml:"content_dedup_window"`

	// TypingDelay is the artificial pause before each outbound reply.
	TypingDelay Duration `yaml:"typing_delay"`

	// ErrorThreshold escalates after this many consecutive validation errors.
	ErrorThreshold int `yaml:"error_threshold"`

	// AIFailureThreshold escalates after this many consecutive LLM failures.
	AIFailureThreshold int `yaml:"ai_failure_threshold"`

	// APIBaseURL is the inventory/order backend base URL.
	APIBaseURL string `yaml:"api_base_url"`

	// SearchPath, OptionsPath, OrderPath and DeliveryCostPath are endpoint
	// paths appended to APIBaseURL.
	SearchPath       string `yaml:"search_path"`
	OptionsPath      string `yaml:"options_path"`
	OrderPath        string `yaml:"order_path"`
	DeliveryCostPath string `yaml:"delivery_cost_path"`

	// OpenAIModel selects the chat model for intent extraction.
	OpenAIModel string `yaml:"openai_model"`

	// IntentTimeout bounds a single intent-extraction call.
	IntentTimeout Duration `yaml:"intent_timeout"`

	// IntentRetries is the number of retries after a failed extraction call.
	IntentRetries int `yaml:"intent_retries"`
}

// Default returns a Config with sensible defaults. A YAML file and environment
// overrides are layered on top.
func Default() Config {
	return Config{
		StoreName:           "Mundo Helados",
		LocationInfo:        "📍 Cra 7h n 34 b 08\n🕐 Open every day from 2:00 PM to 10:00 PM",
		PaymentInstructions: "Please transfer to Nequi 3004864177 and send the receipt.",
		// Matched as substrings; keep these long enough not to hide inside
		// product names.
		GreetingKeywords:    []string{"hola", "hello", "buenas", "good morning", "good afternoon"},
		MenuKeywords:        []string{"menu", "start over", "inicio"},
		PayKeywords:         []string{"pay", "cart", "pagar", "carrito"},
		TakeoverKeyword:     "agent takeover",
		ResumeKeyword:       "bot resume",
		InactivityThreshold: Duration(time.Hour),
		MessageCacheWindow:  Duration(5 * time.Minute),
		ContentDedupWindow:  Duration(6 * time.Second),
		TypingDelay:         Duration(1500 * time.Millisecond),
		ErrorThreshold:      3,
		AIFailureThreshold:  2,
		SearchPath:          "/products/search",
		OptionsPath:         "/catalog/options",
		OrderPath:           "/orders",
		DeliveryCostPath:    "/delivery/cost",
		OpenAIModel:         "gpt-4o-mini",
		IntentTimeout:       Duration(20 * time.Second),
		IntentRetries:       2,
	}
}

// Load reads the YAML file at path (optional) over the defaults, then applies
// environment overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			slog.Debug("Config file not found, using defaults", "path", path)
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			slog.Debug("Config file loaded", "path", path)
		}
	}

	cfg.applyEnv()

	if cfg.APIBaseURL == "" {
		return cfg, fmt.Errorf("api_base_url is required (set ORDERBOT_API_BASE_URL or config file)")
	}
	return cfg, nil
}

// applyEnv layers environment variables over the current values.
func (c *Config) applyEnv() {
	if v := os.Getenv("ORDERBOT_API_BASE_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("ORDERBOT_OPENAI_MODEL"); v != "" {
		c.OpenAIModel = v
	}
	if v := os.Getenv("ORDERBOT_OPERATOR_IDS"); v != "" {
		c.OperatorIDs = splitAndTrim(v)
	}
	if v := os.Getenv("ORDERBOT_STORE_NAME"); v != "" {
		c.StoreName = v
	}
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
