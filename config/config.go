package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/human-pages-ai/hirewire/client"
	"github.com/human-pages-ai/hirewire/lifecycle"
	"github.com/human-pages-ai/hirewire/poll"
)

// DefaultWebhookAddr is where the webhook server listens when
// HP_WEBHOOK_ADDR is unset.
const DefaultWebhookAddr = ":8292"

// Config carries every setting the engine reads from the environment.
// Zero values mean "not configured" for the optional capabilities: an
// empty WebhookSecret selects poll mode, an empty PaymentAddress removes
// the payment fallback recipient.
type Config struct {
	// APIKey authenticates against the Human Pages API (HP_API_KEY).
	// Empty means the engine registers a fresh agent on first run.
	APIKey string

	// BaseURL of the Human Pages API (HP_BASE_URL).
	BaseURL string

	// WebhookSecret enables push delivery when set (HP_WEBHOOK_SECRET).
	WebhookSecret string

	// WebhookAddr is the listen address for the webhook server
	// (HP_WEBHOOK_ADDR).
	WebhookAddr string

	// PollInterval between status checks in poll mode (HP_POLL_INTERVAL,
	// Go duration syntax).
	PollInterval time.Duration

	// WaitTimeout bounds each waiting lifecycle phase (HP_WAIT_TIMEOUT,
	// Go duration syntax).
	WaitTimeout time.Duration

	// PaymentAddress is the fallback USDC recipient when the human profile
	// carries no wallet (HP_PAYMENT_ADDRESS).
	PaymentAddress string

	// Network names the chain payments settle on (HP_NETWORK).
	Network string

	// OpenAIAPIKey and AnthropicAPIKey select an LLM replier when set.
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

// Load reads the configuration, merging a .env file when one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		APIKey:          os.Getenv("HP_API_KEY"),
		BaseURL:         getenv("HP_BASE_URL", client.DefaultBaseURL),
		WebhookSecret:   os.Getenv("HP_WEBHOOK_SECRET"),
		WebhookAddr:     getenv("HP_WEBHOOK_ADDR", DefaultWebhookAddr),
		PaymentAddress:  os.Getenv("HP_PAYMENT_ADDRESS"),
		Network:         getenv("HP_NETWORK", "base"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
	}

	var err error
	if cfg.PollInterval, err = duration("HP_POLL_INTERVAL", poll.DefaultInterval); err != nil {
		return Config{}, err
	}
	if cfg.WaitTimeout, err = duration("HP_WAIT_TIMEOUT", lifecycle.DefaultWaitTimeout); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
