package gateway

import (
	"os"
	"time"
)

// Config is everything the payment integration needs from the environment.
// It is loaded once in main and injected; no package reads these vars again.
type Config struct {
	BaseURL       string
	PublicKey     string
	RequestType   string
	RedirectURL   string
	WebhookSecret string
	Timeout       time.Duration
}

func LoadConfig() Config {
	timeout := 15 * time.Second
	if raw := os.Getenv("PAY_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			timeout = d
		}
	}

	return Config{
		BaseURL:       getEnv("PAY_BASE_URL", "https://checkout.marasoftpay.live"),
		PublicKey:     os.Getenv("PAY_PUBLIC_KEY"),
		RequestType:   os.Getenv("PAY_REQUEST_TYPE"),
		RedirectURL:   os.Getenv("PAY_REDIRECT_URL"),
		WebhookSecret: os.Getenv("PAY_WEBHOOK_SECRET"),
		Timeout:       timeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
