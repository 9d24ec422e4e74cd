package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything loaded from config.env and the process environment.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	PayPalClientID     string `mapstructure:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `mapstructure:"PAYPAL_CLIENT_SECRET"`
	PayPalMode         string `mapstructure:"PAYPAL_MODE"`

	MidtransServerKey string `mapstructure:"MIDTRANS_SERVER_KEY"`
	MidtransEnv       string `mapstructure:"MIDTRANS_ENV"`

	SupabaseURL        string `mapstructure:"SUPABASE_URL"`
	SupabaseServiceKey string `mapstructure:"SUPABASE_SERVICE_KEY"`
	DownloadsBucket    string `mapstructure:"DOWNLOADS_BUCKET"`

	SiteURL  string `mapstructure:"SITE_URL"`
	SiteName string `mapstructure:"SITE_NAME"`
	Currency string `mapstructure:"CURRENCY"`

	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	AppEnv      string `mapstructure:"APP_ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	TrustClientSnapshots bool `mapstructure:"TRUST_CLIENT_SNAPSHOTS"`
}

var defaults = map[string]any{
	"DATABASE_URL":           "",
	"JWT_SECRET":             "",
	"STRIPE_SECRET_KEY":      "",
	"STRIPE_WEBHOOK_SECRET":  "",
	"PAYPAL_CLIENT_ID":       "",
	"PAYPAL_CLIENT_SECRET":   "",
	"PAYPAL_MODE":            "sandbox",
	"MIDTRANS_SERVER_KEY":    "",
	"MIDTRANS_ENV":           "sandbox",
	"SUPABASE_URL":           "",
	"SUPABASE_SERVICE_KEY":   "",
	"DOWNLOADS_BUCKET":       "downloads",
	"SITE_URL":               "http://localhost:8080",
	"SITE_NAME":              "Label",
	"CURRENCY":               "usd",
	"HTTP_ADDR":              ":8080",
	"APP_ENV":                "production",
	"LOG_LEVEL":              "info",
	"CORS_ORIGINS":           "",
	"TRUST_CLIENT_SNAPSHOTS": false,
}

// Required lists the variables the health endpoint reports on.
var Required = []string{
	"DATABASE_URL",
	"JWT_SECRET",
	"STRIPE_SECRET_KEY",
	"PAYPAL_CLIENT_ID",
	"PAYPAL_CLIENT_SECRET",
}

// Load reads config.env from dir (the working directory when empty) and
// overlays the environment. A missing file is fine.
func Load(dir string) (Config, error) {
	var config Config

	v := viper.New()
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Unmarshal only sees keys viper already knows about.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, err
		}
	}

	// DSN is what the first deployments used.
	if v.GetString("DATABASE_URL") == "" && v.GetString("DSN") != "" {
		v.Set("DATABASE_URL", v.GetString("DSN"))
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, err
	}

	config.Currency = strings.ToLower(config.Currency)
	config.SiteURL = strings.TrimRight(config.SiteURL, "/")
	return config, nil
}

// Present reports, for each required variable, whether it has a value.
func (c Config) Present() map[string]bool {
	values := map[string]string{
		"DATABASE_URL":         c.DatabaseURL,
		"JWT_SECRET":           c.JWTSecret,
		"STRIPE_SECRET_KEY":    c.StripeSecretKey,
		"PAYPAL_CLIENT_ID":     c.PayPalClientID,
		"PAYPAL_CLIENT_SECRET": c.PayPalClientSecret,
	}

	present := make(map[string]bool, len(Required))
	for _, key := range Required {
		present[key] = values[key] != ""
	}
	return present
}

// MissingRequired returns the required variables with no value.
func (c Config) MissingRequired() []string {
	var missing []string
	present := c.Present()
	for _, key := range Required {
		if !present[key] {
			missing = append(missing, key)
		}
	}
	return missing
}

// AllowedOrigins splits CORS_ORIGINS.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}
