/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the relay service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                  string `mapstructure:"SERVER_PORT"`
	DatabaseURL                 string `mapstructure:"DATABASE_URL"`
	RedisURL                    string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix        string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                 string `mapstructure:"RABBITMQ_URL"`
	WOSAPIBaseURL               string `mapstructure:"WOS_API_BASE_URL"`
	WOSAPIToken                 string `mapstructure:"WOS_API_TOKEN"`
	WOSAPISecret                string `mapstructure:"WOS_API_SECRET"`
	TwilioAccountSID            string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken             string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioMessagingServiceSID   string `mapstructure:"TWILIO_MESSAGING_SERVICE_SID"`
	ClaimBaseURL                string `mapstructure:"CLAIM_BASE_URL"`
	NetworkFeeBTC               string `mapstructure:"NETWORK_FEE_BTC"`
	ReconcileIntervalSeconds    int    `mapstructure:"RECONCILE_INTERVAL_SECONDS"`
	ReconcilePageLimit          int    `mapstructure:"RECONCILE_PAGE_LIMIT"`
	InvoiceExpirySeconds        int    `mapstructure:"INVOICE_EXPIRY_SECONDS"`
	ClaimRateLimit              int    `mapstructure:"CLAIM_RATE_LIMIT"`
	ClaimRateLimitWindowSeconds int    `mapstructure:"CLAIM_RATE_LIMIT_WINDOW_SECONDS"`
	InternalAPIKey              string `mapstructure:"INTERNAL_API_KEY"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "5555")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "lnsms:rate_limit")
	viper.SetDefault("WOS_API_BASE_URL", "https://www.livingroomofsatoshi.com")
	viper.SetDefault("CLAIM_BASE_URL", "https://lnsms.ga")
	viper.SetDefault("NETWORK_FEE_BTC", "0.00001")
	viper.SetDefault("RECONCILE_INTERVAL_SECONDS", 2)
	viper.SetDefault("RECONCILE_PAGE_LIMIT", 100)
	viper.SetDefault("INVOICE_EXPIRY_SECONDS", 3600)
	viper.SetDefault("CLAIM_RATE_LIMIT", 20)
	viper.SetDefault("CLAIM_RATE_LIMIT_WINDOW_SECONDS", 300)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("WOS_API_BASE_URL")
	_ = viper.BindEnv("WOS_API_TOKEN")
	_ = viper.BindEnv("WOS_API_SECRET")
	_ = viper.BindEnv("TWILIO_ACCOUNT_SID")
	_ = viper.BindEnv("TWILIO_AUTH_TOKEN")
	_ = viper.BindEnv("TWILIO_MESSAGING_SERVICE_SID")
	_ = viper.BindEnv("CLAIM_BASE_URL")
	_ = viper.BindEnv("NETWORK_FEE_BTC")
	_ = viper.BindEnv("RECONCILE_INTERVAL_SECONDS")
	_ = viper.BindEnv("RECONCILE_PAGE_LIMIT")
	_ = viper.BindEnv("INVOICE_EXPIRY_SECONDS")
	_ = viper.BindEnv("CLAIM_RATE_LIMIT")
	_ = viper.BindEnv("CLAIM_RATE_LIMIT_WINDOW_SECONDS")
	_ = viper.BindEnv("INTERNAL_API_KEY")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	// Hosting platforms commonly inject the listen port as PORT.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "lnsms:rate_limit"
	}
	config.ClaimBaseURL = strings.TrimSuffix(strings.TrimSpace(config.ClaimBaseURL), "/")

	if config.ReconcileIntervalSeconds <= 0 {
		config.ReconcileIntervalSeconds = 2
	}
	if config.ReconcilePageLimit <= 0 {
		config.ReconcilePageLimit = 100
	}
	if config.InvoiceExpirySeconds <= 0 {
		config.InvoiceExpirySeconds = 3600
	}
	if config.ClaimRateLimit <= 0 {
		config.ClaimRateLimit = 20
	}
	if config.ClaimRateLimitWindowSeconds <= 0 {
		config.ClaimRateLimitWindowSeconds = 300
	}

	return
}
