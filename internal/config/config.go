package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {

	// Application configuration
	AppConfig struct {
		ServiceName string `envconfig:"SHOPX_SERVICE_NAME"`
		Port        int    `envconfig:"SHOPX_PORT"`
		Address     string `envconfig:"SHOPX_ADDRESS"`
	}

	// RabbitMQ configuration
	RabbitMQConfig struct {
		RabbitMQUser    string `envconfig:"RABBITMQ_USER"`
		RabbitMQPass    string `envconfig:"RABBITMQ_PASSWORD"`
		RabbitMQAddress string `envconfig:"RABBITMQ_ADDRESS"`
		RabbitMQPort    int    `envconfig:"RABBITMQ_PORT"`
		RequestTimeout  int    `envconfig:"RABBITMQ_REQUEST_TIMEOUT"`
		MaxAttempts     int    `envconfig:"RABBITMQ_MAX_ATTEMPTS"`
		PrefetchCount   int    `envconfig:"RABBITMQ_PREFETCH_COUNT"`
	}

	// Redis configuration, used by the payment service to hold
	// short lived one time payment codes.
	RedisConfig struct {
		RedisAddress  string `envconfig:"REDIS_ADDRESS"`
		RedisPassword string `envconfig:"REDIS_PASSWORD"`
		RedisDB       int    `envconfig:"REDIS_DB"`
		CodeTTL       int    `envconfig:"PAYMENT_CODE_TTL_MINUTES"`
	}

	// Outward facing links embedded in notification payloads
	LinkConfig struct {
		OrderLink     string `envconfig:"SHOPX_ORDER_LINK"`
		SupportLink   string `envconfig:"SHOPX_SUPPORT_LINK"`
		ReceiptLink   string `envconfig:"SHOPX_RECEIPT_LINK"`
		RetryLink     string `envconfig:"SHOPX_RETRY_PAYMENT_LINK"`
		InventoryLink string `envconfig:"SHOPX_INVENTORY_LINK"`
	}
}

// The LoadConfig function loads the env file specified and returns
// a valid configuration object ready for use
func LoadConfig() (*Config, error) {
	cfg := Config{}

	// 1. Attempt to load .env file.
	// We ignore the error so it doesn't crash if the file is missing.
	_ = godotenv.Load()

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("Failed to load environment variables: %v", err)
	}

	return &cfg, nil
}

// AMQPURL assembles the broker URI from the individual RabbitMQ settings.
func (c *Config) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQConfig.RabbitMQUser,
		c.RabbitMQConfig.RabbitMQPass,
		c.RabbitMQConfig.RabbitMQAddress,
		c.RabbitMQConfig.RabbitMQPort,
	)
}

// RequestTimeout returns the configured request/reply deadline,
// defaulting to the 30 second reply queue TTL.
func (c *Config) RequestTimeout() time.Duration {
	if c.RabbitMQConfig.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RabbitMQConfig.RequestTimeout) * time.Second
}

// PaymentCodeTTL returns the lifetime of one time payment codes,
// defaulting to 50 minutes.
func (c *Config) PaymentCodeTTL() time.Duration {
	if c.RedisConfig.CodeTTL <= 0 {
		return 50 * time.Minute
	}
	return time.Duration(c.RedisConfig.CodeTTL) * time.Minute
}
