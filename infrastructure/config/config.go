package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	domainconfig "github.com/realaman90/koda-sub002/domain/config"
)

// Config holds all application configuration. Values come from an
// optional YAML file (CONFIG_FILE) and are then overridden by environment
// variables.
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"serverAddress" validate:"required"`
	Environment   string `yaml:"environment" validate:"oneof=development staging production test"`

	// Storage
	StorageBackend string        `yaml:"storageBackend" validate:"oneof=memory dynamodb"`
	AWSRegion      string        `yaml:"awsRegion"`
	DynamoDBTable  string        `yaml:"dynamoDBTable" validate:"required_if=StorageBackend dynamodb"`
	AssetBucket    string        `yaml:"assetBucket"`
	AssetBaseURL   string        `yaml:"assetBaseURL" validate:"omitempty,url"`
	PresignExpiry  time.Duration `yaml:"presignExpiry" validate:"min=0"`

	// Messaging
	EventBusName string `yaml:"eventBusName"`

	// Generation providers
	ProviderBaseURL  string        `yaml:"providerBaseURL" validate:"omitempty,url"`
	ProviderAPIKey   string        `yaml:"providerAPIKey"`
	ProviderTimeout  time.Duration `yaml:"providerTimeout" validate:"min=0"`
	OpenAIAPIKey     string        `yaml:"openAIAPIKey"`
	OpenAIModel      string        `yaml:"openAIModel"`
	CapabilitiesFile string        `yaml:"capabilitiesFile"`

	// Logging
	LogLevel string `yaml:"logLevel" validate:"oneof=debug info warn error"`

	// Authentication
	JWTSecret string `yaml:"jwtSecret" validate:"required_if=Environment production"`
	JWTIssuer string `yaml:"jwtIssuer"`

	// Feature flags
	EnableMetrics bool     `yaml:"enableMetrics"`
	EnableTracing bool     `yaml:"enableTracing"`
	EnableCORS    bool     `yaml:"enableCORS"`
	CORSOrigins   []string `yaml:"corsOrigins"`

	// Tracing
	TracingEndpoint string  `yaml:"tracingEndpoint"`
	TraceSampleRate float64 `yaml:"traceSampleRate" validate:"min=0,max=1"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		ServerAddress:   ":8080",
		Environment:     "development",
		StorageBackend:  "memory",
		AWSRegion:       "us-west-2",
		DynamoDBTable:   "koda-graphs",
		PresignExpiry:   15 * time.Minute,
		EventBusName:    "koda-events",
		ProviderTimeout: 2 * time.Minute,
		OpenAIModel:     "gpt-4o-mini",
		LogLevel:        "info",
		JWTIssuer:       "koda",
		EnableCORS:      true,
		CORSOrigins:     []string{"*"},
		TracingEndpoint: "localhost:4317",
		TraceSampleRate: 1,
	}
}

// LoadConfig loads configuration from CONFIG_FILE and the environment
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.StorageBackend = getEnv("STORAGE_BACKEND", c.StorageBackend)
	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.AssetBucket = getEnv("ASSET_BUCKET", c.AssetBucket)
	c.AssetBaseURL = getEnv("ASSET_BASE_URL", c.AssetBaseURL)
	c.PresignExpiry = getEnvDuration("PRESIGN_EXPIRY", c.PresignExpiry)

	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.ProviderBaseURL = getEnv("PROVIDER_BASE_URL", c.ProviderBaseURL)
	c.ProviderAPIKey = getEnv("PROVIDER_API_KEY", c.ProviderAPIKey)
	c.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", c.ProviderTimeout)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = getEnv("OPENAI_MODEL", c.OpenAIModel)
	c.CapabilitiesFile = getEnv("CAPABILITIES_FILE", c.CapabilitiesFile)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = strings.Split(origins, ",")
	}
	c.TracingEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.TracingEndpoint)
	c.TraceSampleRate = getEnvFloat("TRACE_SAMPLE_RATE", c.TraceSampleRate)
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Domain returns the engine configuration preset for the environment
func (c *Config) Domain() *domainconfig.DomainConfig {
	return domainconfig.LoadDomainConfig(c.Environment)
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
