package config

import (
	"fmt"
	"time"
)

// DomainConfig holds all configurable engine rules and limits
type DomainConfig struct {
	// History
	HistoryLimit int

	// Graph constraints
	MaxNodesPerGraph int
	MaxEdgesPerGraph int

	// Clipboard and grouping
	PasteOffset  float64
	GroupPadding float64

	// Job lifecycle
	PollInterval      time.Duration
	MaxPollDuration   time.Duration
	MaxConcurrentJobs int
	GenerateTimeout   time.Duration

	// Subscriptions
	SubscriberBuffer int
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		HistoryLimit: 100,

		MaxNodesPerGraph: 2000,
		MaxEdgesPerGraph: 8000,

		PasteOffset:  24,
		GroupPadding: 32,

		PollInterval:      5 * time.Second,
		MaxPollDuration:   20 * time.Minute,
		MaxConcurrentJobs: 4,
		GenerateTimeout:   5 * time.Minute,

		SubscriberBuffer: 64,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Providers are slower under load
	config.PollInterval = 8 * time.Second
	config.MaxConcurrentJobs = 8

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	config.HistoryLimit = 500
	config.MaxNodesPerGraph = 10000
	config.MaxEdgesPerGraph = 40000
	config.PollInterval = 2 * time.Second

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.HistoryLimit < 1 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	if c.MaxNodesPerGraph < 1 || c.MaxEdgesPerGraph < 1 {
		return fmt.Errorf("graph limits must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.MaxPollDuration < c.PollInterval {
		return fmt.Errorf("max poll duration %s is shorter than the poll interval %s", c.MaxPollDuration, c.PollInterval)
	}
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("max concurrent jobs must be positive, got %d", c.MaxConcurrentJobs)
	}
	if c.SubscriberBuffer < 0 {
		return fmt.Errorf("subscriber buffer cannot be negative")
	}
	return nil
}
