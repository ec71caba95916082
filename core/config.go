package core

import (
	"fmt"
	"strings"
	"time"
)

type RegistryConfig struct {
	ContractName     string `koanf:"contract_name" mapstructure:"contract_name"`
	DefaultRate      string `koanf:"default_rate" mapstructure:"default_rate"`
	SettlementSymbol string `koanf:"settlement_symbol" mapstructure:"settlement_symbol"`
}

type MarketplaceConfig struct {
	ContractName string `koanf:"contract_name" mapstructure:"contract_name"`
}

type OutboxConfig struct {
	BatchSize             int `koanf:"batch_size" mapstructure:"batch_size"`
	MaxAttempts           int `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffSeconds int `koanf:"initial_backoff_seconds" mapstructure:"initial_backoff_seconds"`
	MaxBackoffSeconds     int `koanf:"max_backoff_seconds" mapstructure:"max_backoff_seconds"`
}

// DispatcherConfig converts the outbox section into dispatcher settings.
func (c OutboxConfig) DispatcherConfig() EventDispatcherConfig {
	return EventDispatcherConfig{
		BatchSize:      c.BatchSize,
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: time.Duration(c.InitialBackoffSeconds) * time.Second,
		MaxBackoff:     time.Duration(c.MaxBackoffSeconds) * time.Second,
	}
}

type Config struct {
	ServiceName string            `koanf:"service_name" mapstructure:"service_name"`
	Registry    RegistryConfig    `koanf:"registry" mapstructure:"registry"`
	Marketplace MarketplaceConfig `koanf:"marketplace" mapstructure:"marketplace"`
	Outbox      OutboxConfig      `koanf:"outbox" mapstructure:"outbox"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "credits",
		Registry: RegistryConfig{
			ContractName:     DefaultRegistryContract,
			DefaultRate:      DefaultRate,
			SettlementSymbol: DefaultSettlementSymbol,
		},
		Marketplace: MarketplaceConfig{
			ContractName: DefaultMarketplaceContract,
		},
		Outbox: OutboxConfig{
			BatchSize:             50,
			MaxAttempts:           5,
			InitialBackoffSeconds: 2,
			MaxBackoffSeconds:     300,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Registry.ContractName) == "" {
		return fmt.Errorf("core: registry.contract_name is required")
	}
	if strings.TrimSpace(c.Marketplace.ContractName) == "" {
		return fmt.Errorf("core: marketplace.contract_name is required")
	}
	if c.Registry.ContractName == c.Marketplace.ContractName {
		return fmt.Errorf("core: registry and marketplace contract names must differ")
	}
	if strings.TrimSpace(c.Registry.SettlementSymbol) == "" {
		return fmt.Errorf("core: registry.settlement_symbol is required")
	}
	if _, err := parseAmount(c.Registry.DefaultRate); err != nil {
		return fmt.Errorf("core: registry.default_rate is invalid: %w", err)
	}
	if c.Outbox.BatchSize < 0 || c.Outbox.MaxAttempts < 0 {
		return fmt.Errorf("core: outbox settings must not be negative")
	}
	return nil
}
