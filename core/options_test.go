package core

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil {
		t.Fatalf("expected default error factory")
	}
	if deps.ErrorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if deps.ConfigProvider == nil {
		t.Fatalf("expected default config provider")
	}
	if deps.OptionsResolver == nil {
		t.Fatalf("expected default options resolver")
	}
	cfg := svc.Config()
	if cfg.ServiceName != "credits" {
		t.Fatalf("expected default service_name=credits, got %q", cfg.ServiceName)
	}
	if cfg.Registry.ContractName != DefaultRegistryContract || cfg.Marketplace.ContractName != DefaultMarketplaceContract {
		t.Fatalf("unexpected default contract names: %+v", cfg)
	}
	if svc.Registry().Name() != DefaultRegistryContract || svc.Marketplace().Name() != DefaultMarketplaceContract {
		t.Fatalf("expected contracts to use configured names")
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	store := NewMemoryStore()
	invalidator := &recordingRateInvalidator{}
	resolvedCfg := DefaultConfig()
	resolvedCfg.ServiceName = "resolved"
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	optionsResolver := &fixedOptionsResolver{cfg: resolvedCfg}

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorFactory(customFactory),
		WithErrorMapper(customMapper),
		WithStore(store),
		WithRateInvalidator(invalidator),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolved := deps.LoggerProvider.GetLogger("credits.override"); resolved != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.Store != store {
		t.Fatalf("expected custom store override")
	}
	if deps.RateInvalidator != invalidator {
		t.Fatalf("expected custom rate invalidator override")
	}
	if deps.ConfigProvider != configProvider {
		t.Fatalf("expected custom config provider override")
	}
	if deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected custom options resolver override")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
	if mapped := deps.ErrorMapper(errors.New("boom")); mapped == nil || mapped.Category != goerrors.CategoryOperation {
		t.Fatalf("expected custom mapper")
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"registry": map[string]any{
			"contract_name":     "registry_from_config",
			"settlement_symbol": "BEE",
		},
		"outbox": map[string]any{
			"batch_size": 7,
		},
	}})

	svc, err := NewService(Config{
		ServiceName: "from-runtime",
		Registry:    RegistryConfig{ContractName: "registry_from_runtime"},
	}, WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.Registry.ContractName != "registry_from_runtime" {
		t.Fatalf("expected runtime registry name, got %q", cfg.Registry.ContractName)
	}
	if cfg.Registry.SettlementSymbol != "BEE" {
		t.Fatalf("expected config layer settlement symbol, got %q", cfg.Registry.SettlementSymbol)
	}
	if cfg.Registry.DefaultRate != DefaultRate {
		t.Fatalf("expected default rate from defaults layer, got %q", cfg.Registry.DefaultRate)
	}
	if cfg.Outbox.BatchSize != 7 || cfg.Outbox.MaxAttempts != 5 {
		t.Fatalf("unexpected outbox config: %+v", cfg.Outbox)
	}
	if got := cfg.Outbox.DispatcherConfig().MaxBackoff.Seconds(); got != 300 {
		t.Fatalf("expected 300s max backoff, got %v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
	cfg.Registry.DefaultRate = "not-a-number"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid default rate to fail")
	}
	cfg = DefaultConfig()
	cfg.Marketplace.ContractName = cfg.Registry.ContractName
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected clashing contract names to fail")
	}
}
