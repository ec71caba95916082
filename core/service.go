package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service owns the shared dependencies of the credit registry and the
// marketplace. Both contracts run on the same Store so a purchase settles
// in one transaction.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	store           Store
	rateReader      RateReader
	rateInvalidator RateInvalidator
	clock           func() time.Time

	registry    *CreditRegistry
	marketplace *Marketplace
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	Store           Store
	RateReader      RateReader
	RateInvalidator RateInvalidator
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("credits", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("credits"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	svc := &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		store:           builder.store,
		rateReader:      builder.rateReader,
		rateInvalidator: builder.rateInvalidator,
		clock:           builder.clock,
	}
	svc.registry = &CreditRegistry{svc: svc, name: finalConfig.Registry.ContractName}
	svc.marketplace = &Marketplace{
		svc:      svc,
		name:     finalConfig.Marketplace.ContractName,
		contract: svc.registry,
	}
	return svc, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Registry() *CreditRegistry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Marketplace() *Marketplace {
	if s == nil {
		return nil
	}
	return s.marketplace
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		Store:           s.store,
		RateReader:      s.rateReader,
		RateInvalidator: s.rateInvalidator,
	}
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock()
}

func (s *Service) runInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if s == nil || s.store == nil {
		return s.mapError(goerrors.New("core: store is not configured", goerrors.CategoryInternal))
	}
	if err := s.store.RunInTx(ctx, fn); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, tx Tx, call CallContext, contract string, name string, payload map[string]any) error {
	if contract == "" {
		contract = call.Contract
	}
	event := Event{
		Name:       name,
		Contract:   contract,
		Caller:     call.Caller,
		OccurredAt: call.Timestamp,
		Payload:    copyAnyMap(payload),
		Metadata:   map[string]any{},
	}
	if call.Contract != "" && call.Contract != contract {
		event.Metadata["via_contract"] = call.Contract
	}
	return tx.Events().Enqueue(ctx, event)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
