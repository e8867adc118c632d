package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config           Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorFactory     ErrorFactory
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	clock            func() time.Time
	store            BountyStore
	paymentProvider  PaymentProvider
	codeHost         CodeHostClient
	escrow           EscrowLedger
	publisher        NotificationPublisher
	dispatchLedger   NotificationDispatchLedger
	replayLedger     ReplayLedger
	backoffScheduler BackoffScheduler
	claimEnqueuer    JobEnqueuer
}

type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorFactory     ErrorFactory
	ErrorMapper      ErrorMapper
	ConfigProvider   ConfigProvider
	OptionsResolver  OptionsResolver
	BountyStore      BountyStore
	PaymentProvider  PaymentProvider
	CodeHostClient   CodeHostClient
	EscrowLedger     EscrowLedger
	Publisher        NotificationPublisher
	DispatchLedger   NotificationDispatchLedger
	ReplayLedger     ReplayLedger
	BackoffScheduler BackoffScheduler
	ClaimEnqueuer    JobEnqueuer
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("bounty", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("bounty"); named != nil {
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
		builder.clock = time.Now
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

	if builder.store == nil {
		builder.store = NewMemoryBountyStore()
	}
	if builder.replayLedger == nil {
		builder.replayLedger = NewMemoryReplayLedger(finalConfig.Webhook.ReplayTTL)
	}
	if builder.backoffScheduler == nil {
		builder.backoffScheduler = ExponentialBackoffScheduler{
			Initial: finalConfig.Retry.InitialBackoff,
			Max:     finalConfig.Retry.MaxBackoff,
		}
	}

	return &Service{
		config:           finalConfig,
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorFactory:     builder.errorFactory,
		errorMapper:      builder.errorMapper,
		configProvider:   builder.configProvider,
		optionsResolver:  builder.optionsResolver,
		clock:            builder.clock,
		store:            builder.store,
		paymentProvider:  builder.paymentProvider,
		codeHost:         builder.codeHost,
		escrow:           builder.escrow,
		publisher:        builder.publisher,
		dispatchLedger:   builder.dispatchLedger,
		replayLedger:     builder.replayLedger,
		backoffScheduler: builder.backoffScheduler,
		claimEnqueuer:    builder.claimEnqueuer,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
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

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorFactory:     s.errorFactory,
		ErrorMapper:      s.errorMapper,
		ConfigProvider:   s.configProvider,
		OptionsResolver:  s.optionsResolver,
		BountyStore:      s.store,
		PaymentProvider:  s.paymentProvider,
		CodeHostClient:   s.codeHost,
		EscrowLedger:     s.escrow,
		Publisher:        s.publisher,
		DispatchLedger:   s.dispatchLedger,
		ReplayLedger:     s.replayLedger,
		BackoffScheduler: s.backoffScheduler,
		ClaimEnqueuer:    s.claimEnqueuer,
	}
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

func (s *Service) now() time.Time {
	if s != nil && s.clock != nil {
		return s.clock().UTC()
	}
	return time.Now().UTC()
}
