package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig    Config
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

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func WithBountyStore(store BountyStore) Option {
	return func(b *serviceBuilder) {
		b.store = store
	}
}

func WithPaymentProvider(provider PaymentProvider) Option {
	return func(b *serviceBuilder) {
		b.paymentProvider = provider
	}
}

func WithCodeHostClient(client CodeHostClient) Option {
	return func(b *serviceBuilder) {
		b.codeHost = client
	}
}

func WithEscrowLedger(ledger EscrowLedger) Option {
	return func(b *serviceBuilder) {
		b.escrow = ledger
	}
}

func WithNotificationPublisher(publisher NotificationPublisher) Option {
	return func(b *serviceBuilder) {
		b.publisher = publisher
	}
}

func WithNotificationDispatchLedger(ledger NotificationDispatchLedger) Option {
	return func(b *serviceBuilder) {
		b.dispatchLedger = ledger
	}
}

func WithReplayLedger(ledger ReplayLedger) Option {
	return func(b *serviceBuilder) {
		b.replayLedger = ledger
	}
}

func WithBackoffScheduler(scheduler BackoffScheduler) Option {
	return func(b *serviceBuilder) {
		b.backoffScheduler = scheduler
	}
}

func WithClaimEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.claimEnqueuer = enqueuer
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("bounty", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		clock:           time.Now,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return bountyErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	webhook := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Webhook.Secret) != "" {
		webhook["secret"] = cfg.Webhook.Secret
	}
	if includeZero || cfg.Webhook.ReplayTTL > 0 {
		webhook["replay_ttl"] = cfg.Webhook.ReplayTTL
	}
	if includeZero || cfg.Webhook.MaxAttempts > 0 {
		webhook["max_attempts"] = cfg.Webhook.MaxAttempts
	}
	if len(webhook) > 0 {
		layer["webhook"] = webhook
	}

	escalation := map[string]any{}
	if includeZero || len(cfg.Escalation.ScheduleHours) > 0 {
		escalation["schedule_hours"] = append([]int(nil), cfg.Escalation.ScheduleHours...)
	}
	if includeZero || cfg.Escalation.MinGapHours > 0 {
		escalation["min_gap_hours"] = cfg.Escalation.MinGapHours
	}
	if includeZero || cfg.Escalation.SweepInterval > 0 {
		escalation["sweep_interval"] = cfg.Escalation.SweepInterval
	}
	if len(escalation) > 0 {
		layer["escalation"] = escalation
	}

	retry := map[string]any{}
	if includeZero || cfg.Retry.MaxAttempts > 0 {
		retry["max_attempts"] = cfg.Retry.MaxAttempts
	}
	if includeZero || cfg.Retry.InitialBackoff > 0 {
		retry["initial_backoff"] = cfg.Retry.InitialBackoff
	}
	if includeZero || cfg.Retry.MaxBackoff > 0 {
		retry["max_backoff"] = cfg.Retry.MaxBackoff
	}
	if len(retry) > 0 {
		layer["retry"] = retry
	}
	return layer
}
