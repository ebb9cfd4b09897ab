package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

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
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	contentStore    ContentStore
	jobStore        DeliveryJobStore
	subscriptions   SubscriptionStore
	inboundEvents   InboundEventStore
	credentials     CredentialProvider
	registry        *PublisherRegistry
	enqueuer        JobEnqueuer
	throttle        PublishThrottle
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

func WithContentStore(store ContentStore) Option {
	return func(b *serviceBuilder) {
		b.contentStore = store
	}
}

func WithDeliveryJobStore(store DeliveryJobStore) Option {
	return func(b *serviceBuilder) {
		b.jobStore = store
	}
}

func WithSubscriptionStore(store SubscriptionStore) Option {
	return func(b *serviceBuilder) {
		b.subscriptions = store
	}
}

func WithInboundEventStore(store InboundEventStore) Option {
	return func(b *serviceBuilder) {
		b.inboundEvents = store
	}
}

func WithCredentialProvider(provider CredentialProvider) Option {
	return func(b *serviceBuilder) {
		b.credentials = provider
	}
}

func WithRegistry(registry *PublisherRegistry) Option {
	return func(b *serviceBuilder) {
		b.registry = registry
	}
}

func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *serviceBuilder) {
		b.enqueuer = enqueuer
	}
}

func WithPublishThrottle(throttle PublishThrottle) Option {
	return func(b *serviceBuilder) {
		b.throttle = throttle
	}
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

// CfgxConfigProvider builds a validated Config from a raw key/value source
// (env loader, file loader) layered over the defaults.
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

// GoOptionsResolver merges defaults, loaded config, and runtime overrides
// in ascending precedence before the final cfgx validation pass.
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

	dispatcher := map[string]any{}
	if includeZero || cfg.Dispatcher.TickInterval > 0 {
		dispatcher["tick_interval"] = cfg.Dispatcher.TickInterval
	}
	if includeZero || cfg.Dispatcher.RollupInterval > 0 {
		dispatcher["rollup_interval"] = cfg.Dispatcher.RollupInterval
	}
	if includeZero || cfg.Dispatcher.BatchSize > 0 {
		dispatcher["batch_size"] = cfg.Dispatcher.BatchSize
	}
	if len(dispatcher) > 0 {
		layer["dispatcher"] = dispatcher
	}

	worker := map[string]any{}
	if includeZero || cfg.Worker.PollInterval > 0 {
		worker["poll_interval"] = cfg.Worker.PollInterval
	}
	if includeZero || cfg.Worker.PublishTimeout > 0 {
		worker["publish_timeout"] = cfg.Worker.PublishTimeout
	}
	if includeZero || cfg.Worker.Count > 0 {
		worker["count"] = cfg.Worker.Count
	}
	if len(worker) > 0 {
		layer["worker"] = worker
	}

	retry := map[string]any{}
	if includeZero || cfg.Retry.MaxAttempts > 0 {
		retry["max_attempts"] = cfg.Retry.MaxAttempts
	}
	if includeZero || cfg.Retry.BaseDelay > 0 {
		retry["base_delay"] = cfg.Retry.BaseDelay
	}
	if includeZero || cfg.Retry.MaxDelay > 0 {
		retry["max_delay"] = cfg.Retry.MaxDelay
	}
	if len(retry) > 0 {
		layer["retry"] = retry
	}

	return layer
}
