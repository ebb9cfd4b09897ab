package core

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"
)

// Service wires the scheduling engine together: stores, adapter registry,
// credential provider, dispatcher, and delivery workers. It is constructed
// once at startup and injected wherever the engine is driven — no
// package-level singletons.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	contentStore    ContentStore
	jobStore        DeliveryJobStore
	subscriptions   SubscriptionStore
	inboundEvents   InboundEventStore
	credentials     CredentialProvider
	registry        *PublisherRegistry
	enqueuer        JobEnqueuer

	dispatcher *Dispatcher
	worker     *DeliveryWorker
}

func defaultServiceBuilder(cfg Config) serviceBuilder {
	return serviceBuilder{runtimeConfig: cfg}
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	provider, logger := glog.Resolve("publisher", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("publisher"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = publisherErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		registry, err := NewPublisherRegistry()
		if err != nil {
			return nil, err
		}
		builder.registry = registry
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

	service := &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		contentStore:    builder.contentStore,
		jobStore:        builder.jobStore,
		subscriptions:   builder.subscriptions,
		inboundEvents:   builder.inboundEvents,
		credentials:     builder.credentials,
		registry:        builder.registry,
		enqueuer:        builder.enqueuer,
	}

	if service.contentStore != nil && service.jobStore != nil {
		dispatcher, err := NewDispatcher(
			service.contentStore,
			service.jobStore,
			finalConfig.Dispatcher,
			WithDispatcherLogger(logger),
			WithDispatcherMetrics(service.metricsRecorder),
			WithDispatcherEnqueuer(service.enqueuer),
		)
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
		service.dispatcher = dispatcher

		if service.credentials != nil {
			worker, err := NewDeliveryWorker(
				service.contentStore,
				service.jobStore,
				service.registry,
				service.credentials,
				finalConfig.RetryPolicy(),
				finalConfig.Worker,
				WithWorkerLogger(logger),
				WithWorkerMetrics(service.metricsRecorder),
				WithWorkerThrottle(builder.throttle),
			)
			if err != nil {
				return nil, mapBuildError(builder.errorMapper, err)
			}
			service.worker = worker
		}
	}

	return service, nil
}

// Setup is NewService plus a readiness check on the engine surfaces most
// deployments need.
func Setup(cfg Config, options ...Option) (*Service, error) {
	service, err := NewService(cfg, options...)
	if err != nil {
		return nil, err
	}
	if service.dispatcher == nil {
		return nil, service.mapError(fmt.Errorf("core: content and delivery job stores are required"))
	}
	if service.worker == nil {
		return nil, service.mapError(fmt.Errorf("core: credential provider is required"))
	}
	return service, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Ensure(nil)
	}
	return s.logger
}

func (s *Service) Registry() *PublisherRegistry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Dispatcher() *Dispatcher {
	if s == nil {
		return nil
	}
	return s.dispatcher
}

func (s *Service) Worker() *DeliveryWorker {
	if s == nil {
		return nil
	}
	return s.worker
}

func (s *Service) ContentStore() ContentStore {
	if s == nil {
		return nil
	}
	return s.contentStore
}

func (s *Service) DeliveryJobStore() DeliveryJobStore {
	if s == nil {
		return nil
	}
	return s.jobStore
}

func (s *Service) SubscriptionStore() SubscriptionStore {
	if s == nil {
		return nil
	}
	return s.subscriptions
}

func (s *Service) InboundEventStore() InboundEventStore {
	if s == nil {
		return nil
	}
	return s.inboundEvents
}

// Run starts the dispatcher loop plus the configured number of delivery
// workers and blocks until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if s == nil || s.dispatcher == nil || s.worker == nil {
		return fmt.Errorf("core: service engine is not fully configured")
	}

	workers := s.config.Worker.Count
	if workers <= 0 {
		workers = 1
	}

	errCh := make(chan error, workers+1)
	go func() {
		errCh <- s.dispatcher.Run(ctx)
	}()
	for i := 0; i < workers; i++ {
		go func() {
			errCh <- s.worker.Run(ctx)
		}()
	}

	return <-errCh
}

// CancelContent flips non-terminal delivery jobs to canceled and marks the
// content canceled. An attempt already in flight finishes but is never
// retried afterward.
func (s *Service) CancelContent(ctx context.Context, contentID int64) (int, error) {
	if s == nil || s.jobStore == nil || s.contentStore == nil {
		return 0, fmt.Errorf("core: service engine is not fully configured")
	}
	canceled, err := s.jobStore.CancelForContent(ctx, contentID)
	if err != nil {
		return 0, s.mapError(err)
	}
	if err := s.contentStore.UpdateStatus(ctx, contentID, ContentStatusCanceled); err != nil {
		return canceled, s.mapError(err)
	}
	s.logger.Info("content canceled", "content_id", contentID, "jobs_canceled", canceled)
	return canceled, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

var _ ErrorMapper = publisherErrorMapper
