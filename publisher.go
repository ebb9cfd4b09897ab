package publisher

import "github.com/goliatone/go-publisher/core"

type Config = core.Config

type DispatcherConfig = core.DispatcherConfig
type WorkerConfig = core.WorkerConfig
type RetryConfig = core.RetryConfig

type Option = core.Option

type Service = core.Service

type Platform = core.Platform
type Content = core.Content
type ContentStatus = core.ContentStatus
type DeliveryJob = core.DeliveryJob
type DeliveryStatus = core.DeliveryStatus
type WebhookSubscription = core.WebhookSubscription
type InboundEvent = core.InboundEvent

type ContentStore = core.ContentStore
type DeliveryJobStore = core.DeliveryJobStore
type SubscriptionStore = core.SubscriptionStore
type InboundEventStore = core.InboundEventStore
type CredentialProvider = core.CredentialProvider
type Publisher = core.Publisher
type PublisherRegistry = core.PublisherRegistry
type JobEnqueuer = core.JobEnqueuer
type MetricsRecorder = core.MetricsRecorder
type PublishThrottle = core.PublishThrottle

type DispatchStats = core.DispatchStats
type WorkerStats = core.WorkerStats

type PublishRequest = core.PublishRequest
type PublishResult = core.PublishResult
type Credentials = core.Credentials

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorMapper        = core.WithErrorMapper
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithContentStore       = core.WithContentStore
	WithDeliveryJobStore   = core.WithDeliveryJobStore
	WithSubscriptionStore  = core.WithSubscriptionStore
	WithInboundEventStore  = core.WithInboundEventStore
	WithCredentialProvider = core.WithCredentialProvider
	WithRegistry           = core.WithRegistry
	WithJobEnqueuer        = core.WithJobEnqueuer
	WithPublishThrottle    = core.WithPublishThrottle
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}

func NewRegistry(publishers ...Publisher) (*PublisherRegistry, error) {
	return core.NewPublisherRegistry(publishers...)
}
