package publisher

import (
	"fmt"

	publishercommand "github.com/goliatone/go-publisher/command"
	"github.com/goliatone/go-publisher/core"
	publisherquery "github.com/goliatone/go-publisher/query"
)

// Commands groups the write-side handlers a downstream app registers on its
// command bus.
type Commands struct {
	DispatchTick         *publishercommand.DispatchTickCommand
	Rollup               *publishercommand.RollupCommand
	CancelContent        *publishercommand.CancelContentCommand
	CreateSubscription   *publishercommand.CreateSubscriptionCommand
	TeardownSubscription *publishercommand.TeardownSubscriptionCommand
}

// Queries groups the read-side handlers.
type Queries struct {
	GetContent      *publisherquery.GetContentQuery
	ListDeliveries  *publisherquery.ListDeliveriesQuery
	GetSubscription *publisherquery.GetSubscriptionQuery
}

type Facade struct {
	service  *core.Service
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	provisioner        publishercommand.SubscriptionProvisioner
	contentReader      publisherquery.ContentReader
	deliveryReader     publisherquery.DeliveryReader
	subscriptionReader publisherquery.SubscriptionReader
}

// WithSubscriptionProvisioner supplies the EventSub provisioning surface so
// the subscription commands are live. Without it they return a dependency
// error on execution.
func WithSubscriptionProvisioner(provisioner publishercommand.SubscriptionProvisioner) FacadeOption {
	return func(options *facadeOptions) {
		options.provisioner = provisioner
	}
}

func WithContentReader(reader publisherquery.ContentReader) FacadeOption {
	return func(options *facadeOptions) {
		options.contentReader = reader
	}
}

func WithDeliveryReader(reader publisherquery.DeliveryReader) FacadeOption {
	return func(options *facadeOptions) {
		options.deliveryReader = reader
	}
}

func WithSubscriptionReader(reader publisherquery.SubscriptionReader) FacadeOption {
	return func(options *facadeOptions) {
		options.subscriptionReader = reader
	}
}

// NewFacade builds the command/query surface over a configured engine.
// Readers default to the service's own stores when not overridden.
func NewFacade(service *core.Service, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("publisher: service is required")
	}
	if service.Dispatcher() == nil {
		return nil, fmt.Errorf("publisher: service dispatcher is required")
	}

	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	if cfg.contentReader == nil {
		if store := service.ContentStore(); store != nil {
			cfg.contentReader = store
		}
	}
	if cfg.deliveryReader == nil {
		if store := service.DeliveryJobStore(); store != nil {
			cfg.deliveryReader = store
		}
	}
	if cfg.subscriptionReader == nil {
		if store := service.SubscriptionStore(); store != nil {
			cfg.subscriptionReader = store
		}
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		DispatchTick:         publishercommand.NewDispatchTickCommand(service.Dispatcher()),
		Rollup:               publishercommand.NewRollupCommand(service.Dispatcher()),
		CancelContent:        publishercommand.NewCancelContentCommand(service),
		CreateSubscription:   publishercommand.NewCreateSubscriptionCommand(cfg.provisioner),
		TeardownSubscription: publishercommand.NewTeardownSubscriptionCommand(cfg.provisioner),
	}
	facade.queries = Queries{
		GetContent:      publisherquery.NewGetContentQuery(cfg.contentReader),
		ListDeliveries:  publisherquery.NewListDeliveriesQuery(cfg.deliveryReader),
		GetSubscription: publisherquery.NewGetSubscriptionQuery(cfg.subscriptionReader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() *core.Service {
	if f == nil {
		return nil
	}
	return f.service
}
