package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-publisher/core"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds every store the scheduling engine needs from a
// single bun handle.
type RepositoryFactory struct {
	db *bun.DB

	contentStore      *ContentStore
	deliveryJobStore  *DeliveryJobStore
	subscriptionStore *SubscriptionStore
	inboundEventStore *InboundEventStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.contentStore != nil && f.deliveryJobStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) ContentStore() core.ContentStore {
	if f == nil {
		return nil
	}
	return f.contentStore
}

// Contents exposes the concrete store for callers that need the Create
// surface the engine interface leaves out.
func (f *RepositoryFactory) Contents() *ContentStore {
	if f == nil {
		return nil
	}
	return f.contentStore
}

func (f *RepositoryFactory) DeliveryJobStore() core.DeliveryJobStore {
	if f == nil {
		return nil
	}
	return f.deliveryJobStore
}

func (f *RepositoryFactory) SubscriptionStore() core.SubscriptionStore {
	if f == nil {
		return nil
	}
	return f.subscriptionStore
}

func (f *RepositoryFactory) InboundEventStore() core.InboundEventStore {
	if f == nil {
		return nil
	}
	return f.inboundEventStore
}

func (f *RepositoryFactory) initStores() error {
	contentStore, err := NewContentStore(f.db)
	if err != nil {
		return err
	}
	f.contentStore = contentStore

	deliveryJobStore, err := NewDeliveryJobStore(f.db)
	if err != nil {
		return err
	}
	f.deliveryJobStore = deliveryJobStore

	subscriptionStore, err := NewSubscriptionStore(f.db)
	if err != nil {
		return err
	}
	f.subscriptionStore = subscriptionStore

	inboundEventStore, err := NewInboundEventStore(f.db)
	if err != nil {
		return err
	}
	f.inboundEventStore = inboundEventStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
