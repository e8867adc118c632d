package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	bountyStore               *BountyStore
	webhookDeliveryStore      *WebhookDeliveryStore
	notificationDispatchStore *NotificationDispatchStore
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
	if f.bountyStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) BountyStore() *BountyStore {
	if f == nil {
		return nil
	}
	return f.bountyStore
}

func (f *RepositoryFactory) WebhookDeliveryStore() *WebhookDeliveryStore {
	if f == nil {
		return nil
	}
	return f.webhookDeliveryStore
}

func (f *RepositoryFactory) NotificationDispatchStore() *NotificationDispatchStore {
	if f == nil {
		return nil
	}
	return f.notificationDispatchStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	bountyStore, err := NewBountyStore(f.db)
	if err != nil {
		return err
	}
	f.bountyStore = bountyStore
	webhookDeliveryStore, err := NewWebhookDeliveryStore(f.db)
	if err != nil {
		return err
	}
	f.webhookDeliveryStore = webhookDeliveryStore
	notificationDispatchStore, err := NewNotificationDispatchStore(f.db)
	if err != nil {
		return err
	}
	f.notificationDispatchStore = notificationDispatchStore
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
