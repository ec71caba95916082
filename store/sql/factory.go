package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-credits/core"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	store       *Store
	outboxStore *OutboxStore
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

// BuildStores resolves a bun database from a *bun.DB or any client exposing
// DB() *bun.DB and wires the stores on first use.
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
	if f.store != nil && f.outboxStore != nil {
		return nil
	}
	store, err := NewStore(f.db)
	if err != nil {
		return err
	}
	outboxStore, err := NewOutboxStore(f.db)
	if err != nil {
		return err
	}
	f.store = store
	f.outboxStore = outboxStore
	return nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) Store() *Store {
	if f == nil {
		return nil
	}
	return f.store
}

func (f *RepositoryFactory) OutboxStore() *OutboxStore {
	if f == nil {
		return nil
	}
	return f.outboxStore
}

// RateReader returns the uncached rate reader backed by the store.
func (f *RepositoryFactory) RateReader() core.RateReader {
	if f == nil || f.store == nil {
		return nil
	}
	return f.store
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
