package credits

import (
	"fmt"

	"github.com/goliatone/go-credits/core"
	sqlstore "github.com/goliatone/go-credits/store/sql"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

func NewMemoryStore() *core.MemoryStore {
	return core.NewMemoryStore()
}

// SQLStores bundles the bun-backed store, its outbox and the rate reader
// the service should use.
type SQLStores struct {
	Factory     *sqlstore.RepositoryFactory
	Store       *sqlstore.Store
	OutboxStore *sqlstore.OutboxStore
	RateReader  core.RateReader
}

type SQLStoreOption func(*sqlStoreOptions)

type sqlStoreOptions struct {
	rateCache repositorycache.CacheService
}

// WithRateCache serves GetRate through go-repository-cache. Mint and SetRate
// invalidate the cached entry after commit.
func WithRateCache(cache repositorycache.CacheService) SQLStoreOption {
	return func(options *sqlStoreOptions) {
		options.rateCache = cache
	}
}

// NewSQLStores builds the stores from a *bun.DB or a persistence client
// exposing DB() *bun.DB.
func NewSQLStores(persistenceClient any, opts ...SQLStoreOption) (*SQLStores, error) {
	cfg := sqlStoreOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	factory := sqlstore.NewRepositoryFactory()
	if err := factory.BuildStores(persistenceClient); err != nil {
		return nil, err
	}
	stores := &SQLStores{
		Factory:     factory,
		Store:       factory.Store(),
		OutboxStore: factory.OutboxStore(),
		RateReader:  factory.RateReader(),
	}
	if cfg.rateCache != nil {
		cached, err := sqlstore.NewCachedRateReader(stores.RateReader, cfg.rateCache)
		if err != nil {
			return nil, err
		}
		stores.RateReader = cached
	}
	return stores, nil
}

// Options returns the service options that route the service through s.
func (s *SQLStores) Options() []Option {
	if s == nil {
		return nil
	}
	opts := []Option{core.WithStore(s.Store), core.WithRateReader(s.RateReader)}
	if invalidator, ok := s.RateReader.(core.RateInvalidator); ok {
		opts = append(opts, core.WithRateInvalidator(invalidator))
	}
	return opts
}

// SetupSQL builds a service over the SQL stores of persistenceClient.
func SetupSQL(cfg Config, persistenceClient any, storeOpts []SQLStoreOption, opts ...Option) (*Service, *SQLStores, error) {
	stores, err := NewSQLStores(persistenceClient, storeOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("credits: build sql stores: %w", err)
	}
	svc, err := core.Setup(cfg, append(stores.Options(), opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return svc, stores, nil
}
