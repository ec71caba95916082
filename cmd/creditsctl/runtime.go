package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	credits "github.com/goliatone/go-credits"
	"github.com/goliatone/go-credits/adapters/gologger"
	"github.com/goliatone/go-credits/core"
	creditmigrations "github.com/goliatone/go-credits/migrations"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const rateCacheTTL = 30 * time.Second

type dbConfig struct {
	debug  bool
	driver string
	dsn    string
}

func (c dbConfig) GetDebug() bool {
	return c.debug
}

func (c dbConfig) GetDriver() string {
	return c.driver
}

func (c dbConfig) GetServer() string {
	return c.dsn
}

func (dbConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (dbConfig) GetOtelIdentifier() string {
	return "creditsctl"
}

// openClient connects to the configured database through go-persistence-bun.
func openClient(g *Globals) (*persistence.Client, error) {
	cfg := dbConfig{debug: g.Debug, driver: g.Driver, dsn: strings.TrimSpace(g.DSN)}
	if cfg.dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	sqlDB, err := sql.Open(cfg.driver, cfg.dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.driver, err)
	}

	var client *persistence.Client
	switch cfg.driver {
	case "postgres":
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
	case "sqlite3":
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
	default:
		err = fmt.Errorf("unsupported driver %q", cfg.driver)
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return client, nil
}

// migrate registers the embedded schema for the client dialect and applies it.
func migrate(ctx context.Context, g *Globals, client *persistence.Client) error {
	if _, err := creditmigrations.Register(ctx, g.Driver, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	}); err != nil {
		return err
	}
	return client.Migrate(ctx)
}

type runtime struct {
	client   *persistence.Client
	stores   *credits.SQLStores
	service  *credits.Service
	provider glog.LoggerProvider
	logger   glog.Logger
}

func (r *runtime) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *runtime) component(name string) glog.Logger {
	return gologger.Component(r.provider, r.logger, name)
}

// newRuntime opens the database and builds the SQL-backed credits service.
func newRuntime(ctx context.Context, g *Globals) (*runtime, error) {
	provider := newLogger(os.Stderr, g.LogLevel)
	_, logger := gologger.Resolve(provider, nil)

	client, err := openClient(g)
	if err != nil {
		return nil, err
	}

	cacheCfg := repositorycache.DefaultConfig()
	cacheCfg.TTL = rateCacheTTL
	cache, err := repositorycache.NewCacheService(cacheCfg)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rate cache: %w", err)
	}

	opts := []credits.Option{credits.WithLoggerProvider(provider)}
	if path := strings.TrimSpace(g.Config); path != "" {
		raw, err := readConfigFile(path)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		opts = append(opts, credits.WithConfigProvider(
			core.NewCfgxConfigProvider(core.StaticConfigLoader{Values: raw}),
		))
	}

	svc, stores, err := credits.SetupSQL(credits.DefaultConfig(), client,
		[]credits.SQLStoreOption{credits.WithRateCache(cache)},
		opts...,
	)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.WithContext(ctx).Debug("credits runtime ready", "driver", g.Driver)
	return &runtime{
		client:   client,
		stores:   stores,
		service:  svc,
		provider: provider,
		logger:   logger,
	}, nil
}

func readConfigFile(path string) (map[string]any, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return raw, nil
}

// newLogger builds the root go-logger for the CLI. Components get named
// children through GetLogger.
func newLogger(w io.Writer, level string) *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithName("creditsctl"),
		glog.WithLevel(strings.TrimSpace(level)),
		glog.WithLoggerTypeConsole(),
		glog.WithWriter(w),
	)
}
